package notification

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-subtracker/internal/domain"
)

// Service backs the notification center. Every mutation rewrites the whole
// list stored on the user profile.
type Service interface {
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	ClearAll(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	UpdateNotifications(ctx context.Context, userID string, notifications []domain.Notification) error
}

type service struct {
	users userStore
}

func NewService(users userStore) Service {
	return &service{users: users}
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := append([]domain.Notification{}, u.Notifications...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UnreadCount is derived from the stored list on every call.
func (s *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return domain.UnreadCount(u.Notifications), nil
}

func (s *service) MarkAsRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range u.Notifications {
		if u.Notifications[i].ID == notificationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	n := u.Notifications[idx]
	if n.Read {
		return &n, nil
	}
	updated := append([]domain.Notification(nil), u.Notifications...)
	updated[idx].Read = true
	if err := s.users.UpdateNotifications(ctx, userID, updated); err != nil {
		return nil, err
	}
	n.Read = true
	return &n, nil
}

// MarkAllAsRead returns how many notifications changed.
func (s *service) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	changed := 0
	updated := append([]domain.Notification(nil), u.Notifications...)
	for i := range updated {
		if !updated[i].Read {
			updated[i].Read = true
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.users.UpdateNotifications(ctx, userID, updated); err != nil {
		return 0, err
	}
	return changed, nil
}

func (s *service) ClearAll(ctx context.Context, userID string) error {
	return s.users.UpdateNotifications(ctx, userID, []domain.Notification{})
}
