package list

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-subtracker/internal/domain"
	"github.com/go-subtracker/internal/pkg/id"
)

type Service interface {
	Create(ctx context.Context, userID string, in domain.ListInput) (*domain.List, error)
	List(ctx context.Context, userID string) ([]domain.List, error)
	Update(ctx context.Context, userID, listID string, in domain.ListInput) (*domain.List, error)
	Delete(ctx context.Context, userID, listID string) error
}

type listStore interface {
	Put(ctx context.Context, l *domain.List) error
	Get(ctx context.Context, listID string) (*domain.List, error)
	ListByUser(ctx context.Context, userID string) ([]domain.List, error)
	Delete(ctx context.Context, listID string) error
}

type subscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	RemoveListID(ctx context.Context, subscriptionID string) error
}

type service struct {
	repo  listStore
	subs  subscriptionStore
	color string
}

func NewService(repo listStore, subs subscriptionStore) Service {
	return &service{repo: repo, subs: subs, color: domain.DefaultColor}
}

func (s *service) Create(ctx context.Context, userID string, in domain.ListInput) (*domain.List, error) {
	now := time.Now().UTC()
	l := &domain.List{
		ListID:    id.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Color:     in.Color,
		Icon:      in.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if l.Color == "" {
		l.Color = s.color
	}
	if err := s.repo.Put(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// List returns the user's lists ordered by name.
func (s *service) List(ctx context.Context, userID string) ([]domain.List, error) {
	lists, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(lists, func(i, j int) bool {
		return strings.ToLower(lists[i].Name) < strings.ToLower(lists[j].Name)
	})
	return lists, nil
}

func (s *service) Update(ctx context.Context, userID, listID string, in domain.ListInput) (*domain.List, error) {
	l, err := s.owned(ctx, userID, listID)
	if err != nil {
		return nil, err
	}
	l.Name = strings.TrimSpace(in.Name)
	if in.Color != "" {
		l.Color = in.Color
	}
	l.Icon = in.Icon
	l.UpdatedAt = time.Now().UTC()
	if err := s.repo.Put(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Delete removes the list and detaches every subscription that pointed at it.
func (s *service) Delete(ctx context.Context, userID, listID string) error {
	if _, err := s.owned(ctx, userID, listID); err != nil {
		return err
	}
	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.ListID == nil || *sub.ListID != listID {
			continue
		}
		if err := s.subs.RemoveListID(ctx, sub.SubscriptionID); err != nil {
			return fmt.Errorf("detach subscription %s: %w", sub.SubscriptionID, err)
		}
	}
	return s.repo.Delete(ctx, listID)
}

func (s *service) owned(ctx context.Context, userID, listID string) (*domain.List, error) {
	l, err := s.repo.Get(ctx, listID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, fmt.Errorf("forbidden: %w", domain.ErrForbidden)
	}
	return l, nil
}
