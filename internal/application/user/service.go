package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-subtracker/internal/domain"
	"github.com/go-subtracker/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldPhone                   = "phone"
	fieldFirstName               = "first_name"
	fieldLastName                = "last_name"
	fieldNotificationPreferences = "notification_preferences"
)

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	GetMe(ctx context.Context, userID string) (*domain.User, error)
	UpdateMe(ctx context.Context, userID string, req domain.UpdateMeRequest) (*domain.User, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type reminderTrigger interface {
	Trigger(userID string)
}

type service struct {
	repo     userStore
	reminder reminderTrigger
}

type ServiceDeps struct {
	UserRepo userStore
	Reminder reminderTrigger // optional
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo, reminder: deps.Reminder}
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email := normalizeEmail(req.Email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:        id.New(),
		Email:         email,
		Phone:         req.Phone,
		PasswordHash:  string(hash),
		Role:          domain.RoleUser,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Enable:        true,
		Notifications: []domain.Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	return withEffectivePreferences(u), nil
}

func (s *service) GetMe(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return withEffectivePreferences(u), nil
}

// UpdateMe shallow-merges the request into the profile. Preferences are merged
// field by field onto the effective (defaulted) preferences and stored whole.
func (s *service) UpdateMe(ctx context.Context, userID string, req domain.UpdateMeRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates[fieldFirstName] = *req.FirstName
	}
	if req.LastName != nil {
		updates[fieldLastName] = *req.LastName
	}
	if req.Phone != nil {
		updates[fieldPhone] = *req.Phone
	}

	prefsChanged := false
	if req.NotificationPreferences != nil {
		current, err := s.repo.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		merged := mergePreferences(current.Preferences(), *req.NotificationPreferences)
		updates[fieldNotificationPreferences] = merged
		prefsChanged = true
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, userID, updates); err != nil {
			return nil, err
		}
	}
	if prefsChanged && s.reminder != nil {
		s.reminder.Trigger(userID)
	}
	return s.GetMe(ctx, userID)
}

func mergePreferences(p domain.NotificationPreferences, in domain.NotificationPreferencesInput) domain.NotificationPreferences {
	if in.Enabled != nil {
		p.Enabled = *in.Enabled
	}
	if in.EmailEnabled != nil {
		p.EmailEnabled = *in.EmailEnabled
	}
	if in.InAppEnabled != nil {
		p.InAppEnabled = *in.InAppEnabled
	}
	if in.SMSEnabled != nil {
		p.SMSEnabled = *in.SMSEnabled
	}
	if in.ReminderDays != nil {
		p.ReminderDays = append([]int{}, in.ReminderDays...)
	}
	return p
}

func withEffectivePreferences(u *domain.User) *domain.User {
	p := u.Preferences()
	u.NotificationPreferences = &p
	if u.Notifications == nil {
		u.Notifications = []domain.Notification{}
	}
	return u
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
