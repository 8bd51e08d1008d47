package http

import (
	"context"
	"io"
	"time"

	"github.com/go-subtracker/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	UpdateNotifications(ctx context.Context, userID string, notifications []domain.Notification) error
}

// SubscriptionRepository is the minimal interface the router requires from a subscription store.
type SubscriptionRepository interface {
	Put(ctx context.Context, s *domain.Subscription) error
	PutBatch(ctx context.Context, subs []domain.Subscription) error
	Get(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	Delete(ctx context.Context, subscriptionID string) error
	RemoveListID(ctx context.Context, subscriptionID string) error
}

// ListRepository is the minimal interface the router requires from a list store.
type ListRepository interface {
	Put(ctx context.Context, l *domain.List) error
	Get(ctx context.Context, listID string) (*domain.List, error)
	ListByUser(ctx context.Context, userID string) ([]domain.List, error)
	Delete(ctx context.Context, listID string) error
}

// PriceHistoryRepository is the minimal interface the router requires from a price history store.
type PriceHistoryRepository interface {
	Put(ctx context.Context, h *domain.PriceHistory) error
	ListBySubscription(ctx context.Context, subscriptionID string) ([]domain.PriceHistory, error)
	ListByUser(ctx context.Context, userID string) ([]domain.PriceHistory, error)
}

// ObjectStore is the minimal interface the router requires from an object storage backend.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
