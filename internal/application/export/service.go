package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/go-subtracker/internal/domain"
)

const (
	Version    = "1.0"
	archiveTTL = 15 * time.Minute
)

// Document is the portable dump of a user's subscriptions.
type Document struct {
	Subscriptions []domain.Subscription `json:"subscriptions"`
	ExportedAt    time.Time             `json:"exported_at"`
	Version       string                `json:"version"`
}

type Archive struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	Build(ctx context.Context, userID string) (*Document, error)
	Archive(ctx context.Context, userID string) (*Archive, error)
}

type subscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ServiceDeps struct {
	SubscriptionRepo subscriptionStore
	Store            objectStore // optional; Archive is unavailable without it
	Now              func() time.Time
}

type service struct {
	repo  subscriptionStore
	store objectStore
	now   func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.SubscriptionRepo, store: deps.Store, now: deps.Now}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Build(ctx context.Context, userID string) (*Document, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	return &Document{Subscriptions: subs, ExportedAt: s.now().UTC(), Version: Version}, nil
}

// Archive uploads the export document and returns a presigned download link.
func (s *service) Archive(ctx context.Context, userID string) (*Archive, error) {
	if s.store == nil {
		return nil, fmt.Errorf("export archive is not configured: %w", domain.ErrBadRequest)
	}
	doc, err := s.Build(ctx, userID)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := fmt.Sprintf("exports/%s/%s.json", userID, doc.ExportedAt.Format("20060102T150405Z"))
	if _, err := s.store.Upload(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return nil, err
	}
	url, err := s.store.PresignedURL(ctx, key, archiveTTL)
	if err != nil {
		return nil, err
	}
	return &Archive{Key: key, URL: url, ExpiresAt: doc.ExportedAt.Add(archiveTTL)}, nil
}
