package pricehistory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-subtracker/internal/domain"
	"github.com/go-subtracker/internal/pkg/id"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, userID, subscriptionID string, req domain.CreatePriceHistoryRequest) (*domain.PriceHistory, error)
	ListBySubscription(ctx context.Context, userID, subscriptionID string) ([]domain.PriceHistory, error)
	TotalSavings(ctx context.Context, userID string) (decimal.Decimal, error)
}

type historyStore interface {
	Put(ctx context.Context, h *domain.PriceHistory) error
	ListBySubscription(ctx context.Context, subscriptionID string) ([]domain.PriceHistory, error)
	ListByUser(ctx context.Context, userID string) ([]domain.PriceHistory, error)
}

type subscriptionGetter interface {
	Get(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
}

type service struct {
	repo historyStore
	subs subscriptionGetter
}

func NewService(repo historyStore, subs subscriptionGetter) Service {
	return &service{repo: repo, subs: subs}
}

func (s *service) Create(ctx context.Context, userID, subscriptionID string, req domain.CreatePriceHistoryRequest) (*domain.PriceHistory, error) {
	sub, err := s.owned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if req.OldPrice.IsNegative() || req.NewPrice.IsNegative() {
		return nil, fmt.Errorf("prices must not be negative: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	changeDate := req.ChangeDate
	if changeDate.IsZero() {
		changeDate = domain.DateOf(now)
	}
	h := &domain.PriceHistory{
		PriceHistoryID: id.New(),
		UserID:         userID,
		SubscriptionID: sub.SubscriptionID,
		OldPrice:       req.OldPrice,
		NewPrice:       req.NewPrice,
		ChangeDate:     changeDate,
		ChangeType:     req.ChangeType,
		Notes:          req.Notes,
		FromService:    req.FromService,
		CreatedAt:      now,
	}
	if err := s.repo.Put(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// ListBySubscription returns the history newest change first.
func (s *service) ListBySubscription(ctx context.Context, userID, subscriptionID string) ([]domain.PriceHistory, error) {
	if _, err := s.owned(ctx, userID, subscriptionID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ChangeDate == items[j].ChangeDate {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ChangeDate.After(items[j].ChangeDate)
	})
	return items, nil
}

// TotalSavings sums old-new over every decrease and switch of the user.
func (s *service) TotalSavings(ctx context.Context, userID string) (decimal.Decimal, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return Savings(items), nil
}

func Savings(items []domain.PriceHistory) decimal.Decimal {
	total := decimal.Zero
	for _, h := range items {
		if h.ChangeType == domain.PriceDecrease || h.ChangeType == domain.PriceSwitch {
			total = total.Add(h.OldPrice.Sub(h.NewPrice.Decimal))
		}
	}
	return total
}

func (s *service) owned(ctx context.Context, userID, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.subs.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, fmt.Errorf("forbidden: %w", domain.ErrForbidden)
	}
	return sub, nil
}
