package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-subtracker/internal/domain"
	"github.com/go-subtracker/internal/pkg/id"
)

// Sort keys accepted by List. A leading "-" reverses the order.
const (
	SortName            = "name"
	SortPrice           = "price"
	SortNextBillingDate = "next_billing_date"
	SortCreatedAt       = "created_at"

	defaultSort = "-" + SortCreatedAt
)

// ListQuery filters and orders the subscriptions of one user.
type ListQuery struct {
	Sort   string
	Status domain.SubscriptionStatus
	ListID string
}

type Service interface {
	Create(ctx context.Context, userID string, req domain.CreateSubscriptionRequest) (*domain.Subscription, error)
	Get(ctx context.Context, userID, subscriptionID string) (*domain.Subscription, error)
	List(ctx context.Context, userID string, q ListQuery) ([]domain.Subscription, error)
	Update(ctx context.Context, userID, subscriptionID string, req domain.UpdateSubscriptionRequest) (*domain.Subscription, error)
	Delete(ctx context.Context, userID, subscriptionID string) error
	PreviewImport(ctx context.Context, userID string, items []domain.ImportItem) (*domain.ImportPreview, error)
	Import(ctx context.Context, userID string, req domain.ImportRequest) (*domain.ImportResult, error)
}

type subscriptionStore interface {
	Put(ctx context.Context, s *domain.Subscription) error
	PutBatch(ctx context.Context, subs []domain.Subscription) error
	Get(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	Delete(ctx context.Context, subscriptionID string) error
}

type listStore interface {
	Get(ctx context.Context, listID string) (*domain.List, error)
}

type priceHistoryStore interface {
	Put(ctx context.Context, h *domain.PriceHistory) error
}

type reminderTrigger interface {
	Trigger(userID string)
}

type ServiceDeps struct {
	SubscriptionRepo subscriptionStore
	ListRepo         listStore
	PriceHistoryRepo priceHistoryStore
	Reminder         reminderTrigger // optional
	Now              func() time.Time
}

type service struct {
	repo     subscriptionStore
	lists    listStore
	history  priceHistoryStore
	reminder reminderTrigger
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:     deps.SubscriptionRepo,
		lists:    deps.ListRepo,
		history:  deps.PriceHistoryRepo,
		reminder: deps.Reminder,
		now:      deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Create(ctx context.Context, userID string, req domain.CreateSubscriptionRequest) (*domain.Subscription, error) {
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("price must not be negative: %w", domain.ErrBadRequest)
	}
	if req.NextBillingDate.IsZero() {
		return nil, fmt.Errorf("next_billing_date is required: %w", domain.ErrBadRequest)
	}
	listID, err := s.checkList(ctx, userID, req.ListID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sub := &domain.Subscription{
		SubscriptionID:     id.NewAt(now),
		UserID:             userID,
		Name:               strings.TrimSpace(req.Name),
		Price:              req.Price,
		BillingCycle:       orDefault(req.BillingCycle, domain.CycleMonthly),
		NextBillingDate:    req.NextBillingDate,
		Category:           orDefault(req.Category, domain.CategoryOther),
		Status:             orDefault(req.Status, domain.StatusActive),
		IsFreeTrial:        req.IsFreeTrial,
		Color:              orDefault(req.Color, domain.DefaultColor),
		IconURL:            req.IconURL,
		ReminderDaysBefore: req.ReminderDaysBefore,
		Notes:              req.Notes,
		ListID:             listID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Put(ctx, sub); err != nil {
		return nil, err
	}
	s.trigger(userID)
	return sub, nil
}

func (s *service) Get(ctx context.Context, userID, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.repo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, fmt.Errorf("forbidden: %w", domain.ErrForbidden)
	}
	return sub, nil
}

func (s *service) List(ctx context.Context, userID string, q ListQuery) ([]domain.Subscription, error) {
	less, err := lessFunc(q.Sort)
	if err != nil {
		return nil, err
	}
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Subscription, 0, len(subs))
	for _, sub := range subs {
		if q.Status != "" && sub.Status != q.Status {
			continue
		}
		if q.ListID != "" && (sub.ListID == nil || *sub.ListID != q.ListID) {
			continue
		}
		out = append(out, sub)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out, nil
}

func (s *service) Update(ctx context.Context, userID, subscriptionID string, req domain.UpdateSubscriptionRequest) (*domain.Subscription, error) {
	sub, err := s.Get(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	oldPrice := sub.Price

	if req.Name != nil {
		sub.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, fmt.Errorf("price must not be negative: %w", domain.ErrBadRequest)
		}
		sub.Price = *req.Price
	}
	if req.BillingCycle != nil {
		sub.BillingCycle = *req.BillingCycle
	}
	if req.NextBillingDate != nil {
		if req.NextBillingDate.IsZero() {
			return nil, fmt.Errorf("next_billing_date cannot be cleared: %w", domain.ErrBadRequest)
		}
		sub.NextBillingDate = *req.NextBillingDate
	}
	if req.Category != nil {
		sub.Category = *req.Category
	}
	if req.Status != nil {
		sub.Status = *req.Status
	}
	if req.IsFreeTrial != nil {
		sub.IsFreeTrial = *req.IsFreeTrial
	}
	if req.Color != nil {
		sub.Color = *req.Color
	}
	if req.IconURL != nil {
		sub.IconURL = *req.IconURL
	}
	if req.ReminderDaysBefore != nil {
		sub.ReminderDaysBefore = req.ReminderDaysBefore
	}
	if req.Notes != nil {
		sub.Notes = *req.Notes
	}
	if req.ListID != nil {
		if sub.ListID, err = s.checkList(ctx, userID, req.ListID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	sub.UpdatedAt = now
	if err := s.repo.Put(ctx, sub); err != nil {
		return nil, err
	}
	if !sub.Price.Equal(oldPrice.Decimal) {
		if err := s.recordPriceChange(ctx, sub, oldPrice, now); err != nil {
			return nil, err
		}
	}
	s.trigger(userID)
	return sub, nil
}

func (s *service) Delete(ctx context.Context, userID, subscriptionID string) error {
	if _, err := s.Get(ctx, userID, subscriptionID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, subscriptionID); err != nil {
		return err
	}
	s.trigger(userID)
	return nil
}

func (s *service) recordPriceChange(ctx context.Context, sub *domain.Subscription, old domain.Price, at time.Time) error {
	if s.history == nil {
		return nil
	}
	change := domain.PriceIncrease
	if sub.Price.LessThan(old.Decimal) {
		change = domain.PriceDecrease
	}
	return s.history.Put(ctx, &domain.PriceHistory{
		PriceHistoryID: id.NewAt(at),
		UserID:         sub.UserID,
		SubscriptionID: sub.SubscriptionID,
		OldPrice:       old,
		NewPrice:       sub.Price,
		ChangeDate:     domain.DateOf(at),
		ChangeType:     change,
		CreatedAt:      at,
	})
}

// checkList validates a requested list reference. Empty clears it.
func (s *service) checkList(ctx context.Context, userID string, listID *string) (*string, error) {
	if listID == nil || *listID == "" {
		return nil, nil
	}
	l, err := s.lists.Get(ctx, *listID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("unknown list: %w", domain.ErrBadRequest)
	}
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, fmt.Errorf("unknown list: %w", domain.ErrBadRequest)
	}
	v := l.ListID
	return &v, nil
}

func (s *service) trigger(userID string) {
	if s.reminder != nil {
		s.reminder.Trigger(userID)
	}
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func lessFunc(key string) (func(a, b *domain.Subscription) bool, error) {
	if key == "" {
		key = defaultSort
	}
	desc := strings.HasPrefix(key, "-")
	var less func(a, b *domain.Subscription) bool
	switch strings.TrimPrefix(key, "-") {
	case SortName:
		less = func(a, b *domain.Subscription) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortPrice:
		less = func(a, b *domain.Subscription) bool { return a.Price.LessThan(b.Price.Decimal) }
	case SortNextBillingDate:
		less = func(a, b *domain.Subscription) bool { return a.NextBillingDate.Before(b.NextBillingDate) }
	case SortCreatedAt:
		less = func(a, b *domain.Subscription) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return nil, fmt.Errorf("unknown sort key %q: %w", key, domain.ErrBadRequest)
	}
	if desc {
		return func(a, b *domain.Subscription) bool { return less(b, a) }, nil
	}
	return less, nil
}
