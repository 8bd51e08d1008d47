package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-subtracker/internal/domain"
	"github.com/go-subtracker/internal/pkg/id"
)

// importPlan maps the index of every conflicting incoming record to the
// existing subscription it collides with.
type importPlan struct {
	ready     []int
	conflicts map[int]*domain.Subscription
}

func planImport(existing []domain.Subscription, items []domain.ImportItem) importPlan {
	byName := make(map[string]*domain.Subscription, len(existing))
	for i := range existing {
		key := nameKey(existing[i].Name)
		if _, taken := byName[key]; !taken {
			byName[key] = &existing[i]
		}
	}
	p := importPlan{conflicts: make(map[int]*domain.Subscription)}
	for i, item := range items {
		if sub, ok := byName[nameKey(item.Name)]; ok {
			p.conflicts[i] = sub
			continue
		}
		p.ready = append(p.ready, i)
	}
	return p
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *service) PreviewImport(ctx context.Context, userID string, items []domain.ImportItem) (*domain.ImportPreview, error) {
	if err := checkImportItems(items); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan := planImport(existing, items)

	preview := &domain.ImportPreview{
		Ready:     make([]domain.ImportItem, 0, len(plan.ready)),
		Conflicts: make([]domain.ImportConflict, 0, len(plan.conflicts)),
	}
	for _, i := range plan.ready {
		preview.Ready = append(preview.Ready, items[i])
	}
	for i, item := range items {
		sub, ok := plan.conflicts[i]
		if !ok {
			continue
		}
		preview.Conflicts = append(preview.Conflicts, domain.ImportConflict{
			Index:      i,
			Existing:   *sub,
			Incoming:   item,
			Resolution: domain.ResolveSkip,
		})
	}
	return preview, nil
}

// Import applies the resolutions to the conflicts, replaces first and then
// creates every remaining record in one batch. Conflicts without a resolution
// are skipped. One reminder pass follows when anything was written.
func (s *service) Import(ctx context.Context, userID string, req domain.ImportRequest) (*domain.ImportResult, error) {
	if err := checkImportItems(req.Subscriptions); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan := planImport(existing, req.Subscriptions)

	resolutions := make(map[int]domain.ImportResolution, len(req.Resolutions))
	for _, r := range req.Resolutions {
		if _, ok := plan.conflicts[r.Index]; !ok {
			return nil, fmt.Errorf("resolution for item %d does not match a conflict: %w", r.Index, domain.ErrBadRequest)
		}
		resolutions[r.Index] = r.Resolution
	}

	now := s.now().UTC()
	today := domain.DateOf(now)
	res := &domain.ImportResult{Created: []domain.Subscription{}, Replaced: []domain.Subscription{}}
	for i, item := range req.Subscriptions {
		target, conflict := plan.conflicts[i]
		switch {
		case !conflict || resolutions[i] == domain.ResolveKeepBoth:
			res.Created = append(res.Created, newImported(userID, item, today, now))
		case resolutions[i] == domain.ResolveReplace:
			old := target.Price
			applyImported(target, item, today, now)
			if err := s.repo.Put(ctx, target); err != nil {
				return nil, fmt.Errorf("replace %s: %w", target.SubscriptionID, err)
			}
			if !target.Price.Equal(old.Decimal) {
				if err := s.recordPriceChange(ctx, target, old, now); err != nil {
					return nil, err
				}
			}
			res.Replaced = append(res.Replaced, *target)
		default:
			res.Skipped++
		}
	}

	if len(res.Created) > 0 {
		if err := s.repo.PutBatch(ctx, res.Created); err != nil {
			return nil, fmt.Errorf("create imported subscriptions: %w", err)
		}
	}
	if len(res.Created) > 0 || len(res.Replaced) > 0 {
		s.trigger(userID)
	}
	return res, nil
}

func checkImportItems(items []domain.ImportItem) error {
	if len(items) == 0 {
		return fmt.Errorf("nothing to import: %w", domain.ErrBadRequest)
	}
	if len(items) > domain.MaxImportItems {
		return fmt.Errorf("at most %d subscriptions per import: %w", domain.MaxImportItems, domain.ErrBadRequest)
	}
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("item %d has no name: %w", i, domain.ErrBadRequest)
		}
		if item.Price.IsNegative() {
			return fmt.Errorf("item %d: price must not be negative: %w", i, domain.ErrBadRequest)
		}
	}
	return nil
}

func newImported(userID string, item domain.ImportItem, today domain.Date, now time.Time) domain.Subscription {
	sub := domain.Subscription{
		SubscriptionID: id.NewAt(now),
		UserID:         userID,
		CreatedAt:      now,
	}
	applyImported(&sub, item, today, now)
	return sub
}

// applyImported copies an incoming record onto sub with the import defaults:
// price 0, monthly, billing today, category other, status active.
func applyImported(sub *domain.Subscription, item domain.ImportItem, today domain.Date, now time.Time) {
	sub.Name = strings.TrimSpace(item.Name)
	sub.Price = item.Price
	sub.BillingCycle = orDefault(item.BillingCycle, domain.CycleMonthly)
	sub.NextBillingDate = item.NextBillingDate
	if sub.NextBillingDate.IsZero() {
		sub.NextBillingDate = today
	}
	sub.Category = orDefault(item.Category, domain.CategoryOther)
	sub.Status = orDefault(item.Status, domain.StatusActive)
	sub.IsFreeTrial = item.IsFreeTrial
	sub.Color = orDefault(item.Color, domain.DefaultColor)
	if item.Notes != "" {
		sub.Notes = item.Notes
	}
	sub.UpdatedAt = now
}
