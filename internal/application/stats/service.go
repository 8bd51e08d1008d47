package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-subtracker/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	upcomingWindowDays = 7
	topCount           = 5
)

var (
	twelve = decimal.NewFromInt(12)
	thirty = decimal.NewFromInt(30)
)

type Renewal struct {
	SubscriptionID  string       `json:"subscription_id"`
	Name            string       `json:"name"`
	Price           domain.Price `json:"price"`
	NextBillingDate domain.Date  `json:"next_billing_date"`
	DaysUntil       int          `json:"days_until"`
}

type Summary struct {
	ActiveCount    int          `json:"active_count"`
	MonthlyTotal   domain.Price `json:"monthly_total"`
	YearlyTotal    domain.Price `json:"yearly_total"`
	UpcomingCount  int          `json:"upcoming_count"`
	UpcomingAmount domain.Price `json:"upcoming_amount"`
	Upcoming       []Renewal    `json:"upcoming"`
	TrialCount     int          `json:"trial_count"`
}

type Breakdown struct {
	Key     string       `json:"key"`
	Count   int          `json:"count"`
	Monthly domain.Price `json:"monthly"`
}

type Ranked struct {
	SubscriptionID string       `json:"subscription_id"`
	Name           string       `json:"name"`
	Monthly        domain.Price `json:"monthly"`
}

type Analytics struct {
	MonthlyTotal domain.Price `json:"monthly_total"`
	DailyCost    domain.Price `json:"daily_cost"`
	Categories   []Breakdown  `json:"categories"`
	Cycles       []Breakdown  `json:"billing_cycles"`
	Top          []Ranked     `json:"top"`
}

type CalendarDay struct {
	Date          domain.Date           `json:"date"`
	Total         domain.Price          `json:"total"`
	Subscriptions []domain.Subscription `json:"subscriptions"`
}

type Calendar struct {
	Month string        `json:"month"`
	Total domain.Price  `json:"total"`
	Days  []CalendarDay `json:"days"`
}

type Service interface {
	Summary(ctx context.Context, userID string) (*Summary, error)
	Analytics(ctx context.Context, userID string) (*Analytics, error)
	Calendar(ctx context.Context, userID, month string) (*Calendar, error)
}

type subscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
}

type ServiceDeps struct {
	SubscriptionRepo subscriptionStore
	Now              func() time.Time
	Location         *time.Location
}

type service struct {
	repo subscriptionStore
	now  func() time.Time
	loc  *time.Location
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.SubscriptionRepo, now: deps.Now, loc: deps.Location}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

func (s *service) Summary(ctx context.Context, userID string) (*Summary, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := domain.DateOf(s.now().In(s.loc))

	monthly := decimal.Zero
	upcomingAmount := decimal.Zero
	out := &Summary{Upcoming: []Renewal{}}
	for i := range subs {
		sub := &subs[i]
		if sub.Status == domain.StatusTrial || sub.IsFreeTrial {
			out.TrialCount++
		}
		if !sub.Status.IsBilling() {
			continue
		}
		out.ActiveCount++
		monthly = monthly.Add(sub.MonthlyCost())

		if sub.NextBillingDate.IsZero() {
			continue
		}
		days := today.DaysUntil(sub.NextBillingDate)
		if days < 0 || days > upcomingWindowDays {
			continue
		}
		upcomingAmount = upcomingAmount.Add(sub.Price.Decimal)
		out.Upcoming = append(out.Upcoming, Renewal{
			SubscriptionID:  sub.SubscriptionID,
			Name:            sub.Name,
			Price:           sub.Price,
			NextBillingDate: sub.NextBillingDate,
			DaysUntil:       days,
		})
	}
	sort.SliceStable(out.Upcoming, func(i, j int) bool {
		return out.Upcoming[i].DaysUntil < out.Upcoming[j].DaysUntil
	})

	out.MonthlyTotal = money(monthly)
	out.YearlyTotal = money(monthly.Mul(twelve))
	out.UpcomingCount = len(out.Upcoming)
	out.UpcomingAmount = money(upcomingAmount)
	return out, nil
}

func (s *service) Analytics(ctx context.Context, userID string) (*Analytics, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	categories := map[string]*agg{}
	cycles := map[string]*agg{}
	var ranked []Ranked
	for i := range subs {
		sub := &subs[i]
		if !sub.Status.IsBilling() {
			continue
		}
		cost := sub.MonthlyCost()
		total = total.Add(cost)

		category := string(sub.Category)
		if category == "" {
			category = string(domain.CategoryOther)
		}
		cycle := string(sub.BillingCycle)
		if cycle == "" {
			cycle = string(domain.CycleMonthly)
		}
		add(categories, category, cost)
		add(cycles, cycle, cost)
		ranked = append(ranked, Ranked{SubscriptionID: sub.SubscriptionID, Name: sub.Name, Monthly: money(cost)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Monthly.GreaterThan(ranked[j].Monthly.Decimal)
	})
	if len(ranked) > topCount {
		ranked = ranked[:topCount]
	}
	if ranked == nil {
		ranked = []Ranked{}
	}

	return &Analytics{
		MonthlyTotal: money(total),
		DailyCost:    money(total.Div(thirty)),
		Categories:   breakdown(categories),
		Cycles:       breakdown(cycles),
		Top:          ranked,
	}, nil
}

// Calendar groups the billing subscriptions whose next billing date falls in month (YYYY-MM).
func (s *service) Calendar(ctx context.Context, userID, month string) (*Calendar, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("month must be YYYY-MM: %w", domain.ErrBadRequest)
	}
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byDay := map[string]*CalendarDay{}
	totals := map[string]decimal.Decimal{}
	grand := decimal.Zero
	for _, sub := range subs {
		d := sub.NextBillingDate
		if !sub.Status.IsBilling() || d.IsZero() {
			continue
		}
		if d.Year() != start.Year() || d.Month() != start.Month() {
			continue
		}
		key := d.String()
		day, ok := byDay[key]
		if !ok {
			day = &CalendarDay{Date: d}
			byDay[key] = day
		}
		day.Subscriptions = append(day.Subscriptions, sub)
		totals[key] = totals[key].Add(sub.Price.Decimal)
		grand = grand.Add(sub.Price.Decimal)
	}

	cal := &Calendar{Month: start.Format("2006-01"), Total: money(grand), Days: make([]CalendarDay, 0, len(byDay))}
	for key, day := range byDay {
		day.Total = money(totals[key])
		cal.Days = append(cal.Days, *day)
	}
	sort.Slice(cal.Days, func(i, j int) bool { return cal.Days[i].Date.Before(cal.Days[j].Date) })
	return cal, nil
}

type agg struct {
	count int
	sum   decimal.Decimal
}

func add(m map[string]*agg, key string, v decimal.Decimal) {
	a, ok := m[key]
	if !ok {
		a = &agg{sum: decimal.Zero}
		m[key] = a
	}
	a.count++
	a.sum = a.sum.Add(v)
}

// breakdown flattens m sorted by monthly value desc, then key.
func breakdown(m map[string]*agg) []Breakdown {
	out := make([]Breakdown, 0, len(m))
	for k, a := range m {
		out = append(out, Breakdown{Key: k, Count: a.count, Monthly: money(a.sum)})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Monthly.Cmp(out[j].Monthly.Decimal); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func money(d decimal.Decimal) domain.Price {
	return domain.NewPrice(d.Round(2))
}
