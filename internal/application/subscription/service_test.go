package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-subtracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSubStore struct{ mock.Mock }

func (m *mockSubStore) Put(ctx context.Context, s *domain.Subscription) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSubStore) PutBatch(ctx context.Context, subs []domain.Subscription) error {
	return m.Called(ctx, subs).Error(0)
}
func (m *mockSubStore) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	args := m.Called(ctx, id)
	if s, _ := args.Get(0).(*domain.Subscription); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSubStore) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Subscription), args.Error(1)
}
func (m *mockSubStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockListStore struct{ mock.Mock }

func (m *mockListStore) Get(ctx context.Context, id string) (*domain.List, error) {
	args := m.Called(ctx, id)
	if l, _ := args.Get(0).(*domain.List); l != nil {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockHistoryStore struct{ mock.Mock }

func (m *mockHistoryStore) Put(ctx context.Context, h *domain.PriceHistory) error {
	return m.Called(ctx, h).Error(0)
}

type mockTrigger struct{ mock.Mock }

func (m *mockTrigger) Trigger(userID string) { m.Called(userID) }

// --- helpers ---

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	subs    *mockSubStore
	lists   *mockListStore
	history *mockHistoryStore
	trigger *mockTrigger
	svc     Service
}

func newFixture() *fixture {
	f := &fixture{subs: &mockSubStore{}, lists: &mockListStore{}, history: &mockHistoryStore{}, trigger: &mockTrigger{}}
	f.svc = NewService(ServiceDeps{
		SubscriptionRepo: f.subs,
		ListRepo:         f.lists,
		PriceHistoryRepo: f.history,
		Reminder:         f.trigger,
		Now:              func() time.Time { return now },
	})
	return f
}

func strPtr(s string) *string { return &s }

func owned(id, userID string) *domain.Subscription {
	return &domain.Subscription{
		SubscriptionID:  id,
		UserID:          userID,
		Name:            "Netflix",
		Price:           domain.MustPrice("15.49"),
		BillingCycle:    domain.CycleMonthly,
		NextBillingDate: domain.NewDate(2026, 5, 20),
		Status:          domain.StatusActive,
	}
}

// --- Create ---

func TestCreate_AppliesDefaultsAndTriggers(t *testing.T) {
	f := newFixture()
	f.subs.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.trigger.On("Trigger", "u1").Return()

	sub, err := f.svc.Create(context.Background(), "u1", domain.CreateSubscriptionRequest{
		Name:            " Netflix ",
		Price:           domain.MustPrice("15.49"),
		NextBillingDate: domain.NewDate(2026, 5, 20),
	})

	require.NoError(t, err)
	assert.Equal(t, "Netflix", sub.Name)
	assert.Equal(t, domain.CycleMonthly, sub.BillingCycle)
	assert.Equal(t, domain.CategoryOther, sub.Category)
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, domain.DefaultColor, sub.Color)
	assert.Equal(t, now, sub.CreatedAt)
	assert.NotEmpty(t, sub.SubscriptionID)
	f.trigger.AssertExpectations(t)
}

func TestCreate_RejectsNegativePriceAndMissingDate(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), "u1", domain.CreateSubscriptionRequest{
		Name: "x", Price: domain.MustPrice("-1"), NextBillingDate: domain.NewDate(2026, 5, 20),
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = f.svc.Create(context.Background(), "u1", domain.CreateSubscriptionRequest{Name: "x", Price: domain.MustPrice("1")})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	f.subs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreate_ForeignListRejected(t *testing.T) {
	f := newFixture()
	f.lists.On("Get", mock.Anything, "l1").Return(&domain.List{ListID: "l1", UserID: "someone-else"}, nil)

	_, err := f.svc.Create(context.Background(), "u1", domain.CreateSubscriptionRequest{
		Name: "x", Price: domain.MustPrice("1"), NextBillingDate: domain.NewDate(2026, 5, 20), ListID: strPtr("l1"),
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

// --- Get ---

func TestGet_Forbidden(t *testing.T) {
	f := newFixture()
	f.subs.On("Get", mock.Anything, "s1").Return(owned("s1", "u2"), nil)

	_, err := f.svc.Get(context.Background(), "u1", "s1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// --- List ---

func TestList_SortAndFilter(t *testing.T) {
	f := newFixture()
	a := *owned("a", "u1")
	a.Name, a.Price, a.CreatedAt = "beta", domain.MustPrice("5"), now.Add(-2*time.Hour)
	b := *owned("b", "u1")
	b.Name, b.Price, b.CreatedAt = "Alpha", domain.MustPrice("20"), now.Add(-time.Hour)
	c := *owned("c", "u1")
	c.Name, c.Price, c.Status, c.ListID = "gamma", domain.MustPrice("1"), domain.StatusPaused, strPtr("l1")
	f.subs.On("ListByUser", mock.Anything, "u1").Return([]domain.Subscription{a, b, c}, nil)

	byName, err := f.svc.List(context.Background(), "u1", ListQuery{Sort: "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, ids(byName))

	byPriceDesc, err := f.svc.List(context.Background(), "u1", ListQuery{Sort: "-price"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, ids(byPriceDesc))

	newest, err := f.svc.List(context.Background(), "u1", ListQuery{Status: domain.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(newest))

	inList, err := f.svc.List(context.Background(), "u1", ListQuery{ListID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(inList))
}

func TestList_UnknownSort(t *testing.T) {
	f := newFixture()
	_, err := f.svc.List(context.Background(), "u1", ListQuery{Sort: "color"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func ids(subs []domain.Subscription) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.SubscriptionID
	}
	return out
}

// --- Update ---

func TestUpdate_PriceChangeRecordsHistory(t *testing.T) {
	f := newFixture()
	f.subs.On("Get", mock.Anything, "s1").Return(owned("s1", "u1"), nil)
	f.subs.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.history.On("Put", mock.Anything, mock.MatchedBy(func(h *domain.PriceHistory) bool {
		return h.SubscriptionID == "s1" &&
			h.OldPrice.String() == "15.49" &&
			h.NewPrice.String() == "17.99" &&
			h.ChangeType == domain.PriceIncrease &&
			h.ChangeDate.String() == "2026-05-01"
	})).Return(nil)
	f.trigger.On("Trigger", "u1").Return()

	p := domain.MustPrice("17.99")
	sub, err := f.svc.Update(context.Background(), "u1", "s1", domain.UpdateSubscriptionRequest{Price: &p})

	require.NoError(t, err)
	assert.Equal(t, "17.99", sub.Price.String())
	f.history.AssertExpectations(t)
	f.trigger.AssertExpectations(t)
}

func TestUpdate_SamePriceNoHistory(t *testing.T) {
	f := newFixture()
	f.subs.On("Get", mock.Anything, "s1").Return(owned("s1", "u1"), nil)
	f.subs.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.trigger.On("Trigger", "u1").Return()

	p := domain.MustPrice("15.490")
	name := "Netflix Premium"
	_, err := f.svc.Update(context.Background(), "u1", "s1", domain.UpdateSubscriptionRequest{Price: &p, Name: &name})

	require.NoError(t, err)
	f.history.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestUpdate_ClearsList(t *testing.T) {
	f := newFixture()
	sub := owned("s1", "u1")
	sub.ListID = strPtr("l1")
	f.subs.On("Get", mock.Anything, "s1").Return(sub, nil)
	f.subs.On("Put", mock.Anything, mock.MatchedBy(func(s *domain.Subscription) bool { return s.ListID == nil })).Return(nil)
	f.trigger.On("Trigger", "u1").Return()

	_, err := f.svc.Update(context.Background(), "u1", "s1", domain.UpdateSubscriptionRequest{ListID: strPtr("")})
	require.NoError(t, err)
	f.subs.AssertExpectations(t)
}

func TestUpdate_Forbidden(t *testing.T) {
	f := newFixture()
	f.subs.On("Get", mock.Anything, "s1").Return(owned("s1", "u2"), nil)

	_, err := f.svc.Update(context.Background(), "u1", "s1", domain.UpdateSubscriptionRequest{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	f.trigger.AssertNotCalled(t, "Trigger", mock.Anything)
}

// --- Delete ---

func TestDelete_TriggersPass(t *testing.T) {
	f := newFixture()
	f.subs.On("Get", mock.Anything, "s1").Return(owned("s1", "u1"), nil)
	f.subs.On("Delete", mock.Anything, "s1").Return(nil)
	f.trigger.On("Trigger", "u1").Return()

	require.NoError(t, f.svc.Delete(context.Background(), "u1", "s1"))
	f.trigger.AssertExpectations(t)
}

func TestDelete_StoreError(t *testing.T) {
	f := newFixture()
	f.subs.On("Get", mock.Anything, "s1").Return(owned("s1", "u1"), nil)
	f.subs.On("Delete", mock.Anything, "s1").Return(errors.New("boom"))

	assert.Error(t, f.svc.Delete(context.Background(), "u1", "s1"))
	f.trigger.AssertNotCalled(t, "Trigger", mock.Anything)
}
