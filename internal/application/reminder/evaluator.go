package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/go-subtracker/internal/domain"
	"github.com/go-subtracker/internal/infrastructure/smtp"
	"github.com/sirupsen/logrus"
)

var (
	// ErrPassInFlight is returned when a pass for the same user is already running.
	ErrPassInFlight = errors.New("reminder pass already in flight")
	// ErrSweepInFlight is returned by RunAll and StartSweep while a sweep is running.
	ErrSweepInFlight = errors.New("reminder sweep already in flight")
)

const (
	channelEmail = "email"
	channelSMS   = "sms"

	defaultPageSize     = 100
	defaultPassTimeout  = time.Minute
	defaultSweepTimeout = 10 * time.Minute

	saveAttempts = 3
)

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	// ReplaceNotifications fails with domain.ErrConflict when the list was
	// written after version was read.
	ReplaceNotifications(ctx context.Context, userID string, notifications []domain.Notification, version int64) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

type subscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
}

type mailer interface {
	SendEmail(ctx context.Context, msg smtp.Message) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Recorder receives pass outcomes. The zero Deps uses a no-op recorder.
type Recorder interface {
	PassCompleted(created int, err error)
	DeliveryFailed(channel string)
	PassSkipped(reason string)
	SweepFinished(seconds float64)
}

// Clock returns the current instant.
type Clock func() time.Time

// Result summarises one pass.
type Result struct {
	Created      []domain.Notification
	Written      bool
	EmailsSent   int
	EmailsFailed int
	SMSSent      int
	SMSFailed    int
}

type Deps struct {
	Users            userStore
	Subscriptions    subscriptionStore
	Mailer           mailer
	SMS              smsSender // optional
	Metrics          Recorder  // optional
	Log              logrus.FieldLogger
	Clock            Clock          // defaults to time.Now
	Location         *time.Location // decides the calendar day of "today"; defaults to UTC
	MaxNotifications int            // lowers the cap; never above domain.MaxNotifications
	PageSize         int32
	PassTimeout      time.Duration // bound for triggered passes
	SweepTimeout     time.Duration // bound for sweeps started with StartSweep
}

// Evaluator decides which reminders are due for a user, records them on the
// profile and dispatches best-effort email and SMS. Passes for the same user
// never overlap.
type Evaluator struct {
	users       userStore
	subs        subscriptionStore
	mailer      mailer
	sms         smsSender
	metrics     Recorder
	log         logrus.FieldLogger
	clock       Clock
	loc         *time.Location
	max         int
	pageSize     int32
	passTimeout  time.Duration
	sweepTimeout time.Duration

	mu sync.Mutex
	// inFlight holds users with a running pass; true means another pass was
	// requested meanwhile and the holder runs once more before releasing.
	inFlight map[string]bool
	sweeping sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

func NewEvaluator(deps Deps) *Evaluator {
	e := &Evaluator{
		users:       deps.Users,
		subs:        deps.Subscriptions,
		mailer:      deps.Mailer,
		sms:         deps.SMS,
		metrics:     deps.Metrics,
		log:         deps.Log,
		clock:       deps.Clock,
		loc:         deps.Location,
		max:         deps.MaxNotifications,
		pageSize:    deps.PageSize,
		passTimeout:  deps.PassTimeout,
		sweepTimeout: deps.SweepTimeout,
		inFlight:     make(map[string]bool),
	}
	if e.metrics == nil {
		e.metrics = nopRecorder{}
	}
	if e.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		e.log = l
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.max <= 0 || e.max > domain.MaxNotifications {
		e.max = domain.MaxNotifications
	}
	if e.pageSize <= 0 {
		e.pageSize = defaultPageSize
	}
	if e.passTimeout <= 0 {
		e.passTimeout = defaultPassTimeout
	}
	if e.sweepTimeout <= 0 {
		e.sweepTimeout = defaultSweepTimeout
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Evaluate runs one pass for userID. If another pass for the same user has
// not finished it returns ErrPassInFlight and the running pass evaluates the
// user once more when it is done, so a data change is never missed.
func (e *Evaluator) Evaluate(ctx context.Context, userID string) (Result, error) {
	if !e.acquire(userID) {
		e.metrics.PassSkipped("in_flight")
		return Result{}, ErrPassInFlight
	}

	var res Result
	for {
		r, err := e.pass(ctx, userID)
		e.metrics.PassCompleted(len(r.Created), err)
		res.absorb(r)
		if !e.settle(userID) {
			return res, err
		}
		if ctx.Err() != nil {
			e.release(userID)
			return res, err
		}
		e.log.WithField("user_id", userID).Debug("pass requested while running, evaluating again")
	}
}

// RunAll evaluates every enabled user. Per-user failures are logged and do not
// stop the sweep; only a failing user scan aborts it.
func (e *Evaluator) RunAll(ctx context.Context) error {
	if !e.sweeping.TryLock() {
		e.metrics.PassSkipped("sweep_in_flight")
		return ErrSweepInFlight
	}
	defer e.sweeping.Unlock()
	return e.sweep(ctx)
}

// StartSweep runs a sweep in the background on the evaluator's own context,
// bounded by the sweep timeout. It returns ErrSweepInFlight if one is running.
func (e *Evaluator) StartSweep() error {
	if !e.sweeping.TryLock() {
		e.metrics.PassSkipped("sweep_in_flight")
		return ErrSweepInFlight
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer e.sweeping.Unlock()
		ctx, cancel := context.WithTimeout(e.ctx, e.sweepTimeout)
		defer cancel()
		if err := e.sweep(ctx); err != nil {
			e.log.WithError(err).Error("reminder sweep failed")
		}
	}()
	return nil
}

func (e *Evaluator) sweep(ctx context.Context) error {
	start := time.Now()
	defer func() { e.metrics.SweepFinished(time.Since(start).Seconds()) }()

	var users, created, failed int
	cursor := ""
	for {
		page, next, err := e.users.ScanPage(ctx, e.pageSize, cursor)
		if err != nil {
			return fmt.Errorf("scan users: %w", err)
		}
		for _, u := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			users++
			res, err := e.Evaluate(ctx, u.UserID)
			switch {
			case errors.Is(err, ErrPassInFlight):
				e.log.WithField("user_id", u.UserID).Debug("reminder pass already running, skipped")
			case err != nil:
				failed++
				e.log.WithError(err).WithField("user_id", u.UserID).Error("reminder pass failed")
			default:
				created += len(res.Created)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	e.log.WithFields(logrus.Fields{
		"users":   users,
		"created": created,
		"failed":  failed,
	}).Info("reminder sweep finished")
	return nil
}

// Trigger schedules a pass for userID in the background, e.g. after the user
// changed a subscription or their preferences. Errors are logged.
func (e *Evaluator) Trigger(userID string) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(e.ctx, e.passTimeout)
		defer cancel()

		log := e.log.WithField("user_id", userID)
		res, err := e.Evaluate(ctx, userID)
		switch {
		case errors.Is(err, ErrPassInFlight):
			log.Debug("reminder pass already running, follow-up queued")
		case err != nil:
			log.WithError(err).Warn("triggered reminder pass failed")
		case len(res.Created) > 0:
			log.WithField("created", len(res.Created)).Info("triggered reminder pass recorded notifications")
		}
	}()
}

// Wait blocks until every triggered pass has returned.
func (e *Evaluator) Wait() {
	e.pending.Wait()
}

// Close cancels triggered passes that are still running and waits for them.
func (e *Evaluator) Close() {
	e.cancel()
	e.pending.Wait()
}

func (e *Evaluator) acquire(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[userID]; busy {
		e.inFlight[userID] = true
		return false
	}
	e.inFlight[userID] = false
	return true
}

// settle releases userID unless a pass was requested while it was held. In
// that case the caller keeps the slot and must run again.
func (e *Evaluator) settle(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[userID] {
		e.inFlight[userID] = false
		return true
	}
	delete(e.inFlight, userID)
	return false
}

func (e *Evaluator) release(userID string) {
	e.mu.Lock()
	delete(e.inFlight, userID)
	e.mu.Unlock()
}

func (e *Evaluator) pass(ctx context.Context, userID string) (Result, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load user: %w", err)
	}
	prefs := user.Preferences()
	if prefs.ChannelsDisabled() {
		return Result{}, nil
	}
	subs, err := e.subs.ListByUser(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("list subscriptions: %w", err)
	}

	now := e.clock()
	today := domain.DateOf(now.In(e.loc))
	seen := newSeenSet(user.Notifications)
	log := e.log.WithField("user_id", userID)

	var res Result
	for i := range subs {
		sub := &subs[i]
		if !sub.Status.IsBilling() || sub.NextBillingDate.IsZero() {
			continue
		}
		days := today.DaysUntil(sub.NextBillingDate)
		if !prefs.HasReminderDay(days) {
			continue
		}
		key := domain.ReminderKey{SubscriptionID: sub.SubscriptionID, DayOffset: days}
		if seen.has(key) {
			continue
		}
		seen.add(key)

		typ, title, message := compose(sub, days)
		n := domain.Notification{
			ID:             key.String(),
			SubscriptionID: sub.SubscriptionID,
			DayOffset:      days,
			Type:           typ,
			Title:          title,
			Message:        message,
			CreatedAt:      now.UTC(),
			Read:           false,
		}
		res.Created = append(res.Created, n)

		if prefs.EmailEnabled && e.mailer != nil && user.Email != "" {
			if err := e.sendEmail(ctx, user.Email, n, sub); err != nil {
				res.EmailsFailed++
				e.metrics.DeliveryFailed(channelEmail)
				log.WithError(err).WithField("subscription_id", sub.SubscriptionID).Warn("reminder email failed")
			} else {
				res.EmailsSent++
			}
		}
		if prefs.SMSEnabled && e.sms != nil && user.Phone != nil && *user.Phone != "" {
			if err := e.sms.SendSMS(ctx, *user.Phone, smsText(n)); err != nil {
				res.SMSFailed++
				e.metrics.DeliveryFailed(channelSMS)
				log.WithError(err).WithField("subscription_id", sub.SubscriptionID).Warn("reminder sms failed")
			} else {
				res.SMSSent++
			}
		}
	}

	if len(res.Created) == 0 {
		return res, nil
	}
	written, err := e.save(ctx, user, res.Created)
	if err != nil {
		return Result{}, fmt.Errorf("save notifications: %w", err)
	}
	res.Written = written
	return res, nil
}

// save merges fresh into the stored list and writes it back guarded by the
// version it was read at. A concurrent write (mark read, clear all) makes it
// reload the profile and merge again instead of overwriting that change.
func (e *Evaluator) save(ctx context.Context, user *domain.User, fresh []domain.Notification) (bool, error) {
	for attempt := 1; ; attempt++ {
		merged := Merge(fresh, user.Notifications, e.max)
		err := e.users.ReplaceNotifications(ctx, user.UserID, merged, user.NotificationsVersion)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == saveAttempts {
			return false, err
		}
		if user, err = e.users.Get(ctx, user.UserID); err != nil {
			return false, err
		}
		fresh = unseen(fresh, user.Notifications)
		if len(fresh) == 0 {
			return false, nil
		}
	}
}

func unseen(fresh, existing []domain.Notification) []domain.Notification {
	seen := newSeenSet(existing)
	out := fresh[:0:0]
	for _, n := range fresh {
		if k, ok := n.Key(); ok && seen.has(k) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (e *Evaluator) sendEmail(ctx context.Context, to string, n domain.Notification, sub *domain.Subscription) error {
	html, text, err := reminderEmail(n, sub)
	if err != nil {
		return err
	}
	return e.mailer.SendEmail(ctx, smtp.Message{To: to, Subject: n.Title, HTML: html, Text: text})
}

// Merge puts fresh in front of existing, orders the result newest first by
// created_at and keeps at most max entries. Entries with equal timestamps keep
// their relative order.
func Merge(fresh, existing []domain.Notification, max int) []domain.Notification {
	merged := make([]domain.Notification, 0, len(fresh)+len(existing))
	merged = append(merged, fresh...)
	merged = append(merged, existing...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if len(merged) > max {
		merged = merged[:max]
	}
	return merged
}

// seenSet answers "was this reminder already delivered" from both the
// structured key and the raw id of stored notifications.
type seenSet struct {
	keys map[domain.ReminderKey]struct{}
	ids  map[string]struct{}
}

func newSeenSet(existing []domain.Notification) seenSet {
	s := seenSet{
		keys: make(map[domain.ReminderKey]struct{}, len(existing)),
		ids:  make(map[string]struct{}, len(existing)),
	}
	for _, n := range existing {
		s.ids[n.ID] = struct{}{}
		if k, ok := n.Key(); ok {
			s.keys[k] = struct{}{}
		} else if k, ok := domain.ParseReminderKey(n.ID); ok {
			s.keys[k] = struct{}{}
		}
	}
	return s
}

func (s seenSet) has(k domain.ReminderKey) bool {
	if _, ok := s.keys[k]; ok {
		return true
	}
	_, ok := s.ids[k.String()]
	return ok
}

func (s seenSet) add(k domain.ReminderKey) {
	s.keys[k] = struct{}{}
	s.ids[k.String()] = struct{}{}
}

func (r *Result) absorb(o Result) {
	r.Created = append(r.Created, o.Created...)
	r.Written = r.Written || o.Written
	r.EmailsSent += o.EmailsSent
	r.EmailsFailed += o.EmailsFailed
	r.SMSSent += o.SMSSent
	r.SMSFailed += o.SMSFailed
}

type nopRecorder struct{}

func (nopRecorder) PassCompleted(int, error) {}
func (nopRecorder) DeliveryFailed(string)    {}
func (nopRecorder) PassSkipped(string)       {}
func (nopRecorder) SweepFinished(float64)    {}
