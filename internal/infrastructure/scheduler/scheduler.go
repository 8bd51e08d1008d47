package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper runs one reminder pass over every user.
type Sweeper interface {
	RunAll(ctx context.Context) error
}

// ReminderScheduler fires Sweeper.RunAll on a cron schedule. Overlapping
// ticks are skipped while a sweep is still running.
type ReminderScheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     logrus.FieldLogger
	spec    string
	timeout time.Duration

	// set by Start
	ctx     context.Context
	cancel  context.CancelFunc
	initial sync.WaitGroup
}

func New(sweeper Sweeper, log *logrus.Logger, spec string, loc *time.Location, timeout time.Duration) *ReminderScheduler {
	cronLog := cron.PrintfLogger(log)
	return &ReminderScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		sweeper: sweeper,
		log:     log.WithField("component", "reminder_scheduler"),
		spec:    spec,
		timeout: timeout,
	}
}

// Start registers the sweep job, runs one sweep immediately in the background
// and starts the cron engine. It returns an error for an invalid spec.
func (s *ReminderScheduler) Start() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	id, err := s.cron.AddFunc(s.spec, s.sweep)
	if err != nil {
		s.cancel()
		return err
	}
	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("reminder scheduler started")

	// First tick right away, through the same chain so it cannot overlap the cron run.
	job := s.cron.Entry(id).WrappedJob
	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		job.Run()
	}()
	return nil
}

// Stop halts the cron engine, cancels any running sweep and waits for it to return.
func (s *ReminderScheduler) Stop() {
	s.log.Info("stopping reminder scheduler")
	done := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	<-done.Done()
	s.initial.Wait()
	s.log.Info("reminder scheduler stopped")
}

func (s *ReminderScheduler) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.sweeper.RunAll(ctx); err != nil {
		s.log.WithError(err).Error("reminder sweep failed")
		return
	}
	s.log.WithField("elapsed", time.Since(start).String()).Debug("reminder sweep finished")
}
