package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	block chan struct{}
}

func (c *countingSweeper) RunAll(ctx context.Context) error {
	c.calls.Add(1)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestStart_RunsImmediately(t *testing.T) {
	sw := &countingSweeper{}
	s := New(sw, quietLogger(), "@every 1h", time.UTC, time.Minute)
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return sw.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestStart_InvalidSpec(t *testing.T) {
	s := New(&countingSweeper{}, quietLogger(), "not a spec", time.UTC, time.Minute)
	assert.Error(t, s.Start())
}

func TestStop_CancelsRunningSweep(t *testing.T) {
	sw := &countingSweeper{block: make(chan struct{})}
	s := New(sw, quietLogger(), "@every 1h", time.UTC, time.Minute)
	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return sw.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
