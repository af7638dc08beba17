package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/config"
	"github.com/couchcryptid/yard-weather-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sunday 2025-03-09, one minute before the daily slot.
var start = time.Date(2025, 3, 9, 7, 59, 0, 0, time.UTC)

func newTestScheduler(clock clockwork.Clock) *Scheduler {
	return New(time.UTC, time.Minute, clock, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestScheduler_TickFiresDueJobsOnce(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(clock)

	var daily, weekly atomic.Int32
	s.Add("daily", Daily(eight), func(context.Context) error { daily.Add(1); return nil })
	s.Add("weekly", Weekly(time.Sunday, config.ClockTime{Hour: 9}), func(context.Context) error { weekly.Add(1); return nil })
	for _, j := range s.jobs {
		j.next = j.trigger.Next(s.now())
	}

	s.tick(context.Background())
	s.wg.Wait()
	assert.Equal(t, int32(0), daily.Load(), "not due yet")

	clock.Advance(time.Minute)
	s.tick(context.Background())
	s.wg.Wait()
	assert.Equal(t, int32(1), daily.Load())

	clock.Advance(time.Minute)
	s.tick(context.Background())
	s.wg.Wait()
	assert.Equal(t, int32(1), daily.Load(), "fires once per slot")

	clock.Advance(time.Hour)
	s.tick(context.Background())
	s.wg.Wait()
	assert.Equal(t, int32(1), weekly.Load())

	// A missed stretch fires the job once, not once per missed slot.
	clock.Advance(72 * time.Hour)
	s.tick(context.Background())
	s.wg.Wait()
	assert.Equal(t, int32(2), daily.Load())
	assert.Equal(t, time.Date(2025, 3, 13, 8, 0, 0, 0, time.UTC), s.jobs[0].next)
}

func TestScheduler_SkipsWhileInProgress(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(clock)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var runs atomic.Int32
	s.Add("daily", Daily(eight), func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})
	s.jobs[0].next = s.jobs[0].trigger.Next(s.now())

	clock.Advance(time.Minute)
	s.tick(context.Background())
	<-started

	clock.Advance(24 * time.Hour)
	s.tick(context.Background())

	close(release)
	s.wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.ScheduleSkips.WithLabelValues("daily")), 0)
	assert.False(t, s.jobs[0].running.Load())
}

func TestScheduler_JobErrorDoesNotStopScheduling(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(clock)

	var runs atomic.Int32
	s.Add("daily", Daily(eight), func(context.Context) error {
		runs.Add(1)
		return errors.New("list active subscribers: database is locked")
	})
	s.jobs[0].next = s.jobs[0].trigger.Next(s.now())

	for i := 0; i < 2; i++ {
		clock.Advance(24 * time.Hour)
		s.tick(context.Background())
		s.wg.Wait()
	}
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_RunUntilCancelled(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(clock)

	fired := make(chan struct{}, 1)
	s.Add("daily", Daily(eight), func(ctx context.Context) error {
		assert.NoError(t, ctx.Err(), "runs are not cancelled with the scheduler")
		fired <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	clock.Advance(time.Minute)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("daily job did not fire")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_ShutdownWaitsForInFlightRun(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	s := newTestScheduler(clock)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	s.Add("daily", Daily(eight), func(context.Context) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	clock.Advance(time.Minute)
	<-started

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned before the in-flight job finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	assert.True(t, finished.Load())
}
