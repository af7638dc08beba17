// Package scheduler fires the daily and weekly batch runs at their configured
// local times.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// RunFunc is the work a job performs when due.
type RunFunc func(ctx context.Context) error

type job struct {
	name    string
	trigger Trigger
	run     RunFunc
	next    time.Time
	running atomic.Bool
}

// Scheduler wakes every poll interval and starts any job whose due time has
// passed. A job whose previous run is still going is skipped for that slot.
type Scheduler struct {
	clock    clockwork.Clock
	loc      *time.Location
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	jobs []*job
	wg   sync.WaitGroup
}

// New creates a Scheduler evaluating triggers in loc. A nil clock means the
// real clock.
func New(loc *time.Location, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		clock:    clock,
		loc:      loc,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Add registers a job. It must be called before Run.
func (s *Scheduler) Add(name string, trigger Trigger, run RunFunc) {
	s.jobs = append(s.jobs, &job{name: name, trigger: trigger, run: run})
}

// Run blocks until ctx is cancelled, then waits for in-flight runs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.now()
	for _, j := range s.jobs {
		j.next = j.trigger.Next(now)
		s.logger.Info("job scheduled", "job", j.name, "schedule", j.trigger.String(), "next_run", j.next)
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for in-flight runs")
			s.wg.Wait()
			return nil
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

// tick starts every due job without waiting for it.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	for _, j := range s.jobs {
		if now.Before(j.next) {
			continue
		}
		j.next = j.trigger.Next(now)

		if !j.running.CompareAndSwap(false, true) {
			s.metrics.ScheduleSkips.WithLabelValues(j.name).Inc()
			s.logger.Warn("previous run still in progress, skipping", "job", j.name, "next_run", j.next)
			continue
		}

		next := j.next
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer j.running.Store(false)

			s.logger.Info("job started", "job", j.name)
			if err := j.run(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("job failed", "job", j.name, "error", err)
				return
			}
			s.logger.Info("job finished", "job", j.name, "next_run", next)
		}()
	}
}

func (s *Scheduler) now() time.Time {
	return s.clock.Now().In(s.loc)
}
