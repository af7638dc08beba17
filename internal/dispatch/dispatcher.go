package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/couchcryptid/yard-weather-service/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SubscriberLister reads the active subscriber set.
type SubscriberLister interface {
	ListActive(ctx context.Context) ([]domain.Subscriber, error)
}

// Deliverer runs the single-subscriber pipeline. *Pipeline implements it.
type Deliverer interface {
	Deliver(ctx context.Context, kind domain.ReportKind, sub domain.Subscriber) error
}

// OutcomePublisher receives every finished run summary.
type OutcomePublisher interface {
	PublishSummary(ctx context.Context, s Summary) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency sets how many subscribers are processed at once. Values
// below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n < 1 {
			n = 1
		}
		d.concurrency = n
	}
}

// WithPublisher attaches a publisher for run outcomes.
func WithPublisher(p OutcomePublisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// Dispatcher runs a report kind over every active subscriber, isolating
// per-subscriber failures.
type Dispatcher struct {
	subscribers SubscriberLister
	pipeline    Deliverer
	publisher   OutcomePublisher
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewDispatcher creates a Dispatcher. By default it is sequential and publishes nothing.
func NewDispatcher(subs SubscriberLister, p Deliverer, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subscribers: subs,
		pipeline:    p,
		concurrency: 1,
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunDaily sends tomorrow's report to every active subscriber.
func (d *Dispatcher) RunDaily(ctx context.Context) (Summary, error) {
	return d.Run(ctx, domain.ReportDaily)
}

// RunWeekly sends the seven-day report to every active subscriber.
func (d *Dispatcher) RunWeekly(ctx context.Context) (Summary, error) {
	return d.Run(ctx, domain.ReportWeekly)
}

// Run processes every active subscriber for kind. The only returned error is
// a failure to list subscribers; per-subscriber failures are logged and
// recorded in the summary. Cancelling ctx does not stop a started run.
func (d *Dispatcher) Run(ctx context.Context, kind domain.ReportKind) (Summary, error) {
	ctx = context.WithoutCancel(ctx)
	label := string(kind)

	summary := Summary{RunID: uuid.NewString(), Kind: kind, StartedAt: time.Now()}
	logger := d.logger.With("run_id", summary.RunID, "kind", label)

	d.metrics.BatchInProgress.WithLabelValues(label).Inc()
	defer d.metrics.BatchInProgress.WithLabelValues(label).Dec()

	subs, err := d.subscribers.ListActive(ctx)
	if err != nil {
		logger.Error("list active subscribers failed", "error", err)
		return summary, fmt.Errorf("list active subscribers: %w", err)
	}
	logger.Info("batch run started", "subscribers", len(subs), "concurrency", d.concurrency)

	summary.Results = make([]Result, len(subs))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, sub := range subs {
		g.Go(func() error {
			summary.Results[i] = d.deliverOne(ctx, logger, kind, sub)
			return nil
		})
	}
	_ = g.Wait()
	summary.FinishedAt = time.Now()

	d.metrics.BatchRuns.WithLabelValues(label).Inc()
	d.metrics.BatchDuration.WithLabelValues(label).Observe(summary.Duration().Seconds())
	logger.Info("batch run finished",
		"sent", summary.Sent(),
		"failed", len(summary.Failures()),
		"duration", summary.Duration(),
	)

	if d.publisher != nil {
		if err := d.publisher.PublishSummary(ctx, summary); err != nil {
			logger.Warn("publish run outcome failed", "error", err)
		}
	}
	return summary, nil
}

// deliverOne is the isolation boundary: nothing that happens for one
// subscriber, including a panic, escapes into the batch.
func (d *Dispatcher) deliverOne(ctx context.Context, logger *slog.Logger, kind domain.ReportKind, sub domain.Subscriber) (res Result) {
	start := time.Now()
	res.Subscriber = sub

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("pipeline panic: %v", r)
		}
		res.Duration = time.Since(start)

		if res.Err != nil {
			d.metrics.ReportFailures.WithLabelValues(string(kind), domain.ErrorKind(res.Err)).Inc()
			logger.Error("report failed",
				"subscriber", sub.Email,
				"error", res.Err,
				"error_kind", domain.ErrorKind(res.Err),
			)
			return
		}
		d.metrics.ReportsSent.WithLabelValues(string(kind)).Inc()
		logger.Debug("report sent", "subscriber", sub.Email, "duration", res.Duration)
	}()

	res.Err = d.pipeline.Deliver(ctx, kind, sub)
	return res
}
