package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/dispatch"
	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/couchcryptid/yard-weather-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	summaries []dispatch.Summary
	err       error
}

func (p *fakePublisher) PublishSummary(_ context.Context, s dispatch.Summary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, s)
	return p.err
}

// syncBuffer is an io.Writer safe for concurrent log handlers.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// batchABC returns subscribers A (valid), B (forecast fails), C (valid, needs geocoding).
func batchABC() (*fakeStore, *fakeGeocoder, *fakeForecaster) {
	store := &fakeStore{subs: []domain.Subscriber{
		{ID: 1, Email: "a@example.com", Location: "10001", Coordinates: coordsA, Active: true},
		{ID: 2, Email: "b@example.com", Location: "Atlantis", Coordinates: domain.Coordinates{Lat: 1, Lon: 1}, Active: true},
		{ID: 3, Email: "c@example.com", Location: "Denver, CO", Active: true},
	}}
	g := &fakeGeocoder{coords: map[string]domain.Coordinates{"Denver, CO": coordsC}}
	f := &fakeForecaster{forecasts: map[domain.Coordinates]domain.Forecast{
		coordsA: {Coordinates: coordsA, Days: days(8, domain.ForecastDay{TempDay: 40})},
		coordsC: {Coordinates: coordsC, Days: days(8, domain.ForecastDay{TempDay: 70})},
	}}
	return store, g, f
}

func TestDispatcher_RunDaily_IsolatesFailures(t *testing.T) {
	store, g, f := batchABC()
	n := &fakeNotifier{}
	logs := &syncBuffer{}
	metrics := observability.NewMetricsForTesting()
	pub := &fakePublisher{}

	d := dispatch.NewDispatcher(store, newPipeline(g, f, n),
		slog.New(slog.NewJSONHandler(logs, nil)), metrics, dispatch.WithPublisher(pub))

	summary, err := d.RunDaily(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a@example.com", "c@example.com"}, n.recipients())
	require.Len(t, summary.Results, 3)
	assert.True(t, summary.Results[0].OK())
	require.ErrorIs(t, summary.Results[1].Err, domain.ErrForecastUnavailable)
	assert.True(t, summary.Results[2].OK())
	assert.Equal(t, 2, summary.Sent())
	require.Len(t, summary.Failures(), 1)
	assert.Equal(t, "b@example.com", summary.Failures()[0].Subscriber.Email)

	assert.Equal(t, 1, strings.Count(logs.String(), `"msg":"report failed"`))
	assert.Contains(t, logs.String(), `"subscriber":"b@example.com"`)
	assert.Contains(t, logs.String(), summary.RunID)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, domain.ReportDaily, summary.Kind)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ReportsSent.WithLabelValues("daily")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReportFailures.WithLabelValues("daily", "forecast_unavailable")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BatchRuns.WithLabelValues("daily")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.BatchInProgress.WithLabelValues("daily")), 0)

	require.Len(t, pub.summaries, 1)
	assert.Equal(t, summary.RunID, pub.summaries[0].RunID)
}

func TestDispatcher_GeocodeFailureDoesNotAffectNextSubscriber(t *testing.T) {
	store := &fakeStore{subs: []domain.Subscriber{
		{Email: "zero@example.com", Location: "00000"},
		{Email: "a@example.com", Location: "10001", Coordinates: coordsA},
	}}
	_, g, f := batchABC()
	n := &fakeNotifier{}

	d := dispatch.NewDispatcher(store, newPipeline(g, f, n), slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	summary, err := d.RunWeekly(context.Background())
	require.NoError(t, err)

	require.ErrorIs(t, summary.Results[0].Err, domain.ErrGeocode)
	assert.True(t, summary.Results[1].OK())
	assert.Equal(t, []string{"a@example.com"}, n.recipients())
}

func TestDispatcher_StoreFailure(t *testing.T) {
	store := &fakeStore{err: errStoreDown}
	pub := &fakePublisher{}
	d := dispatch.NewDispatcher(store, &countingDeliverer{}, slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(), dispatch.WithPublisher(pub))

	_, err := d.RunDaily(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, pub.summaries)
}

func TestDispatcher_EmptySubscriberSet(t *testing.T) {
	d := dispatch.NewDispatcher(&fakeStore{}, &countingDeliverer{}, slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting())

	summary, err := d.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	assert.Zero(t, summary.Sent())
}

func TestDispatcher_PublishFailureIsNotFatal(t *testing.T) {
	store, g, f := batchABC()
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	d := dispatch.NewDispatcher(store, newPipeline(g, f, &fakeNotifier{}), slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(), dispatch.WithPublisher(pub))

	summary, err := d.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Results, 3)
}

// countingDeliverer fails for emails starting with "fail" and panics for "panic".
type countingDeliverer struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (c *countingDeliverer) Deliver(_ context.Context, _ domain.ReportKind, sub domain.Subscriber) error {
	c.calls.Add(1)
	cur := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if cur <= peak || c.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(c.delay)

	switch {
	case strings.HasPrefix(sub.Email, "panic"):
		panic("nil forecast")
	case strings.HasPrefix(sub.Email, "fail"):
		return fmt.Errorf("%w: connection refused", domain.ErrDelivery)
	}
	return nil
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	store := &fakeStore{subs: []domain.Subscriber{
		{Email: "panic@example.com"},
		{Email: "ok@example.com"},
	}}
	deliverer := &countingDeliverer{}
	d := dispatch.NewDispatcher(store, deliverer, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	summary, err := d.RunDaily(context.Background())
	require.NoError(t, err)
	require.Error(t, summary.Results[0].Err)
	assert.Contains(t, summary.Results[0].Err.Error(), "panic")
	assert.Equal(t, "unknown", domain.ErrorKind(summary.Results[0].Err))
	assert.True(t, summary.Results[1].OK())
}

func TestDispatcher_ConcurrentKeepsStoreOrder(t *testing.T) {
	subs := make([]domain.Subscriber, 12)
	for i := range subs {
		email := fmt.Sprintf("user%02d@example.com", i)
		if i%3 == 0 {
			email = "fail" + email
		}
		subs[i] = domain.Subscriber{ID: int64(i), Email: email}
	}
	deliverer := &countingDeliverer{delay: 10 * time.Millisecond}
	d := dispatch.NewDispatcher(&fakeStore{subs: subs}, deliverer, slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(), dispatch.WithConcurrency(4))

	summary, err := d.RunDaily(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(12), deliverer.calls.Load())
	assert.LessOrEqual(t, deliverer.peak.Load(), int32(4))
	require.Len(t, summary.Results, 12)
	for i, r := range summary.Results {
		assert.Equal(t, int64(i), r.Subscriber.ID)
		if i%3 == 0 {
			require.ErrorIs(t, r.Err, domain.ErrDelivery)
		} else {
			assert.True(t, r.OK())
		}
	}
	assert.Equal(t, 8, summary.Sent())
}

func TestDispatcher_SequentialByDefault(t *testing.T) {
	subs := []domain.Subscriber{{Email: "a@x.com"}, {Email: "b@x.com"}, {Email: "c@x.com"}}
	deliverer := &countingDeliverer{delay: 5 * time.Millisecond}
	d := dispatch.NewDispatcher(&fakeStore{subs: subs}, deliverer, slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting())

	_, err := d.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), deliverer.peak.Load())
}

func TestDispatcher_IgnoresCancellation(t *testing.T) {
	subs := []domain.Subscriber{{Email: "a@x.com"}, {Email: "b@x.com"}}
	deliverer := &countingDeliverer{}
	d := dispatch.NewDispatcher(&fakeStore{subs: subs}, deliverer, slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := d.RunDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent(), "a started run completes over the full set")
}
