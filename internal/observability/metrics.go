package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "yard_weather"

// Metrics holds the Prometheus counters, histograms, and gauges for report dispatch.
type Metrics struct {
	// Dispatch metrics. Failure reason is domain.ErrorKind.
	ReportsSent     *prometheus.CounterVec
	ReportFailures  *prometheus.CounterVec
	BatchRuns       *prometheus.CounterVec
	BatchDuration   *prometheus.HistogramVec
	BatchInProgress *prometheus.GaugeVec
	ScheduleSkips   *prometheus.CounterVec

	// Provider metrics.
	ProviderRequests  *prometheus.CounterVec   // labels: api={geocode,forecast}, outcome={success,error}
	ProviderDuration  *prometheus.HistogramVec // labels: api
	GeocodeCache      *prometheus.CounterVec   // labels: result={hit,miss}
	OutcomesPublished prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReportsSent,
		m.ReportFailures,
		m.BatchRuns,
		m.BatchDuration,
		m.BatchInProgress,
		m.ScheduleSkips,
		m.ProviderRequests,
		m.ProviderDuration,
		m.GeocodeCache,
		m.OutcomesPublished,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that are not registered with any
// registry, for one-shot processes that never serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_sent_total",
			Help:      "Reports delivered to the mail relay, by kind.",
		}, []string{"kind"}),
		ReportFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_failures_total",
			Help:      "Per-subscriber pipeline failures, by kind and error kind.",
		}, []string{"kind", "reason"}),
		BatchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_runs_total",
			Help:      "Completed batch runs over the active subscriber set.",
		}, []string{"kind"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a complete batch run.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		BatchInProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_in_progress",
			Help:      "1 while a batch run of the given kind is executing.",
		}, []string{"kind"}),
		ScheduleSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_skips_total",
			Help:      "Scheduled triggers skipped because the previous run was still in progress.",
		}, []string{"job"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "OpenWeather API requests by API and outcome.",
		}, []string{"api", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "OpenWeather API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"api"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		OutcomesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcome_events_published_total",
			Help:      "Run-outcome events written to Kafka.",
		}),
	}
}
