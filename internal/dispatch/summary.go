package dispatch

import (
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
)

// Result is one subscriber's outcome within a batch run.
type Result struct {
	Subscriber domain.Subscriber
	Err        error
	Duration   time.Duration
}

// OK reports whether the report was handed to the relay.
func (r Result) OK() bool { return r.Err == nil }

// Summary is the outcome of one batch run. Results follow store order.
type Summary struct {
	RunID      string
	Kind       domain.ReportKind
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

// Sent returns the number of subscribers whose report was delivered.
func (s Summary) Sent() int {
	n := 0
	for _, r := range s.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Failures returns the results that carry an error.
func (s Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }
