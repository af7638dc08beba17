// Package kafka publishes batch run outcomes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/config"
	"github.com/couchcryptid/yard-weather-service/internal/dispatch"
	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/couchcryptid/yard-weather-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// Outcome is the JSON value of one event: a single subscriber's result in a run.
type Outcome struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	Subscriber string    `json:"subscriber"`
	Status     string    `json:"status"` // "sent" or "failed"
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// Writer produces outcome events. It implements dispatch.OutcomePublisher.
type Writer struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured outcome topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaOutcomeTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// PublishSummary writes one message per result in a single WriteMessages call.
// Messages are keyed by subscriber email so one subscriber's history stays on
// one partition.
func (w *Writer) PublishSummary(ctx context.Context, s dispatch.Summary) error {
	if len(s.Results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(s.Results))
	for i, r := range s.Results {
		msg, err := serializeToMessage(s, r)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write outcome events: %w", err)
	}
	w.metrics.OutcomesPublished.Add(float64(len(msgs)))
	w.logger.Debug("outcome events published", "run_id", s.RunID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func newOutcome(s dispatch.Summary, r dispatch.Result) Outcome {
	o := Outcome{
		RunID:      s.RunID,
		Kind:       string(s.Kind),
		Subscriber: r.Subscriber.Email,
		Status:     "sent",
		DurationMS: r.Duration.Milliseconds(),
		FinishedAt: s.FinishedAt.UTC(),
	}
	if r.Err != nil {
		o.Status = "failed"
		o.ErrorKind = domain.ErrorKind(r.Err)
		o.Error = r.Err.Error()
	}
	return o
}

func serializeToMessage(s dispatch.Summary, r dispatch.Result) (kafkago.Message, error) {
	data, err := json.Marshal(newOutcome(s, r))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize outcome event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.Subscriber.Email),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "report_kind", Value: []byte(s.Kind)},
			{Key: "run_id", Value: []byte(s.RunID)},
		},
	}, nil
}
