// Package dispatch runs the per-subscriber report pipeline and the batch
// dispatcher that applies it to every active subscriber.
package dispatch

import (
	"context"
	"fmt"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
)

// Pipeline builds and delivers one subscriber's report:
// geocode (if needed), fetch, analyze, render, notify.
type Pipeline struct {
	geocoder  domain.Geocoder
	forecasts domain.ForecastFetcher
	notifier  domain.Notifier
	renderer  *domain.Renderer
}

// NewPipeline creates a Pipeline from its collaborators.
func NewPipeline(g domain.Geocoder, f domain.ForecastFetcher, n domain.Notifier, r *domain.Renderer) *Pipeline {
	return &Pipeline{geocoder: g, forecasts: f, notifier: n, renderer: r}
}

// Build renders the report for sub without sending it. A subscriber without
// resolved coordinates is geocoded from its location label first.
func (p *Pipeline) Build(ctx context.Context, kind domain.ReportKind, sub domain.Subscriber) (domain.Report, error) {
	coords := sub.Coordinates
	if coords.IsZero() {
		var err error
		if coords, err = p.geocoder.Geocode(ctx, sub.Location); err != nil {
			return domain.Report{}, err
		}
	}

	forecast, err := p.forecasts.Forecast(ctx, coords)
	if err != nil {
		return domain.Report{}, err
	}

	switch kind {
	case domain.ReportDaily:
		tomorrow, err := forecast.Tomorrow()
		if err != nil {
			return domain.Report{}, err
		}
		precautions := domain.Analyze(tomorrow, sub.ElevationFeet)
		return p.renderer.RenderDaily(sub.Email, sub.Location, tomorrow, precautions), nil
	case domain.ReportWeekly:
		days := domain.AnalyzeDays(forecast.Week(), sub.ElevationFeet)
		return p.renderer.RenderWeekly(sub.Email, sub.Location, days), nil
	default:
		return domain.Report{}, fmt.Errorf("unknown report kind %q", kind)
	}
}

// Deliver builds the report and hands it to the notifier. Errors are returned
// unchanged so on-demand callers see the provider message.
func (p *Pipeline) Deliver(ctx context.Context, kind domain.ReportKind, sub domain.Subscriber) error {
	report, err := p.Build(ctx, kind, sub)
	if err != nil {
		return err
	}
	return p.notifier.Send(ctx, report)
}
