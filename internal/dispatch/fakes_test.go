package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
)

// --- fakes ---

type fakeGeocoder struct {
	mu     sync.Mutex
	coords map[string]domain.Coordinates
	calls  []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, location string) (domain.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, location)
	c, ok := g.coords[location]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("%w: could not find coordinates for location: %s", domain.ErrGeocode, location)
	}
	return c, nil
}

type fakeForecaster struct {
	forecasts map[domain.Coordinates]domain.Forecast
}

func (f *fakeForecaster) Forecast(_ context.Context, at domain.Coordinates) (domain.Forecast, error) {
	fc, ok := f.forecasts[at]
	if !ok {
		return domain.Forecast{}, fmt.Errorf("%w: API Error: Internal error", domain.ErrForecastUnavailable)
	}
	return fc, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Report
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, r domain.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, r)
	return nil
}

func (n *fakeNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, r := range n.sent {
		out[i] = r.To
	}
	return out
}

type fakeStore struct {
	subs []domain.Subscriber
	err  error
}

func (s *fakeStore) ListActive(context.Context) ([]domain.Subscriber, error) {
	return s.subs, s.err
}

var errStoreDown = errors.New("database is locked")
