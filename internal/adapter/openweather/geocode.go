package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/couchcryptid/yard-weather-service/internal/observability"
)

// zipRe matches a bare five-digit US ZIP code.
var zipRe = regexp.MustCompile(`^\d{5}$`)

// Geocoder implements domain.Geocoder using the OpenWeather Geocoding API.
type Geocoder struct {
	t *transport
}

// NewGeocoder creates a geocoding client.
func NewGeocoder(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Geocoder {
	return &Geocoder{t: newTransport("geocode", apiKey, baseURL, timeout, metrics, logger)}
}

// Geocode resolves a ZIP code (zip endpoint, country US) or a free-form place
// name (direct endpoint, best match only).
func (g *Geocoder) Geocode(ctx context.Context, location string) (domain.Coordinates, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return domain.Coordinates{}, fmt.Errorf("%w: empty location", domain.ErrGeocode)
	}

	if zipRe.MatchString(location) {
		return g.byZip(ctx, location)
	}
	return g.byName(ctx, location)
}

func (g *Geocoder) byZip(ctx context.Context, zip string) (domain.Coordinates, error) {
	resp, err := g.t.get(ctx, "/geo/1.0/zip", url.Values{"zip": {zip + ",US"}})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: failed to fetch coordinates: %v", domain.ErrGeocode, err)
	}
	if resp.status == http.StatusNotFound {
		return domain.Coordinates{}, fmt.Errorf("%w: could not find coordinates for location: %s", domain.ErrGeocode, zip)
	}
	if resp.status != http.StatusOK {
		return domain.Coordinates{}, fmt.Errorf("%w: failed to fetch coordinates: %s", domain.ErrGeocode, statusError(resp))
	}

	var p point
	if err := json.Unmarshal(resp.body, &p); err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: failed to parse coordinate data: %v", domain.ErrGeocode, err)
	}
	return p.coordinates(zip)
}

func (g *Geocoder) byName(ctx context.Context, name string) (domain.Coordinates, error) {
	resp, err := g.t.get(ctx, "/geo/1.0/direct", url.Values{"q": {name}, "limit": {"1"}})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: failed to fetch coordinates: %v", domain.ErrGeocode, err)
	}
	if resp.status != http.StatusOK {
		return domain.Coordinates{}, fmt.Errorf("%w: failed to fetch coordinates: %s", domain.ErrGeocode, statusError(resp))
	}

	var points []point
	if err := json.Unmarshal(resp.body, &points); err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: failed to parse coordinate data: %v", domain.ErrGeocode, err)
	}
	if len(points) == 0 {
		return domain.Coordinates{}, fmt.Errorf("%w: could not find coordinates for location: %s", domain.ErrGeocode, name)
	}
	return points[0].coordinates(name)
}

// OpenWeather geocoding response types. Latitude and longitude are pointers
// so a missing field is distinguishable from 0.

type point struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

func (p point) coordinates(location string) (domain.Coordinates, error) {
	if p.Lat == nil || p.Lon == nil {
		return domain.Coordinates{}, fmt.Errorf("%w: invalid coordinate data received for location %s", domain.ErrGeocode, location)
	}
	return domain.Coordinates{Lat: *p.Lat, Lon: *p.Lon}, nil
}
