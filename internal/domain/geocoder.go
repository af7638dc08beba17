package domain

import "context"

// Geocoder resolves a ZIP code or free-form place name to coordinates.
type Geocoder interface {
	// Geocode returns an error wrapping ErrGeocode when the location cannot be resolved.
	Geocode(ctx context.Context, location string) (Coordinates, error)
}

// ForecastFetcher retrieves a multi-day forecast for a point.
type ForecastFetcher interface {
	// Forecast returns an error wrapping ErrForecastUnavailable on any failure.
	Forecast(ctx context.Context, at Coordinates) (Forecast, error)
}

// Notifier delivers a rendered report to its recipient.
type Notifier interface {
	// Send returns an error wrapping ErrAuthentication or ErrDelivery.
	Send(ctx context.Context, report Report) error
}
