package domain

import "errors"

// Error taxonomy. Adapters wrap these with context so callers can match on
// errors.Is while the message keeps the provider detail.
var (
	ErrGeocode             = errors.New("geocode failed")
	ErrForecastUnavailable = errors.New("forecast unavailable")
	ErrAuthentication      = errors.New("mail relay authentication failed")
	ErrDelivery            = errors.New("delivery failed")
	ErrIncompleteForecast  = errors.New("incomplete forecast")
	ErrSubscriberNotFound  = errors.New("subscriber not found")
)

// ErrorKind returns a short stable label for err, used in metrics, events and
// API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrGeocode):
		return "geocode"
	case errors.Is(err, ErrForecastUnavailable):
		return "forecast_unavailable"
	case errors.Is(err, ErrIncompleteForecast):
		return "incomplete_forecast"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrDelivery):
		return "delivery"
	case errors.Is(err, ErrSubscriberNotFound):
		return "not_found"
	default:
		return "unknown"
	}
}
