package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/couchcryptid/yard-weather-service/internal/observability"
)

// Forecaster implements domain.ForecastFetcher using the One Call 3.0 API.
type Forecaster struct {
	t *transport
}

// NewForecaster creates a forecast client.
func NewForecaster(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Forecaster {
	return &Forecaster{t: newTransport("forecast", apiKey, baseURL, timeout, metrics, logger)}
}

// Forecast fetches the daily forecast (8 days from One Call) in imperial units.
// Every failure wraps domain.ErrForecastUnavailable and carries the provider
// message when there is one.
func (f *Forecaster) Forecast(ctx context.Context, at domain.Coordinates) (domain.Forecast, error) {
	params := url.Values{
		"lat":     {strconv.FormatFloat(at.Lat, 'f', -1, 64)},
		"lon":     {strconv.FormatFloat(at.Lon, 'f', -1, 64)},
		"units":   {"imperial"},
		"exclude": {"current,minutely,hourly,alerts"},
	}

	resp, err := f.t.get(ctx, "/data/3.0/onecall", params)
	if err != nil {
		if msg := providerMessage(resp.body); msg != "" {
			return domain.Forecast{}, fmt.Errorf("%w: API Error: %s", domain.ErrForecastUnavailable, msg)
		}
		return domain.Forecast{}, fmt.Errorf("%w: failed to fetch weather data: %v", domain.ErrForecastUnavailable, err)
	}
	if resp.status != http.StatusOK {
		return domain.Forecast{}, fmt.Errorf("%w: API Error: %s", domain.ErrForecastUnavailable, statusError(resp))
	}

	var body oneCallResponse
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return domain.Forecast{}, fmt.Errorf("%w: invalid response from weather API: %v", domain.ErrForecastUnavailable, err)
	}
	if len(body.Daily) == 0 {
		if body.Message != "" {
			return domain.Forecast{}, fmt.Errorf("%w: API Error: %s", domain.ErrForecastUnavailable, body.Message)
		}
		return domain.Forecast{}, fmt.Errorf("%w: no daily forecast data in API response", domain.ErrForecastUnavailable)
	}

	days := make([]domain.ForecastDay, len(body.Daily))
	for i, d := range body.Daily {
		day, err := d.toDomain(i)
		if err != nil {
			return domain.Forecast{}, err
		}
		days[i] = day
	}

	f.t.logger.Debug("forecast received", "lat", at.Lat, "lon", at.Lon, "days", len(days))
	return domain.Forecast{Coordinates: at, Days: days}, nil
}

// One Call 3.0 response types. Required fields are pointers so their absence
// is detected instead of defaulting to zero.

type oneCallResponse struct {
	Message string       `json:"message"`
	Daily   []dailyEntry `json:"daily"`
}

type dailyEntry struct {
	Dt   int64 `json:"dt"`
	Temp *struct {
		Day *float64 `json:"day"`
	} `json:"temp"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
	Pop  *float64 `json:"pop"`
	Snow float64  `json:"snow"`
	Rain float64  `json:"rain"`
}

func (d dailyEntry) toDomain(index int) (domain.ForecastDay, error) {
	missing := func(field string) error {
		return fmt.Errorf("%w: daily[%d] is missing %s", domain.ErrForecastUnavailable, index, field)
	}
	if d.Temp == nil || d.Temp.Day == nil {
		return domain.ForecastDay{}, missing("temp.day")
	}
	if len(d.Weather) == 0 || d.Weather[0].Description == nil {
		return domain.ForecastDay{}, missing("weather[0].description")
	}
	if d.Pop == nil {
		return domain.ForecastDay{}, missing("pop")
	}
	return domain.ForecastDay{
		Time:        time.Unix(d.Dt, 0).UTC(),
		TempDay:     *d.Temp.Day,
		Description: *d.Weather[0].Description,
		Pop:         *d.Pop,
		Snow:        d.Snow,
		Rain:        d.Rain,
	}, nil
}
