// Package openweather implements domain.Geocoder and domain.ForecastFetcher
// against the OpenWeather Geocoding and One Call 3.0 APIs.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/observability"
	"github.com/sony/gobreaker/v2"
)

// DefaultBaseURL is the public OpenWeather API host.
const DefaultBaseURL = "https://api.openweathermap.org"

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 4 << 20

// response is a fully read provider reply.
type response struct {
	status int
	body   []byte
}

// transport performs GET requests against one OpenWeather API with a bounded
// timeout and a circuit breaker. It never retries.
type transport struct {
	api        string // metrics label, "geocode" or "forecast"
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[response]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func newTransport(api, apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *transport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &transport{
		api:        api,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
			Name:        "openweather-" + api,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		metrics: metrics,
		logger:  logger,
	}
}

// get issues the request and returns the reply for any status code. Transport
// failures, 5xx replies and an open breaker return an error; for 5xx the reply
// is returned alongside it so callers can surface the provider message.
func (t *transport) get(ctx context.Context, path string, params url.Values) (response, error) {
	t.logger.Debug("openweather request", "api", t.api, "path", path, "query", params.Encode())

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("appid", t.apiKey)
	fullURL := t.baseURL + path + "?" + q.Encode()

	start := time.Now()
	resp, err := t.breaker.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return response{}, fmt.Errorf("create request: %w", err)
		}
		r, err := t.httpClient.Do(req)
		if err != nil {
			// Drop the URL from the error; it carries the API key.
			var uerr *url.Error
			if errors.As(err, &uerr) {
				err = uerr.Err
			}
			return response{}, fmt.Errorf("%s request: %w", t.api, err)
		}
		defer r.Body.Close()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return response{}, fmt.Errorf("read response: %w", err)
		}
		res := response{status: r.StatusCode, body: body}
		if r.StatusCode >= http.StatusInternalServerError {
			return res, fmt.Errorf("openweather API error: status %d", r.StatusCode)
		}
		return res, nil
	})
	t.metrics.ProviderDuration.WithLabelValues(t.api).Observe(time.Since(start).Seconds())

	if err != nil || resp.status != http.StatusOK {
		t.metrics.ProviderRequests.WithLabelValues(t.api, "error").Inc()
	} else {
		t.metrics.ProviderRequests.WithLabelValues(t.api, "success").Inc()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		t.logger.Warn("openweather circuit open", "api", t.api)
		return resp, fmt.Errorf("%s API unavailable: %w", t.api, err)
	}
	return resp, err
}

// providerMessage extracts the "message" field OpenWeather puts in error
// bodies, e.g. {"cod":401,"message":"Invalid API key"}.
func providerMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Message
}

// statusError describes a non-200 reply, preferring the provider's message.
func statusError(resp response) string {
	if msg := providerMessage(resp.body); msg != "" {
		return msg
	}
	return fmt.Sprintf("status %d", resp.status)
}
