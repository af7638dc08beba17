package domain

import (
	"fmt"
	"strings"
	"time"
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether both components are zero, which the store uses for
// "not yet resolved".
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}

// ForecastDay is one provider day-level summary.
type ForecastDay struct {
	Time        time.Time `json:"time"`
	TempDay     float64   `json:"temp_day"` // °F
	Description string    `json:"description"`
	Pop         float64   `json:"pop"`  // 0.0–1.0
	Snow        float64   `json:"snow"` // 0 when the provider omits it
	Rain        float64   `json:"rain"` // 0 when the provider omits it
}

// Forecast is a chronologically ordered run of forecast days; index 0 is today.
type Forecast struct {
	Coordinates Coordinates   `json:"coordinates"`
	Days        []ForecastDay `json:"days"`
}

// Tomorrow returns the day at index 1.
func (f Forecast) Tomorrow() (ForecastDay, error) {
	if len(f.Days) < 2 {
		return ForecastDay{}, fmt.Errorf("%w: expected at least 2 days of forecast, got %d",
			ErrIncompleteForecast, len(f.Days))
	}
	return f.Days[1], nil
}

// Week returns up to the first seven days.
func (f Forecast) Week() []ForecastDay {
	if len(f.Days) > 7 {
		return f.Days[:7]
	}
	return f.Days
}

// Subscriber is a read-only view of a stored subscription.
type Subscriber struct {
	ID            int64       `json:"id"`
	Email         string      `json:"email"`
	Location      string      `json:"location"`
	YardSize      float64     `json:"yard_size"` // acres
	ElevationFeet float64     `json:"elevation"`
	Coordinates   Coordinates `json:"coordinates"`
	Active        bool        `json:"active"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Precaution is one advisory line produced by a rule match.
type Precaution string

// AnalyzedDay pairs a forecast day with the precautions derived from it.
type AnalyzedDay struct {
	Day         ForecastDay
	Precautions []Precaution
}

// Report is a rendered notification. It is built and sent within a single
// attempt and never stored.
type Report struct {
	Kind    ReportKind
	To      string
	Subject string
	Body    string // HTML
}

// ReportKind selects the daily or weekly report.
type ReportKind string

const (
	ReportDaily  ReportKind = "daily"
	ReportWeekly ReportKind = "weekly"
)

// ParseReportKind accepts "daily" or "weekly", case-insensitively.
func ParseReportKind(s string) (ReportKind, error) {
	switch ReportKind(strings.ToLower(strings.TrimSpace(s))) {
	case ReportDaily:
		return ReportDaily, nil
	case ReportWeekly:
		return ReportWeekly, nil
	default:
		return "", fmt.Errorf("unknown report kind %q", s)
	}
}
