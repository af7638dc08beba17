package scheduler

import (
	"fmt"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/config"
)

// Trigger computes the next due time strictly after a given instant. The
// instant's location is the schedule's time zone.
type Trigger interface {
	Next(after time.Time) time.Time
	String() string
}

type daily struct {
	at config.ClockTime
}

// Daily fires every day at the given local time.
func Daily(at config.ClockTime) Trigger { return daily{at: at} }

func (d daily) Next(after time.Time) time.Time {
	y, m, day := after.Date()
	next := time.Date(y, m, day, d.at.Hour, d.at.Minute, 0, 0, after.Location())
	if !next.After(after) {
		next = time.Date(y, m, day+1, d.at.Hour, d.at.Minute, 0, 0, after.Location())
	}
	return next
}

func (d daily) String() string { return "daily at " + d.at.String() }

type weekly struct {
	day time.Weekday
	at  config.ClockTime
}

// Weekly fires once a week on day at the given local time.
func Weekly(day time.Weekday, at config.ClockTime) Trigger { return weekly{day: day, at: at} }

func (w weekly) Next(after time.Time) time.Time {
	y, m, d := after.Date()
	ahead := (int(w.day) - int(after.Weekday()) + 7) % 7
	next := time.Date(y, m, d+ahead, w.at.Hour, w.at.Minute, 0, 0, after.Location())
	if !next.After(after) {
		next = time.Date(y, m, d+ahead+7, w.at.Hour, w.at.Minute, 0, 0, after.Location())
	}
	return next
}

func (w weekly) String() string { return fmt.Sprintf("every %s at %s", w.day, w.at) }
