// Package store provides read-only access to the subscriber records owned by
// the registration and admin layers.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
)

// Store is the subscriber reader the service depends on.
type Store interface {
	// ListActive returns active subscribers ordered by creation time, then id.
	ListActive(ctx context.Context) ([]domain.Subscriber, error)
	// Get returns the subscriber with the given email or an error wrapping
	// domain.ErrSubscriberNotFound.
	Get(ctx context.Context, email string) (domain.Subscriber, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "sqlite":
		return NewSQLite(ctx, dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// The table layout matches the one the registration app creates.
const (
	subscriberTable   = "subscriber"
	subscriberColumns = `id, email, location, yard_size, elevation, latitude, longitude, active, created_at`
)

func notFound(email string) error {
	return fmt.Errorf("%w: %s", domain.ErrSubscriberNotFound, email)
}
