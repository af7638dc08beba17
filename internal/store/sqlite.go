package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS subscriber (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email VARCHAR(120) NOT NULL UNIQUE,
	location VARCHAR(100) NOT NULL,
	yard_size FLOAT NOT NULL,
	elevation FLOAT NOT NULL,
	latitude FLOAT,
	longitude FLOAT,
	active BOOLEAN DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// SQLite reads subscribers from a SQLite database file using the pure Go
// modernc.org/sqlite driver.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the
// subscriber table exists.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create subscriber table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriberColumns+` FROM `+subscriberTable+` WHERE active = 1 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		sub, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	return out, nil
}

func (s *SQLite) Get(ctx context.Context, email string) (domain.Subscriber, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM `+subscriberTable+` WHERE email = ?`, email)
	sub, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscriber{}, notFound(email)
	}
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("get subscriber: %w", err)
	}
	return sub, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (domain.Subscriber, error) {
	var (
		sub      domain.Subscriber
		lat, lon sql.NullFloat64
		active   sql.NullBool
		created  any
	)
	if err := row.Scan(&sub.ID, &sub.Email, &sub.Location, &sub.YardSize, &sub.ElevationFeet,
		&lat, &lon, &active, &created); err != nil {
		return domain.Subscriber{}, err
	}
	sub.Coordinates = domain.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	sub.Active = !active.Valid || active.Bool
	sub.CreatedAt = parseTimestamp(created)
	return sub, nil
}

// sqliteLayouts are the timestamp encodings written by SQLAlchemy, SQLite's
// CURRENT_TIMESTAMP and Go drivers.
var sqliteLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// parseTimestamp converts a DATETIME column value; unparseable values yield
// the zero time.
func parseTimestamp(v any) time.Time {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s = t
	case []byte:
		s = string(t)
	case int64:
		return time.Unix(t, 0).UTC()
	default:
		return time.Time{}
	}
	for _, layout := range sqliteLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
