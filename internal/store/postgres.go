package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres reads subscribers from PostgreSQL. The table is owned by the
// registration layer and is not created here.
type Postgres struct {
	db    DBTX
	ping  func(context.Context) error
	close func()
}

// NewPostgres connects a pool to dsn and verifies connectivity.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: pool, ping: pool.Ping, close: pool.Close}, nil
}

// NewPostgresFromDB wraps an existing connection or transaction.
func NewPostgresFromDB(db DBTX) *Postgres {
	return &Postgres{
		db:    db,
		ping:  func(ctx context.Context) error { _, err := db.Exec(ctx, "SELECT 1"); return err },
		close: func() {},
	}
}

func (p *Postgres) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+subscriberColumns+` FROM `+subscriberTable+` WHERE active ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		sub, err := scanPostgres(rows)
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

func (p *Postgres) Get(ctx context.Context, email string) (domain.Subscriber, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM `+subscriberTable+` WHERE email = $1`, email)
	sub, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subscriber{}, notFound(email)
	}
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("get subscriber: %w", err)
	}
	return sub, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.ping(ctx)
}

func (p *Postgres) Close() error {
	p.close()
	return nil
}

func scanPostgres(row pgx.Row) (domain.Subscriber, error) {
	var (
		sub      domain.Subscriber
		lat, lon *float64
		active   *bool
		created  *time.Time
	)
	if err := row.Scan(&sub.ID, &sub.Email, &sub.Location, &sub.YardSize, &sub.ElevationFeet,
		&lat, &lon, &active, &created); err != nil {
		return domain.Subscriber{}, err
	}
	if lat != nil && lon != nil {
		sub.Coordinates = domain.Coordinates{Lat: *lat, Lon: *lon}
	}
	sub.Active = active == nil || *active
	if created != nil {
		sub.CreatedAt = *created
	}
	return sub, nil
}
