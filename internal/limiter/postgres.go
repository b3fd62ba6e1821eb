package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is a PostgreSQL-backed fixed-window limiter shared across gateway
// instances.
type PG struct {
	pool   pgxQuerier
	max    int
	window time.Duration
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(pool *pgxpool.Pool, max int, window time.Duration) *PG {
	return &PG{pool: pool, max: max, window: window}
}

// NewPGWithQuerier constructs a PostgreSQL-backed limiter over any querier.
func NewPGWithQuerier(q pgxQuerier, max int, window time.Duration) *PG {
	return &PG{pool: q, max: max, window: window}
}

// Attempt counts the attempt in a single upsert. A row past its window is
// reset in place, so the table never grows beyond one row per active key.
func (l *PG) Attempt(ctx context.Context, key string) (Decision, error) {
	const q = `
INSERT INTO login_attempts (client_key, attempt_count, window_reset)
VALUES ($1, 1, now() + $2::interval)
ON CONFLICT (client_key) DO UPDATE SET
  attempt_count = CASE WHEN now() > login_attempts.window_reset THEN 1 ELSE login_attempts.attempt_count + 1 END,
  window_reset  = CASE WHEN now() > login_attempts.window_reset THEN now() + $2::interval ELSE login_attempts.window_reset END
RETURNING attempt_count, window_reset`
	var count int
	var reset time.Time
	if err := l.pool.QueryRow(ctx, q, key, l.window).Scan(&count, &reset); err != nil {
		return Decision{}, err
	}
	if count > l.max {
		return Decision{RetryAfter: time.Until(reset)}, nil
	}
	return Decision{Allowed: true}, nil
}

// Sweep deletes rows whose window elapsed. Best-effort housekeeping.
func (l *PG) Sweep(ctx context.Context) error {
	const q = `DELETE FROM login_attempts WHERE window_reset < now()`
	_, err := l.pool.Exec(ctx, q)
	return err
}
