package epoch

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is a PostgreSQL-backed Store shared by all gateway instances on the
// same database.
type PG struct {
	pool pgxQuerier
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed epoch store.
func NewPG(pool *pgxpool.Pool) *PG { return &PG{pool: pool} }

// NewPGWithQuerier constructs a PostgreSQL-backed epoch store over any querier.
func NewPGWithQuerier(q pgxQuerier) *PG { return &PG{pool: q} }

// Current returns the subject's epoch, creating the row at 1 on first use.
func (s *PG) Current(ctx context.Context, subjectID string) (int64, error) {
	const q = `
INSERT INTO session_epochs (subject_id, epoch, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (subject_id) DO UPDATE SET subject_id = session_epochs.subject_id
RETURNING epoch`
	var epoch int64
	if err := s.pool.QueryRow(ctx, q, subjectID).Scan(&epoch); err != nil {
		return 0, err
	}
	return epoch, nil
}

// Bump increments the subject's epoch atomically in a single upsert. A fresh
// subject starts at the implicit 1 and lands on 2.
func (s *PG) Bump(ctx context.Context, subjectID string) (int64, error) {
	const q = `
INSERT INTO session_epochs (subject_id, epoch, updated_at)
VALUES ($1, 2, now())
ON CONFLICT (subject_id) DO UPDATE SET epoch = session_epochs.epoch + 1, updated_at = now()
RETURNING epoch`
	var epoch int64
	if err := s.pool.QueryRow(ctx, q, subjectID).Scan(&epoch); err != nil {
		return 0, err
	}
	return epoch, nil
}
