package repository

import (
	"context"
	"database/sql"
)

// CounterRepo allocates monotonically increasing sequence numbers from
// the counters table, one row per namespace.  Reservation codes draw
// from the "reservation" namespace and invoice codes from a
// year-scoped one, so invoice numbering restarts every January.
type CounterRepo struct {
	db *sql.DB
}

// NewCounterRepo returns a new CounterRepo bound to the given database.
func NewCounterRepo(db *sql.DB) *CounterRepo { return &CounterRepo{db: db} }

// Next increments and returns the counter for a namespace in a single
// atomic statement.  LAST_INSERT_ID(expr) makes the incremented value
// readable from the same connection without a second round trip, and
// the upsert creates the namespace row on first use.  Two concurrent
// callers can never observe the same value.
func (r *CounterRepo) Next(ctx context.Context, namespace string) (uint64, error) {
	const q = `INSERT INTO counters (namespace, value) VALUES (?, LAST_INSERT_ID(1))
               ON DUPLICATE KEY UPDATE value = LAST_INSERT_ID(value + 1)`
	result, err := r.db.ExecContext(ctx, q, namespace)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
