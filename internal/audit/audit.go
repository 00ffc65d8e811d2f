// Package audit persists a durable record of every storage transaction's
// outcome to Postgres, independent of the spaces it touched: a trail for
// "what committed, when, and against which spaces", grounded on the
// teacher's StateStore (db/state_store.go).
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Outcome is the terminal status of an audited transaction.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one row of the audit trail.
type Entry struct {
	ID         string
	Spaces     []string
	Outcome    Outcome
	ErrMessage string
	CreatedAt  time.Time
}

// Trail writes transaction outcomes to a `runtime_txn_audit` table.
type Trail struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and returns a Trail backed by it.
func Open(ctx context.Context, dsn string) (*Trail, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}
	return &Trail{pool: pool}, nil
}

// Record inserts one audit entry for a completed transaction. outcome is
// a plain string (typically one of the Outcome constants) rather than
// Outcome itself, so callers outside this package (internal/txn's
// AuditRecorder interface) don't need to import the Outcome type.
func (t *Trail) Record(ctx context.Context, txnID string, spaces []string, outcome string, txnErr error) error {
	var errMsg *string
	if txnErr != nil {
		msg := txnErr.Error()
		errMsg = &msg
	}

	query := `
		INSERT INTO runtime_txn_audit (txn_id, spaces, outcome, error, created_at)
		VALUES ($1, $2, $3, $4, NOW())`

	_, err := t.pool.Exec(ctx, query, txnID, spaces, outcome, errMsg)
	if err != nil {
		return fmt.Errorf("audit: record %s: %w", txnID, err)
	}
	return nil
}

// RecentByTxn returns the audit entries recorded for a given transaction
// ID, most recent first (a transaction is recorded at most once in
// practice, but Commit's idempotence means a retried caller could in
// principle call Record twice).
func (t *Trail) RecentByTxn(ctx context.Context, txnID string) ([]Entry, error) {
	query := `
		SELECT txn_id, spaces, outcome, COALESCE(error, ''), created_at
		FROM runtime_txn_audit
		WHERE txn_id = $1
		ORDER BY created_at DESC`

	rows, err := t.pool.Query(ctx, query, txnID)
	if err != nil {
		return nil, fmt.Errorf("audit: query %s: %w", txnID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Spaces, &e.Outcome, &e.ErrMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying connection pool.
func (t *Trail) Close() {
	t.pool.Close()
}
