package repository

import (
	"context"
	"fmt"

	"raffle/database"
	"raffle/service"
)

// LedgerRepository implements the LedgerRepository interface. The ledger is
// insert-only; a (job_key, step) pair recorded twice collapses to one row.
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a pool-backed ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepository creates a transaction-scoped ledger repository
func newLedgerRepository(tx queryable) service.LedgerRepository {
	return &LedgerRepository{q: tx}
}

// Record marks a step of a job as done
func (r *LedgerRepository) Record(ctx context.Context, jobKey string, step string) error {
	query := `
		INSERT INTO idempotency_ledger (job_key, step)
		VALUES ($1, $2)
		ON CONFLICT (job_key, step) DO NOTHING
	`

	_, err := r.q.Exec(ctx, query, jobKey, step)
	if err != nil {
		return fmt.Errorf("failed to record ledger step %s for job %s: %w", step, jobKey, err)
	}
	return nil
}

// IsRecorded checks whether a step of a job has already been done
func (r *LedgerRepository) IsRecorded(ctx context.Context, jobKey string, step string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM idempotency_ledger WHERE job_key = $1 AND step = $2)`

	var recorded bool
	if err := r.q.QueryRow(ctx, query, jobKey, step).Scan(&recorded); err != nil {
		return false, fmt.Errorf("failed to check ledger step %s for job %s: %w", step, jobKey, err)
	}
	return recorded, nil
}
