package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"raffle/database"
	"raffle/models"
	"raffle/service"
)

// JobRepository implements the JobRepository interface over the scheduled_jobs
// table, which doubles as the engine's durable timer store.
type JobRepository struct {
	q       queryable
	guildID int64
}

// NewJobRepository creates a pool-backed job repository for the scheduler
func NewJobRepository(db *database.DB) *JobRepository {
	return &JobRepository{q: db.Pool}
}

// newJobRepository creates a transaction-scoped job repository bound to a guild
func newJobRepository(tx queryable, guildID int64) service.JobRepository {
	return &JobRepository{q: tx, guildID: guildID}
}

const jobColumns = `
	job_key, guild_id, giveaway_id, transition, attempt_epoch, run_at,
	status, attempt_count, next_retry_at, lease_expires_at, locked_by,
	last_error, created_at, updated_at`

func scanJob(row pgx.Row) (*models.ScheduledJob, error) {
	var j models.ScheduledJob
	err := row.Scan(
		&j.JobKey,
		&j.GuildID,
		&j.GiveawayID,
		&j.Transition,
		&j.AttemptEpoch,
		&j.RunAt,
		&j.Status,
		&j.AttemptCount,
		&j.NextRetryAt,
		&j.LeaseExpiresAt,
		&j.LockedBy,
		&j.LastError,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Enqueue inserts a job. The job key is the idempotency boundary: enqueueing
// an already-known key is a silent no-op, so callers can schedule
// unconditionally.
func (r *JobRepository) Enqueue(ctx context.Context, job *models.ScheduledJob) error {
	query := `
		INSERT INTO scheduled_jobs (
			job_key, guild_id, giveaway_id, transition, attempt_epoch, run_at, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_key) DO NOTHING
	`

	if r.guildID != 0 {
		job.GuildID = r.guildID // use repository's guild scope
	}
	_, err := r.q.Exec(ctx, query,
		job.JobKey,
		job.GuildID,
		job.GiveawayID,
		job.Transition,
		job.AttemptEpoch,
		job.RunAt,
		job.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.JobKey, err)
	}
	return nil
}

// GetByKey retrieves a job by its key, nil if not found
func (r *JobRepository) GetByKey(ctx context.Context, jobKey string) (*models.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE job_key = $1`

	job, err := scanJob(r.q.QueryRow(ctx, query, jobKey))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobKey, err)
	}
	return job, nil
}

// ClaimDue atomically moves up to limit due jobs to running under a lease held
// by workerID. Due means: pending with run_at reached, pending with a reached
// retry time, or running with an expired lease (the previous holder is
// presumed dead). FOR UPDATE SKIP LOCKED keeps concurrent workers from
// claiming the same rows.
func (r *JobRepository) ClaimDue(ctx context.Context, workerID string, lease time.Duration, limit int) ([]*models.ScheduledJob, error) {
	query := `
		UPDATE scheduled_jobs
		SET status = 'running',
		    locked_by = $1,
		    lease_expires_at = NOW() + $2,
		    updated_at = NOW()
		WHERE job_key IN (
			SELECT job_key FROM scheduled_jobs
			WHERE (status = 'pending' AND run_at <= NOW() AND (next_retry_at IS NULL OR next_retry_at <= NOW()))
			   OR (status = 'running' AND lease_expires_at <= NOW())
			ORDER BY run_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	rows, err := r.q.Query(ctx, query, workerID, lease, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkSucceeded records successful execution
func (r *JobRepository) MarkSucceeded(ctx context.Context, jobKey string) error {
	query := `
		UPDATE scheduled_jobs
		SET status = 'succeeded',
		    locked_by = NULL,
		    lease_expires_at = NULL,
		    updated_at = NOW()
		WHERE job_key = $1
	`

	result, err := r.q.Exec(ctx, query, jobKey)
	if err != nil {
		return fmt.Errorf("failed to mark job %s succeeded: %w", jobKey, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", jobKey)
	}
	return nil
}

// MarkForRetry returns the job to pending with a future retry time
func (r *JobRepository) MarkForRetry(ctx context.Context, jobKey string, attemptCount int, nextRetryAt time.Time, lastError string) error {
	query := `
		UPDATE scheduled_jobs
		SET status = 'pending',
		    attempt_count = $1,
		    next_retry_at = $2,
		    last_error = $3,
		    locked_by = NULL,
		    lease_expires_at = NULL,
		    updated_at = NOW()
		WHERE job_key = $4
	`

	result, err := r.q.Exec(ctx, query, attemptCount, nextRetryAt, lastError, jobKey)
	if err != nil {
		return fmt.Errorf("failed to mark job %s for retry: %w", jobKey, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", jobKey)
	}
	return nil
}

// MarkDeadLettered parks the job for manual intervention
func (r *JobRepository) MarkDeadLettered(ctx context.Context, jobKey string, attemptCount int, lastError string) error {
	query := `
		UPDATE scheduled_jobs
		SET status = 'dead_lettered',
		    attempt_count = $1,
		    last_error = $2,
		    locked_by = NULL,
		    lease_expires_at = NULL,
		    updated_at = NOW()
		WHERE job_key = $3
	`

	result, err := r.q.Exec(ctx, query, attemptCount, lastError, jobKey)
	if err != nil {
		return fmt.Errorf("failed to dead-letter job %s: %w", jobKey, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", jobKey)
	}
	return nil
}

// ListDeadLettered returns dead-lettered jobs for operator inspection
func (r *JobRepository) ListDeadLettered(ctx context.Context, limit int) ([]*models.ScheduledJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM scheduled_jobs
		WHERE status = 'dead_lettered'
		ORDER BY updated_at DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead-lettered jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead-lettered job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
