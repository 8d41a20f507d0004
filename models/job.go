package models

import (
	"fmt"
	"time"
)

// JobStatus represents the execution state of a scheduled job
type JobStatus string

const (
	JobStatusPending      JobStatus = "pending"
	JobStatusRunning      JobStatus = "running"
	JobStatusSucceeded    JobStatus = "succeeded"
	JobStatusFailed       JobStatus = "failed"
	JobStatusDeadLettered JobStatus = "dead_lettered"
)

// Transition identifies which state machine handler a job invokes
type Transition string

const (
	TransitionEnd          Transition = "end"
	TransitionClaimTimeout Transition = "claim_timeout"

	// TransitionManualReroll never appears as a scheduled job; it only keys
	// ledger records for administrator-triggered rerolls.
	TransitionManualReroll Transition = "manual_reroll"
)

// Ledger steps tracked independently per job key. A transition's state write
// and its notification can fail independently, so each gets its own mark.
const (
	LedgerStepTransition = "transition"
	LedgerStepNotify     = "notify"
)

// ScheduledJob is a durable "fire at time T" record. Delivery is at-least-once;
// the job key plus the idempotency ledger make execution effects at-most-once.
type ScheduledJob struct {
	JobKey         string     `db:"job_key"`
	GuildID        int64      `db:"guild_id"`
	GiveawayID     int64      `db:"giveaway_id"`
	Transition     Transition `db:"transition"`
	AttemptEpoch   int        `db:"attempt_epoch"`
	RunAt          time.Time  `db:"run_at"`
	Status         JobStatus  `db:"status"`
	AttemptCount   int        `db:"attempt_count"`
	NextRetryAt    *time.Time `db:"next_retry_at"`
	LeaseExpiresAt *time.Time `db:"lease_expires_at"`
	LockedBy       *string    `db:"locked_by"`
	LastError      *string    `db:"last_error"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// JobKey derives the stable key for a logical job. Re-enqueueing the same
// logical transition yields the same key, so duplicate enqueues collapse.
// attemptEpoch distinguishes successive claim-timeout cycles (one per reroll).
func JobKey(giveawayID int64, transition Transition, attemptEpoch int) string {
	return fmt.Sprintf("giveaway:%d:%s:%d", giveawayID, transition, attemptEpoch)
}
