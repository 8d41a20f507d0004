package service

import (
	"errors"
	"fmt"
)

// RejectionReason enumerates the user-facing reasons an entry, claim, or
// reroll request can be denied. Callers render distinct messages per reason,
// so these are stable identifiers rather than free text.
type RejectionReason string

const (
	ReasonGiveawayNotActive RejectionReason = "giveaway_not_active"
	ReasonGiveawayExpired   RejectionReason = "giveaway_expired"
	ReasonDuplicateEntry    RejectionReason = "duplicate_entry"
	ReasonBlacklisted       RejectionReason = "blacklisted"
	ReasonMissingRole       RejectionReason = "missing_required_role"
	ReasonLevelTooLow       RejectionReason = "level_too_low"
	ReasonAccountTooNew     RejectionReason = "account_too_new"
	ReasonNotInGuild        RejectionReason = "not_in_guild"
	ReasonNotWinner         RejectionReason = "not_winner"
	ReasonAlreadyResolved   RejectionReason = "already_resolved"
	ReasonNotAwaitingClaim  RejectionReason = "not_awaiting_claim"
	ReasonUnauthorized      RejectionReason = "unauthorized"
	ReasonGiveawayNotFound  RejectionReason = "giveaway_not_found"
)

// RejectionError is an expected, user-facing denial. It is not a system error
// and is never logged above debug level.
type RejectionError struct {
	Reason RejectionReason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected: %s", e.Reason)
}

// Reject builds a RejectionError for the given reason
func Reject(reason RejectionReason) *RejectionError {
	return &RejectionError{Reason: reason}
}

// RejectionReasonOf extracts the rejection reason, or "" if err is not a rejection
func RejectionReasonOf(err error) RejectionReason {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

// ValidationError reports bad giveaway configuration. It is rejected
// synchronously and nothing is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ErrEmptyPool is returned by the winner selector when no eligible candidates remain
var ErrEmptyPool = errors.New("candidate pool is empty")

// ErrStatusConflict means a compare-and-set write found the giveaway in a
// different status than expected. This is an expected race outcome (claim vs
// timeout, or duplicate job delivery), not a system error: the losing side
// no-ops.
var ErrStatusConflict = errors.New("giveaway status changed concurrently")

// TransientError marks an infrastructure failure that is safe to retry.
// The job scheduler retries these with backoff; synchronous callers surface
// them to their caller instead of retrying internally.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps an error as retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether an error is marked retryable
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
