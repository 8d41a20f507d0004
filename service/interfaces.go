package service

import (
	"context"
	"time"

	"raffle/events"
	"raffle/models"
)

// GiveawayRepository defines the interface for giveaway data access.
// Implementations are scoped to a single guild; cross-guild reads are not possible.
type GiveawayRepository interface {
	// Create persists a new giveaway and fills in its ID and CreatedAt
	Create(ctx context.Context, giveaway *models.Giveaway) error

	// GetByID retrieves a giveaway by its ID, nil if not found
	GetByID(ctx context.Context, id int64) (*models.Giveaway, error)

	// GetByMessageID retrieves a giveaway by its Discord message ID
	GetByMessageID(ctx context.Context, messageID int64) (*models.Giveaway, error)

	// UpdateIfStatus writes the giveaway's mutable fields and bumps its version,
	// but only if the stored status still equals expected. Returns
	// ErrStatusConflict when the compare-and-set loses the race.
	UpdateIfStatus(ctx context.Context, giveaway *models.Giveaway, expected models.GiveawayStatus) error

	// UpdateMessageID records the announcement message for a giveaway
	UpdateMessageID(ctx context.Context, giveawayID int64, messageID int64) error

	// AddExclusion permanently excludes a user from winning this giveaway.
	// Adding the same user twice is a no-op.
	AddExclusion(ctx context.Context, giveawayID int64, discordID int64) error

	// GetExclusions returns all excluded user IDs for a giveaway
	GetExclusions(ctx context.Context, giveawayID int64) ([]int64, error)
}

// EntryRepository defines the interface for entry data access
type EntryRepository interface {
	// Create inserts an entry, returning a DuplicateEntry rejection if the
	// user already entered this giveaway
	Create(ctx context.Context, entry *models.Entry) error

	// GetByUser returns a user's entry for a giveaway, nil if absent
	GetByUser(ctx context.Context, giveawayID int64, discordID int64) (*models.Entry, error)

	// ListDiscordIDs returns the user IDs of all entries for a giveaway
	ListDiscordIDs(ctx context.Context, giveawayID int64) ([]int64, error)

	// CountByGiveaway returns the number of entries for a giveaway
	CountByGiveaway(ctx context.Context, giveawayID int64) (int64, error)
}

// JobRepository defines the interface for the durable scheduled-job store
type JobRepository interface {
	// Enqueue inserts a job; enqueueing an existing job key is a no-op
	Enqueue(ctx context.Context, job *models.ScheduledJob) error

	// GetByKey retrieves a job by its key, nil if not found
	GetByKey(ctx context.Context, jobKey string) (*models.ScheduledJob, error)

	// ClaimDue atomically claims up to limit due jobs for a worker, moving them
	// from pending to running under a lease. Jobs whose lease expired are
	// reclaimable the same way.
	ClaimDue(ctx context.Context, workerID string, lease time.Duration, limit int) ([]*models.ScheduledJob, error)

	// MarkSucceeded records successful execution
	MarkSucceeded(ctx context.Context, jobKey string) error

	// MarkForRetry schedules another attempt
	MarkForRetry(ctx context.Context, jobKey string, attemptCount int, nextRetryAt time.Time, lastError string) error

	// MarkDeadLettered parks the job for manual intervention
	MarkDeadLettered(ctx context.Context, jobKey string, attemptCount int, lastError string) error

	// ListDeadLettered returns dead-lettered jobs for operator inspection
	ListDeadLettered(ctx context.Context, limit int) ([]*models.ScheduledJob, error)
}

// LedgerRepository defines the interface for the idempotency ledger.
// A (job key, step) pair is recorded at most once; recording an existing
// pair is a no-op.
type LedgerRepository interface {
	// Record marks a step of a job as done
	Record(ctx context.Context, jobKey string, step string) error

	// IsRecorded checks whether a step of a job has already been done
	IsRecorded(ctx context.Context, jobKey string, step string) (bool, error)
}

// NotificationKind distinguishes the announcement messages the sink renders
type NotificationKind string

const (
	NotificationWinnerAnnounced NotificationKind = "winner_announced"
	NotificationClaimConfirmed  NotificationKind = "claim_confirmed"
	NotificationNoWinner        NotificationKind = "no_winner"
	NotificationCancelled       NotificationKind = "cancelled"
)

// NotificationSink delivers announcements to the guild's channel. It may be
// slow and may fail; it is never called while a database transaction is open.
type NotificationSink interface {
	Announce(ctx context.Context, guildID int64, channelID int64, kind NotificationKind, giveaway *models.Giveaway) error
}

// MemberDirectory resolves the current state of a guild member. Returns
// (nil, nil) when the user is not (or no longer) a member of the guild.
type MemberDirectory interface {
	GetMember(ctx context.Context, guildID int64, discordID int64) (*models.Member, error)
}

// Authorizer answers whether an actor may perform administrative actions
// (cancel, manual reroll) on giveaways in a guild.
type Authorizer interface {
	CanManageGiveaways(ctx context.Context, guildID int64, actorID int64) (bool, error)
}

// WinnerSelector picks a winner uniformly at random from a candidate pool
type WinnerSelector interface {
	// Pick returns one element of pool, or ErrEmptyPool
	Pick(pool []int64) (int64, error)
}

// GiveawayService is the surface the rest of the system calls into
type GiveawayService interface {
	// CreateGiveaway validates the config, persists the giveaway, and schedules
	// its end job
	CreateGiveaway(ctx context.Context, guildID int64, cfg models.GiveawayConfig) (*models.Giveaway, error)

	// Enter records a validated entry; a nil error means accepted
	Enter(ctx context.Context, guildID int64, giveawayID int64, discordID int64) error

	// Claim confirms the announced winner's claim, racing the timeout job
	Claim(ctx context.Context, guildID int64, giveawayID int64, discordID int64) (*models.Giveaway, error)

	// ManualReroll re-draws the winner on an administrator's request
	ManualReroll(ctx context.Context, guildID int64, giveawayID int64, actorID int64) error

	// Cancel terminates an active giveaway without selecting a winner
	Cancel(ctx context.Context, guildID int64, giveawayID int64, actorID int64) error

	// GetState returns a read-only snapshot of a giveaway
	GetState(ctx context.Context, guildID int64, giveawayID int64) (*models.Giveaway, error)

	// GetStateByMessageID resolves a giveaway from its announcement message
	GetStateByMessageID(ctx context.Context, guildID int64, messageID int64) (*models.Giveaway, error)

	// RecordMessageID links the posted announcement message to the giveaway
	RecordMessageID(ctx context.Context, guildID int64, giveawayID int64, messageID int64) error
}

// LifecycleService hosts the state machine transition handlers invoked by the
// job scheduler, plus the administrator-triggered reroll that shares the
// claim-timeout code path.
type LifecycleService interface {
	// HandleEnd closes entries at expiry and announces the first winner
	HandleEnd(ctx context.Context, job *models.ScheduledJob) error

	// HandleClaimTimeout excludes the non-claiming winner and rerolls or exhausts
	HandleClaimTimeout(ctx context.Context, job *models.ScheduledJob) error

	// ManualReroll re-draws while a claim is pending; authorization is the caller's job
	ManualReroll(ctx context.Context, guildID int64, giveawayID int64) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	GiveawayRepository() GiveawayRepository
	EntryRepository() EntryRepository
	JobRepository() JobRepository
	LedgerRepository() LedgerRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// CreateForGuild creates a new UnitOfWork instance scoped to a specific guild
	CreateForGuild(guildID int64) UnitOfWork
}
