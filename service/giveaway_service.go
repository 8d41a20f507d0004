package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"raffle/events"
	"raffle/models"
	"raffle/telemetry"
)

type giveawayService struct {
	uowFactory UnitOfWorkFactory
	lifecycle  LifecycleService
	directory  MemberDirectory
	authorizer Authorizer
	sink       NotificationSink
}

// NewGiveawayService creates the service exposing the engine's external surface
func NewGiveawayService(
	uowFactory UnitOfWorkFactory,
	lifecycle LifecycleService,
	directory MemberDirectory,
	authorizer Authorizer,
	sink NotificationSink,
) GiveawayService {
	return &giveawayService{
		uowFactory: uowFactory,
		lifecycle:  lifecycle,
		directory:  directory,
		authorizer: authorizer,
		sink:       sink,
	}
}

// CreateGiveaway validates the configuration, persists the giveaway, and
// schedules its end job in the same transaction so a crash can never leave an
// active giveaway with no pending expiry.
func (s *giveawayService) CreateGiveaway(ctx context.Context, guildID int64, cfg models.GiveawayConfig) (*models.Giveaway, error) {
	// Validate inputs
	if cfg.Prize == "" {
		return nil, &ValidationError{Field: "prize", Message: "cannot be empty"}
	}
	if cfg.WinnerCount < 1 {
		return nil, &ValidationError{Field: "winner_count", Message: "must be at least 1"}
	}
	if !cfg.EndsAt.After(time.Now()) {
		return nil, &ValidationError{Field: "ends_at", Message: "must be in the future"}
	}
	if cfg.ClaimTimeoutSeconds < 0 {
		return nil, &ValidationError{Field: "claim_timeout_seconds", Message: "cannot be negative"}
	}
	if cfg.MaxRerollCount < 0 {
		return nil, &ValidationError{Field: "max_reroll_count", Message: "cannot be negative"}
	}
	if cfg.ClaimTimeoutSeconds == 0 {
		cfg.ClaimTimeoutSeconds = models.DefaultClaimTimeoutSeconds
	}
	if cfg.MaxRerollCount == 0 {
		cfg.MaxRerollCount = models.DefaultMaxRerollCount
	}

	giveaway := &models.Giveaway{
		GuildID:             guildID,
		ChannelID:           cfg.ChannelID,
		CreatorDiscordID:    cfg.CreatorDiscordID,
		Prize:               cfg.Prize,
		WinnerCount:         cfg.WinnerCount,
		Requirements:        cfg.Requirements,
		EndsAt:              cfg.EndsAt,
		ClaimTimeoutSeconds: cfg.ClaimTimeoutSeconds,
		MaxRerollCount:      cfg.MaxRerollCount,
		Status:              models.GiveawayStatusActive,
	}

	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GiveawayRepository().Create(ctx, giveaway); err != nil {
		return nil, fmt.Errorf("failed to create giveaway: %w", err)
	}

	endJob := &models.ScheduledJob{
		JobKey:     models.JobKey(giveaway.ID, models.TransitionEnd, 0),
		GuildID:    guildID,
		GiveawayID: giveaway.ID,
		Transition: models.TransitionEnd,
		RunAt:      giveaway.EndsAt,
		Status:     models.JobStatusPending,
	}
	if err := uow.JobRepository().Enqueue(ctx, endJob); err != nil {
		return nil, fmt.Errorf("failed to schedule end job: %w", err)
	}
	telemetry.JobsEnqueued.Inc()

	uow.EventBus().Publish(events.GiveawayCreatedEvent{
		GiveawayID: giveaway.ID,
		GuildID:    guildID,
		ChannelID:  giveaway.ChannelID,
		Prize:      giveaway.Prize,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"giveawayID": giveaway.ID,
		"guildID":    guildID,
		"endsAt":     giveaway.EndsAt,
	}).Info("Created giveaway")

	return giveaway, nil
}

// Enter validates and records a participation request. A nil error means the
// entry was accepted; rejections carry an enumerable reason and persist nothing.
func (s *giveawayService) Enter(ctx context.Context, guildID int64, giveawayID int64, discordID int64) error {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	giveaway, err := uow.GiveawayRepository().GetByID(ctx, giveawayID)
	if err != nil {
		return fmt.Errorf("failed to get giveaway: %w", err)
	}
	// A giveaway belonging to another guild is indistinguishable from a
	// missing one; nothing about it leaks across the tenant boundary.
	if giveaway == nil || giveaway.GuildID != guildID {
		return Reject(ReasonGiveawayNotFound)
	}

	existing, err := uow.EntryRepository().GetByUser(ctx, giveawayID, discordID)
	if err != nil {
		return fmt.Errorf("failed to check existing entry: %w", err)
	}

	member, err := s.directory.GetMember(ctx, guildID, discordID)
	if err != nil {
		return fmt.Errorf("failed to resolve member: %w", err)
	}

	if rejection := ValidateEntry(giveaway, member, existing != nil, time.Now()); rejection != nil {
		telemetry.EntriesRejected.WithLabelValues(string(rejection.Reason)).Inc()
		return rejection
	}

	entry := &models.Entry{
		GiveawayID: giveawayID,
		GuildID:    guildID,
		DiscordID:  discordID,
	}
	if err := uow.EntryRepository().Create(ctx, entry); err != nil {
		// Two concurrently validated requests can both pass the pre-check;
		// the unique constraint decides, and the loser gets the same
		// rejection as if the pre-check had caught it.
		return err
	}

	count, err := uow.EntryRepository().CountByGiveaway(ctx, giveawayID)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	uow.EventBus().Publish(events.EntryAddedEvent{
		GiveawayID: giveawayID,
		GuildID:    guildID,
		DiscordID:  discordID,
		EntryCount: count,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	telemetry.EntriesAccepted.Inc()
	return nil
}

// Claim confirms the prize for the announced winner. It races the scheduled
// claim-timeout job on the giveaway row; the compare-and-set on status decides
// the winner of that race, and the loser observes AlreadyResolved.
func (s *giveawayService) Claim(ctx context.Context, guildID int64, giveawayID int64, discordID int64) (*models.Giveaway, error) {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	giveaway, err := uow.GiveawayRepository().GetByID(ctx, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	if giveaway == nil || giveaway.GuildID != guildID {
		return nil, Reject(ReasonGiveawayNotFound)
	}
	if !giveaway.IsAwaitingClaim() {
		return nil, Reject(ReasonAlreadyResolved)
	}
	if !giveaway.IsAnnouncedWinner(discordID) {
		return nil, Reject(ReasonNotWinner)
	}

	now := time.Now()
	giveaway.Status = models.GiveawayStatusCompleted
	giveaway.CompletedAt = &now
	if err := uow.GiveawayRepository().UpdateIfStatus(ctx, giveaway, models.GiveawayStatusAwaitingClaim); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			// The timeout job resolved the row between our read and write.
			return nil, Reject(ReasonAlreadyResolved)
		}
		return nil, fmt.Errorf("failed to complete giveaway: %w", err)
	}

	uow.EventBus().Publish(events.GiveawayCompletedEvent{
		GiveawayID: giveaway.ID,
		GuildID:    guildID,
		ChannelID:  giveaway.ChannelID,
		WinnerID:   discordID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// The claim is already durable; a failed confirmation message is not
	// worth failing the request over.
	if err := s.sink.Announce(ctx, guildID, giveaway.ChannelID, NotificationClaimConfirmed, giveaway); err != nil {
		log.WithFields(log.Fields{
			"giveawayID": giveaway.ID,
			"error":      err,
		}).Warn("Failed to send claim confirmation")
	}

	return giveaway, nil
}

// ManualReroll re-draws the winner on an administrator's request. The actual
// reroll shares the claim-timeout code path in the lifecycle service.
func (s *giveawayService) ManualReroll(ctx context.Context, guildID int64, giveawayID int64, actorID int64) error {
	allowed, err := s.authorizer.CanManageGiveaways(ctx, guildID, actorID)
	if err != nil {
		return fmt.Errorf("failed to check authorization: %w", err)
	}
	if !allowed {
		return Reject(ReasonUnauthorized)
	}

	return s.lifecycle.ManualReroll(ctx, guildID, giveawayID)
}

// Cancel terminates an active giveaway. Entries are retained for audit; any
// already-scheduled end job will observe the Cancelled status and no-op.
func (s *giveawayService) Cancel(ctx context.Context, guildID int64, giveawayID int64, actorID int64) error {
	allowed, err := s.authorizer.CanManageGiveaways(ctx, guildID, actorID)
	if err != nil {
		return fmt.Errorf("failed to check authorization: %w", err)
	}
	if !allowed {
		return Reject(ReasonUnauthorized)
	}

	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	giveaway, err := uow.GiveawayRepository().GetByID(ctx, giveawayID)
	if err != nil {
		return fmt.Errorf("failed to get giveaway: %w", err)
	}
	if giveaway == nil || giveaway.GuildID != guildID {
		return Reject(ReasonGiveawayNotFound)
	}
	if !giveaway.CanBeCancelled() {
		return Reject(ReasonGiveawayNotActive)
	}

	giveaway.Status = models.GiveawayStatusCancelled
	if err := uow.GiveawayRepository().UpdateIfStatus(ctx, giveaway, models.GiveawayStatusActive); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return Reject(ReasonGiveawayNotActive)
		}
		return fmt.Errorf("failed to cancel giveaway: %w", err)
	}

	uow.EventBus().Publish(events.GiveawayCancelledEvent{
		GiveawayID: giveaway.ID,
		GuildID:    guildID,
		ChannelID:  giveaway.ChannelID,
		ActorID:    actorID,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.sink.Announce(ctx, guildID, giveaway.ChannelID, NotificationCancelled, giveaway); err != nil {
		log.WithFields(log.Fields{
			"giveawayID": giveaway.ID,
			"error":      err,
		}).Warn("Failed to send cancellation notice")
	}
	return nil
}

// GetState returns a read-only snapshot for dashboards
func (s *giveawayService) GetState(ctx context.Context, guildID int64, giveawayID int64) (*models.Giveaway, error) {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	giveaway, err := uow.GiveawayRepository().GetByID(ctx, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	if giveaway == nil || giveaway.GuildID != guildID {
		return nil, Reject(ReasonGiveawayNotFound)
	}
	return giveaway, nil
}

// GetStateByMessageID resolves a giveaway from its announcement message
func (s *giveawayService) GetStateByMessageID(ctx context.Context, guildID int64, messageID int64) (*models.Giveaway, error) {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	giveaway, err := uow.GiveawayRepository().GetByMessageID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	if giveaway == nil || giveaway.GuildID != guildID {
		return nil, Reject(ReasonGiveawayNotFound)
	}
	return giveaway, nil
}

// RecordMessageID links the posted announcement message to the giveaway
func (s *giveawayService) RecordMessageID(ctx context.Context, guildID int64, giveawayID int64, messageID int64) error {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GiveawayRepository().UpdateMessageID(ctx, giveawayID, messageID); err != nil {
		return fmt.Errorf("failed to update message ID: %w", err)
	}
	return uow.Commit()
}
