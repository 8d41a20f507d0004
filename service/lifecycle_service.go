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

// lifecycleService implements the giveaway state machine transitions that run
// under the job scheduler. Every handler is idempotent: it re-derives its
// decision from persisted state, so duplicate delivery, retries after partial
// failure, and lease reclaims all converge to the same outcome.
type lifecycleService struct {
	uowFactory UnitOfWorkFactory
	giveaways  GiveawayRepository // pool-backed, for reads outside a transaction
	ledger     LedgerRepository   // pool-backed, for post-commit notification marks
	selector   WinnerSelector
	directory  MemberDirectory
	sink       NotificationSink
}

// NewLifecycleService creates the state machine transition handlers
func NewLifecycleService(
	uowFactory UnitOfWorkFactory,
	giveaways GiveawayRepository,
	ledger LedgerRepository,
	selector WinnerSelector,
	directory MemberDirectory,
	sink NotificationSink,
) LifecycleService {
	return &lifecycleService{
		uowFactory: uowFactory,
		giveaways:  giveaways,
		ledger:     ledger,
		selector:   selector,
		directory:  directory,
		sink:       sink,
	}
}

// HandleEnd processes the scheduled "end" job: close entries, pick a winner,
// announce, and schedule the claim-timeout job.
func (s *lifecycleService) HandleEnd(ctx context.Context, job *models.ScheduledJob) error {
	transitionDone, err := s.ledger.IsRecorded(ctx, job.JobKey, models.LedgerStepTransition)
	if err != nil {
		return Transient(fmt.Errorf("failed to read ledger: %w", err))
	}
	if transitionDone {
		// The state write committed on a previous attempt; only the
		// notification can still be outstanding.
		return s.retryNotification(ctx, job)
	}

	uow := s.uowFactory.CreateForGuild(job.GuildID)
	if err := uow.Begin(ctx); err != nil {
		return Transient(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer uow.Rollback()

	giveaway, err := uow.GiveawayRepository().GetByID(ctx, job.GiveawayID)
	if err != nil {
		return Transient(fmt.Errorf("failed to get giveaway: %w", err))
	}
	if giveaway == nil {
		log.WithField("jobKey", job.JobKey).Warn("End job fired for unknown giveaway")
		return nil
	}
	if !giveaway.IsActive() {
		// Duplicate delivery, or the giveaway was cancelled before expiry.
		log.WithFields(log.Fields{
			"giveawayID": giveaway.ID,
			"status":     giveaway.Status,
		}).Debug("End job is a no-op, giveaway no longer active")
		return nil
	}

	// Close entries. The compare-and-set on Active is the dedup gate: a
	// concurrent delivery of the same job loses here and no-ops.
	now := time.Now()
	giveaway.Status = models.GiveawayStatusEnded
	giveaway.EndedAt = &now
	if err := uow.GiveawayRepository().UpdateIfStatus(ctx, giveaway, models.GiveawayStatusActive); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			log.WithField("giveawayID", giveaway.ID).Debug("Lost end-transition race, no-op")
			return nil
		}
		return Transient(fmt.Errorf("failed to close entries: %w", err))
	}

	kind, err := s.announceNextWinner(ctx, uow, giveaway, now)
	if err != nil {
		return err
	}

	if err := uow.LedgerRepository().Record(ctx, job.JobKey, models.LedgerStepTransition); err != nil {
		return Transient(fmt.Errorf("failed to record transition: %w", err))
	}
	if err := uow.Commit(); err != nil {
		return Transient(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return s.notifyOnce(ctx, job.JobKey, giveaway, kind)
}

// HandleClaimTimeout processes the scheduled claim-timeout job: the announced
// winner did not claim in time, so exclude them and reroll or exhaust.
func (s *lifecycleService) HandleClaimTimeout(ctx context.Context, job *models.ScheduledJob) error {
	transitionDone, err := s.ledger.IsRecorded(ctx, job.JobKey, models.LedgerStepTransition)
	if err != nil {
		return Transient(fmt.Errorf("failed to read ledger: %w", err))
	}
	if transitionDone {
		return s.retryNotification(ctx, job)
	}

	return s.timeoutAndReroll(ctx, job.GuildID, job.GiveawayID, job.JobKey, job.AttemptEpoch)
}

// ManualReroll shares the claim-timeout code path. The synthetic job key keyed
// by the current reroll epoch makes a repeated button press idempotent.
func (s *lifecycleService) ManualReroll(ctx context.Context, guildID int64, giveawayID int64) error {
	giveaway, err := s.giveaways.GetByID(ctx, giveawayID)
	if err != nil {
		return fmt.Errorf("failed to get giveaway: %w", err)
	}
	// s.giveaways is unscoped, so the tenant check happens here: a reroll
	// request from another guild is reported as not found.
	if giveaway == nil || giveaway.GuildID != guildID {
		return Reject(ReasonGiveawayNotFound)
	}
	if !giveaway.IsAwaitingClaim() {
		return Reject(ReasonNotAwaitingClaim)
	}

	jobKey := models.JobKey(giveawayID, models.TransitionManualReroll, giveaway.RerollCount)
	err = s.timeoutAndReroll(ctx, guildID, giveawayID, jobKey, giveaway.RerollCount)
	if errors.Is(err, ErrStatusConflict) {
		return Reject(ReasonAlreadyResolved)
	}
	return err
}

// timeoutAndReroll implements the AwaitingClaim exit edges: exclude the
// non-claiming winner, then either announce a replacement, or terminate as
// ExhaustedNoWinner when the pool is empty or the reroll budget is spent.
func (s *lifecycleService) timeoutAndReroll(ctx context.Context, guildID, giveawayID int64, jobKey string, epoch int) error {
	uow := s.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return Transient(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer uow.Rollback()

	giveaway, err := uow.GiveawayRepository().GetByID(ctx, giveawayID)
	if err != nil {
		return Transient(fmt.Errorf("failed to get giveaway: %w", err))
	}
	if giveaway == nil {
		log.WithField("jobKey", jobKey).Warn("Claim-timeout job fired for unknown giveaway")
		return nil
	}
	if !giveaway.IsAwaitingClaim() {
		// The claim won the race, or the giveaway is already terminal.
		log.WithFields(log.Fields{
			"giveawayID": giveaway.ID,
			"status":     giveaway.Status,
		}).Debug("Claim-timeout is a no-op, giveaway not awaiting claim")
		return nil
	}
	if giveaway.RerollCount != epoch {
		// A manual reroll already advanced the claim cycle; this job belongs
		// to a superseded winner announcement.
		log.WithFields(log.Fields{
			"giveawayID":  giveaway.ID,
			"jobEpoch":    epoch,
			"rerollCount": giveaway.RerollCount,
		}).Debug("Claim-timeout job is stale, claim cycle already advanced")
		return nil
	}

	now := time.Now()

	// The expired winner is excluded before anything else, so no later pick
	// can ever re-announce them.
	if giveaway.AnnouncedWinnerID != nil {
		if err := uow.GiveawayRepository().AddExclusion(ctx, giveaway.ID, *giveaway.AnnouncedWinnerID); err != nil {
			return Transient(fmt.Errorf("failed to exclude expired winner: %w", err))
		}
	}

	var kind NotificationKind
	if !giveaway.HasRerollsRemaining() {
		giveaway.Status = models.GiveawayStatusExhaustedNoWinner
		giveaway.AnnouncedWinnerID = nil
		giveaway.WinnerAnnouncedAt = nil
		if err := uow.GiveawayRepository().UpdateIfStatus(ctx, giveaway, models.GiveawayStatusAwaitingClaim); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				log.WithField("giveawayID", giveaway.ID).Debug("Lost claim-timeout race, no-op")
				return nil
			}
			return Transient(fmt.Errorf("failed to exhaust giveaway: %w", err))
		}
		uow.EventBus().Publish(events.GiveawayExhaustedEvent{
			GiveawayID:  giveaway.ID,
			GuildID:     giveaway.GuildID,
			ChannelID:   giveaway.ChannelID,
			RerollCount: giveaway.RerollCount,
		})
		kind = NotificationNoWinner
	} else {
		kind, err = s.rerollWinner(ctx, uow, giveaway, now)
		if err != nil {
			if errors.Is(err, ErrStatusConflict) {
				log.WithField("giveawayID", giveaway.ID).Debug("Lost claim-timeout race, no-op")
				return nil
			}
			return err
		}
	}

	if err := uow.LedgerRepository().Record(ctx, jobKey, models.LedgerStepTransition); err != nil {
		return Transient(fmt.Errorf("failed to record transition: %w", err))
	}
	if err := uow.Commit(); err != nil {
		return Transient(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return s.notifyOnce(ctx, jobKey, giveaway, kind)
}

// rerollWinner draws a replacement winner and schedules the next claim window.
// On an empty pool the giveaway terminates with reroll_count unchanged: no
// valid reroll target existed, so no reroll happened.
func (s *lifecycleService) rerollWinner(ctx context.Context, uow UnitOfWork, giveaway *models.Giveaway, now time.Time) (NotificationKind, error) {
	winnerID, err := s.pickEligible(ctx, uow, giveaway, now)
	if errors.Is(err, ErrEmptyPool) {
		giveaway.Status = models.GiveawayStatusExhaustedNoWinner
		giveaway.AnnouncedWinnerID = nil
		giveaway.WinnerAnnouncedAt = nil
		if err := uow.GiveawayRepository().UpdateIfStatus(ctx, giveaway, models.GiveawayStatusAwaitingClaim); err != nil {
			return "", err
		}
		uow.EventBus().Publish(events.GiveawayExhaustedEvent{
			GiveawayID:  giveaway.ID,
			GuildID:     giveaway.GuildID,
			ChannelID:   giveaway.ChannelID,
			RerollCount: giveaway.RerollCount,
		})
		return NotificationNoWinner, nil
	}
	if err != nil {
		return "", err
	}

	giveaway.RerollCount++
	giveaway.AnnouncedWinnerID = &winnerID
	giveaway.WinnerAnnouncedAt = &now
	if err := uow.GiveawayRepository().UpdateIfStatus(ctx, giveaway, models.GiveawayStatusAwaitingClaim); err != nil {
		return "", err
	}
	if err := s.scheduleClaimTimeout(ctx, uow, giveaway, now); err != nil {
		return "", err
	}

	uow.EventBus().Publish(events.WinnerAnnouncedEvent{
		GiveawayID:  giveaway.ID,
		GuildID:     giveaway.GuildID,
		ChannelID:   giveaway.ChannelID,
		WinnerID:    winnerID,
		RerollCount: giveaway.RerollCount,
	})
	telemetry.WinnersAnnounced.Inc()
	telemetry.Rerolls.Inc()
	return NotificationWinnerAnnounced, nil
}

// announceNextWinner runs winner selection for a freshly ended giveaway and
// moves it to AwaitingClaim, or to ExhaustedNoWinner when nobody is eligible.
// Called with the giveaway already in Ended within the open transaction.
func (s *lifecycleService) announceNextWinner(ctx context.Context, uow UnitOfWork, giveaway *models.Giveaway, now time.Time) (NotificationKind, error) {
	winnerID, err := s.pickEligible(ctx, uow, giveaway, now)
	if errors.Is(err, ErrEmptyPool) {
		giveaway.Status = models.GiveawayStatusExhaustedNoWinner
		if err := uow.GiveawayRepository().UpdateIfStatus(ctx, giveaway, models.GiveawayStatusEnded); err != nil {
			return "", Transient(fmt.Errorf("failed to exhaust giveaway: %w", err))
		}
		uow.EventBus().Publish(events.GiveawayExhaustedEvent{
			GiveawayID: giveaway.ID,
			GuildID:    giveaway.GuildID,
			ChannelID:  giveaway.ChannelID,
		})
		return NotificationNoWinner, nil
	}
	if err != nil {
		return "", err
	}

	giveaway.Status = models.GiveawayStatusAwaitingClaim
	giveaway.AnnouncedWinnerID = &winnerID
	giveaway.WinnerAnnouncedAt = &now
	if err := uow.GiveawayRepository().UpdateIfStatus(ctx, giveaway, models.GiveawayStatusEnded); err != nil {
		return "", Transient(fmt.Errorf("failed to announce winner: %w", err))
	}
	if err := s.scheduleClaimTimeout(ctx, uow, giveaway, now); err != nil {
		return "", err
	}

	uow.EventBus().Publish(events.WinnerAnnouncedEvent{
		GiveawayID:  giveaway.ID,
		GuildID:     giveaway.GuildID,
		ChannelID:   giveaway.ChannelID,
		WinnerID:    winnerID,
		RerollCount: giveaway.RerollCount,
	})
	telemetry.WinnersAnnounced.Inc()
	return NotificationWinnerAnnounced, nil
}

// pickEligible draws from the entry pool minus exclusions, re-validating each
// pick against the member's current state. An ineligible pick is dropped from
// the local pool and selection retried, so the loop terminates in at most
// |pool| iterations.
func (s *lifecycleService) pickEligible(ctx context.Context, uow UnitOfWork, giveaway *models.Giveaway, now time.Time) (int64, error) {
	entries, err := uow.EntryRepository().ListDiscordIDs(ctx, giveaway.ID)
	if err != nil {
		return 0, Transient(fmt.Errorf("failed to list entries: %w", err))
	}
	excluded, err := uow.GiveawayRepository().GetExclusions(ctx, giveaway.ID)
	if err != nil {
		return 0, Transient(fmt.Errorf("failed to list exclusions: %w", err))
	}

	pool := BuildPool(entries, excluded)
	for len(pool) > 0 {
		candidateID, err := s.selector.Pick(pool)
		if err != nil {
			return 0, err
		}

		member, err := s.directory.GetMember(ctx, giveaway.GuildID, candidateID)
		if err != nil {
			return 0, Transient(fmt.Errorf("failed to resolve member %d: %w", candidateID, err))
		}
		if rejection := ValidateCandidate(giveaway, member, now); rejection != nil {
			log.WithFields(log.Fields{
				"giveawayID":  giveaway.ID,
				"candidateID": candidateID,
				"reason":      rejection.Reason,
			}).Debug("Skipping ineligible candidate at selection time")
			pool = RemoveFromPool(pool, candidateID)
			continue
		}
		return candidateID, nil
	}
	return 0, ErrEmptyPool
}

// scheduleClaimTimeout enqueues the claim-timeout job for the current claim
// cycle. The job key embeds the reroll epoch, so re-enqueueing after a retry
// collapses onto the existing row.
func (s *lifecycleService) scheduleClaimTimeout(ctx context.Context, uow UnitOfWork, giveaway *models.Giveaway, now time.Time) error {
	job := &models.ScheduledJob{
		JobKey:       models.JobKey(giveaway.ID, models.TransitionClaimTimeout, giveaway.RerollCount),
		GuildID:      giveaway.GuildID,
		GiveawayID:   giveaway.ID,
		Transition:   models.TransitionClaimTimeout,
		AttemptEpoch: giveaway.RerollCount,
		RunAt:        now.Add(giveaway.ClaimWindow()),
		Status:       models.JobStatusPending,
	}
	if err := uow.JobRepository().Enqueue(ctx, job); err != nil {
		return Transient(fmt.Errorf("failed to schedule claim timeout: %w", err))
	}
	telemetry.JobsEnqueued.Inc()
	return nil
}

// notifyOnce sends the announcement for a committed transition exactly once
// per job key. The whole handler is retried when the sink fails, but the
// ledger mark keeps a successful send from repeating.
func (s *lifecycleService) notifyOnce(ctx context.Context, jobKey string, giveaway *models.Giveaway, kind NotificationKind) error {
	sent, err := s.ledger.IsRecorded(ctx, jobKey, models.LedgerStepNotify)
	if err != nil {
		return Transient(fmt.Errorf("failed to read ledger: %w", err))
	}
	if sent {
		return nil
	}

	if err := s.sink.Announce(ctx, giveaway.GuildID, giveaway.ChannelID, kind, giveaway); err != nil {
		return Transient(fmt.Errorf("failed to announce %s: %w", kind, err))
	}
	if err := s.ledger.Record(ctx, jobKey, models.LedgerStepNotify); err != nil {
		return Transient(fmt.Errorf("failed to record notification: %w", err))
	}
	return nil
}

// retryNotification re-derives the pending announcement for a job whose state
// write already committed on an earlier attempt.
func (s *lifecycleService) retryNotification(ctx context.Context, job *models.ScheduledJob) error {
	giveaway, err := s.giveaways.GetByID(ctx, job.GiveawayID)
	if err != nil {
		return Transient(fmt.Errorf("failed to get giveaway: %w", err))
	}
	if giveaway == nil {
		return nil
	}

	var kind NotificationKind
	switch giveaway.Status {
	case models.GiveawayStatusAwaitingClaim, models.GiveawayStatusCompleted:
		kind = NotificationWinnerAnnounced
	case models.GiveawayStatusExhaustedNoWinner:
		kind = NotificationNoWinner
	default:
		// Cancelled, or some later transition owns the next announcement.
		return nil
	}
	return s.notifyOnce(ctx, job.JobKey, giveaway, kind)
}
