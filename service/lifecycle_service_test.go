package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"raffle/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type lifecycleFixture struct {
	factory   *MockUnitOfWorkFactory
	uow       *MockUnitOfWork
	giveaways *MockGiveawayRepository // transaction-scoped
	entries   *MockEntryRepository
	jobs      *MockJobRepository
	uowLedger *MockLedgerRepository
	poolGives *MockGiveawayRepository // pool-backed
	ledger    *MockLedgerRepository   // pool-backed
	directory *MockMemberDirectory
	sink      *MockNotificationSink
	service   LifecycleService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		factory:   new(MockUnitOfWorkFactory),
		uow:       new(MockUnitOfWork),
		giveaways: new(MockGiveawayRepository),
		entries:   new(MockEntryRepository),
		jobs:      new(MockJobRepository),
		uowLedger: new(MockLedgerRepository),
		poolGives: new(MockGiveawayRepository),
		ledger:    new(MockLedgerRepository),
		directory: new(MockMemberDirectory),
		sink:      new(MockNotificationSink),
	}
	f.uow.SetRepositories(f.giveaways, f.entries, f.jobs, f.uowLedger, nil)
	f.service = NewLifecycleService(f.factory, f.poolGives, f.ledger, NewSeededWinnerSelector(1), f.directory, f.sink)
	return f
}

func endJob(giveawayID int64) *models.ScheduledJob {
	return &models.ScheduledJob{
		JobKey:     models.JobKey(giveawayID, models.TransitionEnd, 0),
		GuildID:    100,
		GiveawayID: giveawayID,
		Transition: models.TransitionEnd,
		Status:     models.JobStatusRunning,
	}
}

func claimTimeoutJob(giveawayID int64, epoch int) *models.ScheduledJob {
	return &models.ScheduledJob{
		JobKey:       models.JobKey(giveawayID, models.TransitionClaimTimeout, epoch),
		GuildID:      100,
		GiveawayID:   giveawayID,
		Transition:   models.TransitionClaimTimeout,
		AttemptEpoch: epoch,
		Status:       models.JobStatusRunning,
	}
}

func TestLifecycleService_HandleEnd_AnnouncesWinner(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := endJob(1)

	giveaway := activeGiveaway()
	giveaway.EndsAt = time.Now().Add(-time.Minute)

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)

	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusActive).Return(nil)
	f.entries.On("ListDiscordIDs", ctx, int64(1)).Return([]int64{42}, nil)
	f.giveaways.On("GetExclusions", ctx, int64(1)).Return(nil, nil)
	f.directory.On("GetMember", ctx, int64(100), int64(42)).Return(eligibleMember(42), nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusEnded).Return(nil)
	f.jobs.On("Enqueue", ctx, mock.MatchedBy(func(j *models.ScheduledJob) bool {
		return j.Transition == models.TransitionClaimTimeout && j.AttemptEpoch == 0
	})).Return(nil)
	f.uowLedger.On("Record", ctx, job.JobKey, models.LedgerStepTransition).Return(nil)

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepNotify).Return(false, nil)
	f.sink.On("Announce", ctx, int64(100), giveaway.ChannelID, NotificationWinnerAnnounced, giveaway).Return(nil)
	f.ledger.On("Record", ctx, job.JobKey, models.LedgerStepNotify).Return(nil)

	err := f.service.HandleEnd(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusAwaitingClaim, giveaway.Status)
	require.NotNil(t, giveaway.AnnouncedWinnerID)
	assert.Equal(t, int64(42), *giveaway.AnnouncedWinnerID)
	assert.NotNil(t, giveaway.EndedAt)
	assert.NotNil(t, giveaway.WinnerAnnouncedAt)
	f.uow.AssertExpectations(t)
	f.sink.AssertExpectations(t)
	f.jobs.AssertExpectations(t)
}

func TestLifecycleService_HandleEnd_NoEntries_Exhausts(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := endJob(1)

	giveaway := activeGiveaway()

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)

	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusActive).Return(nil)
	f.entries.On("ListDiscordIDs", ctx, int64(1)).Return(nil, nil)
	f.giveaways.On("GetExclusions", ctx, int64(1)).Return(nil, nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusEnded).Return(nil)
	f.uowLedger.On("Record", ctx, job.JobKey, models.LedgerStepTransition).Return(nil)

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepNotify).Return(false, nil)
	f.sink.On("Announce", ctx, int64(100), giveaway.ChannelID, NotificationNoWinner, giveaway).Return(nil)
	f.ledger.On("Record", ctx, job.JobKey, models.LedgerStepNotify).Return(nil)

	err := f.service.HandleEnd(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusExhaustedNoWinner, giveaway.Status)
	f.jobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleEnd_NoLongerActive_NoOp(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := endJob(1)

	giveaway := activeGiveaway()
	giveaway.Status = models.GiveawayStatusCancelled

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)

	err := f.service.HandleEnd(ctx, job)

	require.NoError(t, err)
	f.uow.AssertNotCalled(t, "Commit")
	f.sink.AssertNotCalled(t, "Announce", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleEnd_LosesCASRace_NoOp(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := endJob(1)

	giveaway := activeGiveaway()

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusActive).Return(ErrStatusConflict)

	err := f.service.HandleEnd(ctx, job)

	require.NoError(t, err)
	f.uow.AssertNotCalled(t, "Commit")
}

func TestLifecycleService_HandleEnd_TransitionAlreadyRecorded_OnlyNotifies(t *testing.T) {
	// A previous attempt committed the state write but crashed before the
	// announcement; the retry must not touch state again.
	ctx := context.Background()
	f := newLifecycleFixture()
	job := endJob(1)

	winner := int64(42)
	giveaway := activeGiveaway()
	giveaway.Status = models.GiveawayStatusAwaitingClaim
	giveaway.AnnouncedWinnerID = &winner

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(true, nil)
	f.poolGives.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepNotify).Return(false, nil)
	f.sink.On("Announce", ctx, int64(100), giveaway.ChannelID, NotificationWinnerAnnounced, giveaway).Return(nil)
	f.ledger.On("Record", ctx, job.JobKey, models.LedgerStepNotify).Return(nil)

	err := f.service.HandleEnd(ctx, job)

	require.NoError(t, err)
	f.factory.AssertNotCalled(t, "CreateForGuild", mock.Anything)
	f.sink.AssertExpectations(t)
}

func TestLifecycleService_HandleEnd_FullyProcessed_NoOp(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := endJob(1)

	winner := int64(42)
	giveaway := activeGiveaway()
	giveaway.Status = models.GiveawayStatusAwaitingClaim
	giveaway.AnnouncedWinnerID = &winner

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(true, nil)
	f.poolGives.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepNotify).Return(true, nil)

	err := f.service.HandleEnd(ctx, job)

	require.NoError(t, err)
	f.sink.AssertNotCalled(t, "Announce", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleEnd_NotificationFailure_IsTransient(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := endJob(1)

	giveaway := activeGiveaway()

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusActive).Return(nil)
	f.entries.On("ListDiscordIDs", ctx, int64(1)).Return([]int64{42}, nil)
	f.giveaways.On("GetExclusions", ctx, int64(1)).Return(nil, nil)
	f.directory.On("GetMember", ctx, int64(100), int64(42)).Return(eligibleMember(42), nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusEnded).Return(nil)
	f.jobs.On("Enqueue", ctx, mock.Anything).Return(nil)
	f.uowLedger.On("Record", ctx, job.JobKey, models.LedgerStepTransition).Return(nil)

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepNotify).Return(false, nil)
	f.sink.On("Announce", ctx, int64(100), giveaway.ChannelID, NotificationWinnerAnnounced, giveaway).
		Return(errors.New("discord 502"))

	err := f.service.HandleEnd(ctx, job)

	// The transition committed; the retry will be caught by the ledger check
	// and only resend the announcement.
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	f.ledger.AssertNotCalled(t, "Record", ctx, job.JobKey, models.LedgerStepNotify)
}

func TestLifecycleService_HandleEnd_SkipsIneligibleCandidates(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := endJob(1)

	giveaway := activeGiveaway()

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, mock.Anything).Return(nil)
	f.entries.On("ListDiscordIDs", ctx, int64(1)).Return([]int64{42, 43}, nil)
	f.giveaways.On("GetExclusions", ctx, int64(1)).Return(nil, nil)
	// 42 left the guild since entering; 43 is still around
	f.directory.On("GetMember", ctx, int64(100), int64(42)).Return(nil, nil)
	f.directory.On("GetMember", ctx, int64(100), int64(43)).Return(eligibleMember(43), nil)
	f.jobs.On("Enqueue", ctx, mock.Anything).Return(nil)
	f.uowLedger.On("Record", ctx, job.JobKey, models.LedgerStepTransition).Return(nil)
	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepNotify).Return(false, nil)
	f.sink.On("Announce", ctx, int64(100), giveaway.ChannelID, NotificationWinnerAnnounced, giveaway).Return(nil)
	f.ledger.On("Record", ctx, job.JobKey, models.LedgerStepNotify).Return(nil)

	err := f.service.HandleEnd(ctx, job)

	require.NoError(t, err)
	require.NotNil(t, giveaway.AnnouncedWinnerID)
	assert.Equal(t, int64(43), *giveaway.AnnouncedWinnerID)
}

func TestLifecycleService_HandleClaimTimeout_Rerolls(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := claimTimeoutJob(1, 0)

	expired := int64(42)
	giveaway := activeGiveaway()
	giveaway.Status = models.GiveawayStatusAwaitingClaim
	giveaway.AnnouncedWinnerID = &expired

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.giveaways.On("AddExclusion", ctx, int64(1), int64(42)).Return(nil)
	f.entries.On("ListDiscordIDs", ctx, int64(1)).Return([]int64{42, 43}, nil)
	f.giveaways.On("GetExclusions", ctx, int64(1)).Return([]int64{42}, nil)
	f.directory.On("GetMember", ctx, int64(100), int64(43)).Return(eligibleMember(43), nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusAwaitingClaim).Return(nil)
	f.jobs.On("Enqueue", ctx, mock.MatchedBy(func(j *models.ScheduledJob) bool {
		return j.Transition == models.TransitionClaimTimeout && j.AttemptEpoch == 1
	})).Return(nil)
	f.uowLedger.On("Record", ctx, job.JobKey, models.LedgerStepTransition).Return(nil)
	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepNotify).Return(false, nil)
	f.sink.On("Announce", ctx, int64(100), giveaway.ChannelID, NotificationWinnerAnnounced, giveaway).Return(nil)
	f.ledger.On("Record", ctx, job.JobKey, models.LedgerStepNotify).Return(nil)

	err := f.service.HandleClaimTimeout(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusAwaitingClaim, giveaway.Status)
	assert.Equal(t, 1, giveaway.RerollCount)
	require.NotNil(t, giveaway.AnnouncedWinnerID)
	assert.Equal(t, int64(43), *giveaway.AnnouncedWinnerID)
	// The replacement winner's claim window starts now, not at the end
	require.NotNil(t, giveaway.WinnerAnnouncedAt)
	assert.WithinDuration(t, time.Now(), *giveaway.WinnerAnnouncedAt, time.Minute)
}

func TestLifecycleService_HandleClaimTimeout_EmptyPool_ExhaustsWithoutCountingReroll(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := claimTimeoutJob(1, 0)

	expired := int64(42)
	giveaway := activeGiveaway()
	giveaway.Status = models.GiveawayStatusAwaitingClaim
	giveaway.AnnouncedWinnerID = &expired

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.giveaways.On("AddExclusion", ctx, int64(1), int64(42)).Return(nil)
	// The only entrant is the one being excluded
	f.entries.On("ListDiscordIDs", ctx, int64(1)).Return([]int64{42}, nil)
	f.giveaways.On("GetExclusions", ctx, int64(1)).Return([]int64{42}, nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusAwaitingClaim).Return(nil)
	f.uowLedger.On("Record", ctx, job.JobKey, models.LedgerStepTransition).Return(nil)
	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepNotify).Return(false, nil)
	f.sink.On("Announce", ctx, int64(100), giveaway.ChannelID, NotificationNoWinner, giveaway).Return(nil)
	f.ledger.On("Record", ctx, job.JobKey, models.LedgerStepNotify).Return(nil)

	err := f.service.HandleClaimTimeout(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusExhaustedNoWinner, giveaway.Status)
	assert.Equal(t, 0, giveaway.RerollCount, "an empty-pool termination is not a reroll")
	assert.Nil(t, giveaway.AnnouncedWinnerID)
}

func TestLifecycleService_HandleClaimTimeout_RerollBudgetSpent_Exhausts(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := claimTimeoutJob(1, 5)

	expired := int64(42)
	giveaway := activeGiveaway()
	giveaway.Status = models.GiveawayStatusAwaitingClaim
	giveaway.AnnouncedWinnerID = &expired
	giveaway.RerollCount = 5
	giveaway.MaxRerollCount = 5

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.giveaways.On("AddExclusion", ctx, int64(1), int64(42)).Return(nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusAwaitingClaim).Return(nil)
	f.uowLedger.On("Record", ctx, job.JobKey, models.LedgerStepTransition).Return(nil)
	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepNotify).Return(false, nil)
	f.sink.On("Announce", ctx, int64(100), giveaway.ChannelID, NotificationNoWinner, giveaway).Return(nil)
	f.ledger.On("Record", ctx, job.JobKey, models.LedgerStepNotify).Return(nil)

	err := f.service.HandleClaimTimeout(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusExhaustedNoWinner, giveaway.Status)
	// No selection ever ran
	f.entries.AssertNotCalled(t, "ListDiscordIDs", mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleClaimTimeout_ClaimWonRace_NoOp(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	job := claimTimeoutJob(1, 0)

	giveaway := activeGiveaway()
	giveaway.Status = models.GiveawayStatusCompleted

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)

	err := f.service.HandleClaimTimeout(ctx, job)

	require.NoError(t, err)
	f.uow.AssertNotCalled(t, "Commit")
	f.giveaways.AssertNotCalled(t, "AddExclusion", mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleClaimTimeout_StaleEpoch_NoOp(t *testing.T) {
	// A manual reroll advanced the claim cycle; the old epoch's pending
	// timeout job must not exclude the new winner.
	ctx := context.Background()
	f := newLifecycleFixture()
	job := claimTimeoutJob(1, 0)

	newWinner := int64(77)
	giveaway := activeGiveaway()
	giveaway.Status = models.GiveawayStatusAwaitingClaim
	giveaway.AnnouncedWinnerID = &newWinner
	giveaway.RerollCount = 1

	f.ledger.On("IsRecorded", ctx, job.JobKey, models.LedgerStepTransition).Return(false, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)

	err := f.service.HandleClaimTimeout(ctx, job)

	require.NoError(t, err)
	f.giveaways.AssertNotCalled(t, "AddExclusion", mock.Anything, mock.Anything, mock.Anything)
	f.uow.AssertNotCalled(t, "Commit")
}

func TestLifecycleService_ManualReroll_NotAwaitingClaim_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()

	giveaway := activeGiveaway()

	f.poolGives.On("GetByID", ctx, int64(1)).Return(giveaway, nil)

	err := f.service.ManualReroll(ctx, 100, 1)

	assert.Equal(t, ReasonNotAwaitingClaim, RejectionReasonOf(err))
}

func TestLifecycleService_ManualReroll_UnknownGiveaway_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()

	f.poolGives.On("GetByID", ctx, int64(1)).Return(nil, nil)

	err := f.service.ManualReroll(ctx, 100, 1)

	assert.Equal(t, ReasonGiveawayNotFound, RejectionReasonOf(err))
}

func TestLifecycleService_ManualReroll_OtherGuildsGiveaway_Rejected(t *testing.T) {
	// The pool-backed lookup is unscoped, so the guild check must happen
	// before anything touches the row
	ctx := context.Background()
	f := newLifecycleFixture()

	current := int64(42)
	giveaway := activeGiveaway() // guild 100
	giveaway.Status = models.GiveawayStatusAwaitingClaim
	giveaway.AnnouncedWinnerID = &current

	f.poolGives.On("GetByID", ctx, int64(1)).Return(giveaway, nil)

	err := f.service.ManualReroll(ctx, 999, 1)

	assert.Equal(t, ReasonGiveawayNotFound, RejectionReasonOf(err))
	f.factory.AssertNotCalled(t, "CreateForGuild", mock.Anything)
	f.giveaways.AssertNotCalled(t, "AddExclusion", mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_ManualReroll_RerollsCurrentWinner(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()

	current := int64(42)
	giveaway := activeGiveaway()
	giveaway.Status = models.GiveawayStatusAwaitingClaim
	giveaway.AnnouncedWinnerID = &current

	jobKey := models.JobKey(1, models.TransitionManualReroll, 0)

	f.poolGives.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.factory.On("CreateForGuild", int64(100)).Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.giveaways.On("GetByID", ctx, int64(1)).Return(giveaway, nil)
	f.giveaways.On("AddExclusion", ctx, int64(1), int64(42)).Return(nil)
	f.entries.On("ListDiscordIDs", ctx, int64(1)).Return([]int64{42, 43}, nil)
	f.giveaways.On("GetExclusions", ctx, int64(1)).Return([]int64{42}, nil)
	f.directory.On("GetMember", ctx, int64(100), int64(43)).Return(eligibleMember(43), nil)
	f.giveaways.On("UpdateIfStatus", ctx, giveaway, models.GiveawayStatusAwaitingClaim).Return(nil)
	f.jobs.On("Enqueue", ctx, mock.Anything).Return(nil)
	f.uowLedger.On("Record", ctx, jobKey, models.LedgerStepTransition).Return(nil)
	f.ledger.On("IsRecorded", ctx, jobKey, models.LedgerStepNotify).Return(false, nil)
	f.sink.On("Announce", ctx, int64(100), giveaway.ChannelID, NotificationWinnerAnnounced, giveaway).Return(nil)
	f.ledger.On("Record", ctx, jobKey, models.LedgerStepNotify).Return(nil)

	err := f.service.ManualReroll(ctx, 100, 1)

	require.NoError(t, err)
	assert.Equal(t, 1, giveaway.RerollCount)
	require.NotNil(t, giveaway.AnnouncedWinnerID)
	assert.Equal(t, int64(43), *giveaway.AnnouncedWinnerID)
}
