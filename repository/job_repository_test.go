package repository

import (
	"context"
	"testing"
	"time"

	"raffle/models"
	"raffle/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupJobTest(t *testing.T) (*JobRepository, *GiveawayRepository, *models.Giveaway) {
	testDB := testutil.SetupTestDatabase(t)
	jobs := NewJobRepository(testDB.DB)
	giveaways := NewGiveawayRepository(testDB.DB)

	giveaway := testutil.CreateTestGiveaway(100)
	require.NoError(t, giveaways.Create(context.Background(), giveaway))
	return jobs, giveaways, giveaway
}

func TestJobRepository_Enqueue_Idempotent(t *testing.T) {
	jobs, _, giveaway := setupJobTest(t)
	ctx := context.Background()

	job := testutil.CreateTestJob(100, giveaway.ID)
	require.NoError(t, jobs.Enqueue(ctx, job))

	// Same key again is a silent no-op
	duplicate := testutil.CreateTestJob(100, giveaway.ID)
	duplicate.RunAt = time.Now().Add(time.Hour)
	require.NoError(t, jobs.Enqueue(ctx, duplicate))

	stored, err := jobs.GetByKey(ctx, job.JobKey)
	require.NoError(t, err)
	require.NotNil(t, stored)
	// The original run time survived
	assert.WithinDuration(t, job.RunAt, stored.RunAt, time.Second)
	assert.Equal(t, models.JobStatusPending, stored.Status)
	assert.Equal(t, 0, stored.AttemptCount)
}

func TestJobRepository_ClaimDue(t *testing.T) {
	jobs, _, giveaway := setupJobTest(t)
	ctx := context.Background()

	t.Run("claims a due pending job", func(t *testing.T) {
		job := testutil.CreateTestJob(100, giveaway.ID)
		require.NoError(t, jobs.Enqueue(ctx, job))

		claimed, err := jobs.ClaimDue(ctx, "worker-1", 30*time.Second, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, job.JobKey, claimed[0].JobKey)
		assert.Equal(t, models.JobStatusRunning, claimed[0].Status)
		require.NotNil(t, claimed[0].LockedBy)
		assert.Equal(t, "worker-1", *claimed[0].LockedBy)
		assert.NotNil(t, claimed[0].LeaseExpiresAt)
	})

	t.Run("claimed job is not claimable again under lease", func(t *testing.T) {
		claimed, err := jobs.ClaimDue(ctx, "worker-2", 30*time.Second, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("future job is not due", func(t *testing.T) {
		future := &models.ScheduledJob{
			JobKey:     models.JobKey(giveaway.ID, models.TransitionClaimTimeout, 0),
			GuildID:    100,
			GiveawayID: giveaway.ID,
			Transition: models.TransitionClaimTimeout,
			RunAt:      time.Now().Add(time.Hour),
			Status:     models.JobStatusPending,
		}
		require.NoError(t, jobs.Enqueue(ctx, future))

		claimed, err := jobs.ClaimDue(ctx, "worker-3", 30*time.Second, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})
}

func TestJobRepository_ExpiredLeaseIsReclaimable(t *testing.T) {
	jobs, _, giveaway := setupJobTest(t)
	ctx := context.Background()

	job := testutil.CreateTestJob(100, giveaway.ID)
	require.NoError(t, jobs.Enqueue(ctx, job))

	// Claim with a lease that expires immediately
	claimed, err := jobs.ClaimDue(ctx, "dead-worker", -time.Second, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Another worker reclaims the expired lease
	reclaimed, err := jobs.ClaimDue(ctx, "live-worker", 30*time.Second, 10)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, job.JobKey, reclaimed[0].JobKey)
	require.NotNil(t, reclaimed[0].LockedBy)
	assert.Equal(t, "live-worker", *reclaimed[0].LockedBy)
}

func TestJobRepository_RetryFlow(t *testing.T) {
	jobs, _, giveaway := setupJobTest(t)
	ctx := context.Background()

	job := testutil.CreateTestJob(100, giveaway.ID)
	require.NoError(t, jobs.Enqueue(ctx, job))

	claimed, err := jobs.ClaimDue(ctx, "worker-1", 30*time.Second, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	t.Run("mark for retry returns job to pending", func(t *testing.T) {
		nextRetry := time.Now().Add(time.Second)
		require.NoError(t, jobs.MarkForRetry(ctx, job.JobKey, 1, nextRetry, "connection refused"))

		stored, err := jobs.GetByKey(ctx, job.JobKey)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, stored.Status)
		assert.Equal(t, 1, stored.AttemptCount)
		require.NotNil(t, stored.LastError)
		assert.Equal(t, "connection refused", *stored.LastError)
		assert.Nil(t, stored.LockedBy)
	})

	t.Run("not claimable before the retry time", func(t *testing.T) {
		far := time.Now().Add(time.Hour)
		require.NoError(t, jobs.MarkForRetry(ctx, job.JobKey, 1, far, "connection refused"))

		claimed, err := jobs.ClaimDue(ctx, "worker-1", 30*time.Second, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("claimable once the retry time passes", func(t *testing.T) {
		past := time.Now().Add(-time.Second)
		require.NoError(t, jobs.MarkForRetry(ctx, job.JobKey, 2, past, "connection refused"))

		claimed, err := jobs.ClaimDue(ctx, "worker-1", 30*time.Second, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, 2, claimed[0].AttemptCount)
	})
}

func TestJobRepository_TerminalStates(t *testing.T) {
	jobs, _, giveaway := setupJobTest(t)
	ctx := context.Background()

	t.Run("succeeded job is never claimed again", func(t *testing.T) {
		job := testutil.CreateTestJob(100, giveaway.ID)
		require.NoError(t, jobs.Enqueue(ctx, job))

		claimed, err := jobs.ClaimDue(ctx, "worker-1", 30*time.Second, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		require.NoError(t, jobs.MarkSucceeded(ctx, job.JobKey))

		again, err := jobs.ClaimDue(ctx, "worker-1", 30*time.Second, 10)
		require.NoError(t, err)
		assert.Empty(t, again)

		stored, err := jobs.GetByKey(ctx, job.JobKey)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusSucceeded, stored.Status)
	})

	t.Run("dead-lettered job is parked and listed", func(t *testing.T) {
		job := &models.ScheduledJob{
			JobKey:     models.JobKey(giveaway.ID, models.TransitionClaimTimeout, 1),
			GuildID:    100,
			GiveawayID: giveaway.ID,
			Transition: models.TransitionClaimTimeout,
			RunAt:      time.Now().Add(-time.Minute),
			Status:     models.JobStatusPending,
		}
		require.NoError(t, jobs.Enqueue(ctx, job))
		require.NoError(t, jobs.MarkDeadLettered(ctx, job.JobKey, 3, "handler exploded"))

		claimed, err := jobs.ClaimDue(ctx, "worker-1", 30*time.Second, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)

		parked, err := jobs.ListDeadLettered(ctx, 10)
		require.NoError(t, err)
		require.Len(t, parked, 1)
		assert.Equal(t, job.JobKey, parked[0].JobKey)
		assert.Equal(t, 3, parked[0].AttemptCount)
		require.NotNil(t, parked[0].LastError)
		assert.Equal(t, "handler exploded", *parked[0].LastError)
	})
}
