package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"raffle/config"
	"raffle/events"
	"raffle/models"
	"raffle/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		SchedulerWorkers:   1,
		PollInterval:       10 * time.Millisecond,
		JobLease:           30 * time.Second,
		MaxJobAttempts:     3,
		RetryBaseDelay:     time.Second,
		SchedulerBatchSize: 20,
	}
}

func runningJob(attempts int) *models.ScheduledJob {
	return &models.ScheduledJob{
		JobKey:       models.JobKey(1, models.TransitionEnd, 0),
		GuildID:      100,
		GiveawayID:   1,
		Transition:   models.TransitionEnd,
		RunAt:        time.Now().Add(-time.Minute),
		Status:       models.JobStatusRunning,
		AttemptCount: attempts,
	}
}

func TestExecutor_Execute_Success(t *testing.T) {
	jobs := new(service.MockJobRepository)
	executor := NewExecutor(testConfig(), jobs, events.NewBus())

	handled := false
	executor.RegisterHandler(models.TransitionEnd, func(ctx context.Context, job *models.ScheduledJob) error {
		handled = true
		return nil
	})

	job := runningJob(0)
	jobs.On("MarkSucceeded", mock.Anything, job.JobKey).Return(nil)

	executor.execute(context.Background(), job)

	assert.True(t, handled)
	jobs.AssertExpectations(t)
}

func TestExecutor_Execute_FailureSchedulesRetryWithBackoff(t *testing.T) {
	jobs := new(service.MockJobRepository)
	executor := NewExecutor(testConfig(), jobs, events.NewBus())
	executor.RegisterHandler(models.TransitionEnd, func(ctx context.Context, job *models.ScheduledJob) error {
		return errors.New("db unavailable")
	})

	// First failure: retry after 1s
	job := runningJob(0)
	before := time.Now()
	jobs.On("MarkForRetry", mock.Anything, job.JobKey, 1, mock.MatchedBy(func(at time.Time) bool {
		return at.Sub(before) >= time.Second && at.Sub(before) < 2*time.Second
	}), "db unavailable").Return(nil).Once()

	executor.execute(context.Background(), job)

	// Second failure: retry after 2s
	job = runningJob(1)
	before = time.Now()
	jobs.On("MarkForRetry", mock.Anything, job.JobKey, 2, mock.MatchedBy(func(at time.Time) bool {
		return at.Sub(before) >= 2*time.Second && at.Sub(before) < 3*time.Second
	}), "db unavailable").Return(nil).Once()

	executor.execute(context.Background(), job)

	// Third failure: the last retry, after 4s
	job = runningJob(2)
	before = time.Now()
	jobs.On("MarkForRetry", mock.Anything, job.JobKey, 3, mock.MatchedBy(func(at time.Time) bool {
		return at.Sub(before) >= 4*time.Second && at.Sub(before) < 5*time.Second
	}), "db unavailable").Return(nil).Once()

	executor.execute(context.Background(), job)

	jobs.AssertExpectations(t)
	jobs.AssertNotCalled(t, "MarkDeadLettered", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutor_Execute_FourthFailureDeadLetters(t *testing.T) {
	jobs := new(service.MockJobRepository)
	bus := events.NewBus()
	executor := NewExecutor(testConfig(), jobs, bus)
	executor.RegisterHandler(models.TransitionEnd, func(ctx context.Context, job *models.ScheduledJob) error {
		return errors.New("still broken")
	})

	// Bus handlers run asynchronously, so collect the event through a channel
	deadLettered := make(chan events.JobDeadLetteredEvent, 1)
	bus.Subscribe(events.EventTypeJobDeadLettered, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.JobDeadLetteredEvent); ok {
			deadLettered <- e
		}
	})

	job := runningJob(3) // the 1s, 2s and 4s retries are all spent
	jobs.On("MarkDeadLettered", mock.Anything, job.JobKey, 4, "still broken").Return(nil)

	executor.execute(context.Background(), job)

	jobs.AssertExpectations(t)
	jobs.AssertNotCalled(t, "MarkForRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	select {
	case e := <-deadLettered:
		assert.Equal(t, job.JobKey, e.JobKey)
		assert.Equal(t, int64(1), e.GiveawayID)
	case <-time.After(time.Second):
		t.Fatal("dead-letter event was never emitted")
	}
}

func TestExecutor_Execute_UnknownTransitionDeadLetters(t *testing.T) {
	jobs := new(service.MockJobRepository)
	executor := NewExecutor(testConfig(), jobs, events.NewBus())
	// No handler registered

	job := runningJob(0)
	jobs.On("MarkDeadLettered", mock.Anything, job.JobKey, 1, mock.Anything).Return(nil)

	executor.execute(context.Background(), job)

	jobs.AssertExpectations(t)
}

func TestExecutor_Run_ClaimsAndDispatches(t *testing.T) {
	jobs := new(service.MockJobRepository)
	executor := NewExecutor(testConfig(), jobs, events.NewBus())

	done := make(chan struct{})
	executor.RegisterHandler(models.TransitionEnd, func(ctx context.Context, job *models.ScheduledJob) error {
		close(done)
		return nil
	})

	job := runningJob(0)
	jobs.On("ClaimDue", mock.Anything, mock.Anything, 30*time.Second, 20).
		Return([]*models.ScheduledJob{job}, nil).Once()
	jobs.On("ClaimDue", mock.Anything, mock.Anything, 30*time.Second, 20).
		Return(nil, nil)
	jobs.On("MarkSucceeded", mock.Anything, job.JobKey).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	go executor.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never dispatched")
	}
	cancel()
}
