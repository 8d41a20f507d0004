package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"raffle/config"
	"raffle/events"
	"raffle/models"
	"raffle/service"
	"raffle/telemetry"
)

// HandlerFunc executes one transition for a claimed job. A nil return marks
// the job succeeded; any error counts as a failed attempt.
type HandlerFunc func(ctx context.Context, job *models.ScheduledJob) error

// Executor polls the durable job store and drives transition handlers. Each
// worker claims jobs under a lease; if a worker dies mid-execution the lease
// expires and another worker reclaims the job, which is safe because every
// handler is idempotent.
type Executor struct {
	cfg      *config.Config
	jobs     service.JobRepository
	eventBus *events.Bus
	handlers map[models.Transition]HandlerFunc
	workerID string
}

// NewExecutor creates a job executor with a unique worker identity
func NewExecutor(cfg *config.Config, jobs service.JobRepository, eventBus *events.Bus) *Executor {
	return &Executor{
		cfg:      cfg,
		jobs:     jobs,
		eventBus: eventBus,
		handlers: make(map[models.Transition]HandlerFunc),
		workerID: uuid.New().String(),
	}
}

// RegisterHandler binds a handler to a transition
func (e *Executor) RegisterHandler(transition models.Transition, handler HandlerFunc) {
	e.handlers[transition] = handler
}

// Run starts the worker pool and blocks until the context is cancelled
func (e *Executor) Run(ctx context.Context) error {
	log.WithFields(log.Fields{
		"workerID": e.workerID,
		"workers":  e.cfg.SchedulerWorkers,
	}).Info("Starting job executor")

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.SchedulerWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			e.workerLoop(ctx, fmt.Sprintf("%s-%d", e.workerID, worker))
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (e *Executor) workerLoop(ctx context.Context, workerID string) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		jobs, err := e.jobs.ClaimDue(ctx, workerID, e.cfg.JobLease, e.cfg.SchedulerBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("Failed to claim due jobs")
			continue
		}

		for _, job := range jobs {
			e.execute(ctx, job)
		}
	}
}

func (e *Executor) execute(ctx context.Context, job *models.ScheduledJob) {
	telemetry.JobsInFlight.Inc()
	defer telemetry.JobsInFlight.Dec()

	logger := log.WithFields(log.Fields{
		"jobKey":     job.JobKey,
		"transition": job.Transition,
		"attempt":    job.AttemptCount + 1,
	})

	handler, ok := e.handlers[job.Transition]
	if !ok {
		// No handler can ever succeed for this job; park it immediately.
		logger.Error("No handler registered for transition")
		e.deadLetter(ctx, job, fmt.Sprintf("no handler for transition %s", job.Transition))
		return
	}

	err := handler(ctx, job)
	if err == nil {
		if markErr := e.jobs.MarkSucceeded(ctx, job.JobKey); markErr != nil {
			// The work is done and idempotent; the reclaimed rerun will
			// no-op against the ledger.
			logger.WithError(markErr).Warn("Failed to mark job succeeded")
			return
		}
		telemetry.JobsSucceeded.Inc()
		logger.Debug("Job succeeded")
		return
	}

	// A job gets MaxJobAttempts retries after its first failure; only when
	// those are spent too does it move to the dead letter.
	attempts := job.AttemptCount + 1
	if attempts > e.cfg.MaxJobAttempts {
		logger.WithError(err).Error("Job exhausted retries, moving to dead letter")
		e.deadLetter(ctx, job, err.Error())
		return
	}

	// 1s, 2s, 4s for the default base delay
	backoff := e.cfg.RetryBaseDelay * time.Duration(1<<(attempts-1))
	nextRetryAt := time.Now().Add(backoff)
	if markErr := e.jobs.MarkForRetry(ctx, job.JobKey, attempts, nextRetryAt, err.Error()); markErr != nil {
		logger.WithError(markErr).Error("Failed to schedule retry")
		return
	}
	telemetry.JobsRetried.Inc()
	logger.WithFields(log.Fields{
		"error":   err,
		"backoff": backoff,
	}).Warn("Job failed, scheduled retry")
}

func (e *Executor) deadLetter(ctx context.Context, job *models.ScheduledJob, lastError string) {
	if err := e.jobs.MarkDeadLettered(ctx, job.JobKey, job.AttemptCount+1, lastError); err != nil {
		log.WithFields(log.Fields{
			"jobKey": job.JobKey,
			"error":  err,
		}).Error("Failed to dead-letter job")
		return
	}
	telemetry.JobsDeadLettered.Inc()
	e.eventBus.Emit(ctx, events.JobDeadLetteredEvent{
		JobKey:     job.JobKey,
		GiveawayID: job.GiveawayID,
		GuildID:    job.GuildID,
		LastError:  lastError,
	})
}
