package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"raffle/database"
	"raffle/events"
	"raffle/service"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	guildID          int64
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	giveawayRepo     service.GiveawayRepository
	entryRepo        service.EntryRepository
	jobRepo          service.JobRepository
	ledgerRepo       service.LedgerRepository
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

// CreateForGuild creates a new UnitOfWork scoped to a specific guild
func (f *unitOfWorkFactory) CreateForGuild(guildID int64) service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		guildID:          guildID,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.giveawayRepo = newGiveawayRepository(tx, u.guildID)
	u.entryRepo = newEntryRepository(tx, u.guildID)
	u.jobRepo = newJobRepository(tx, u.guildID)
	u.ledgerRepo = newLedgerRepository(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// GiveawayRepository returns the giveaway repository for this unit of work
func (u *unitOfWork) GiveawayRepository() service.GiveawayRepository {
	if u.giveawayRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.giveawayRepo
}

// EntryRepository returns the entry repository for this unit of work
func (u *unitOfWork) EntryRepository() service.EntryRepository {
	if u.entryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.entryRepo
}

// JobRepository returns the job repository for this unit of work
func (u *unitOfWork) JobRepository() service.JobRepository {
	if u.jobRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.jobRepo
}

// LedgerRepository returns the ledger repository for this unit of work
func (u *unitOfWork) LedgerRepository() service.LedgerRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

// EventBus returns the transactional event bus for this unit of work.
// Events published here are buffered and only delivered after Commit.
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
