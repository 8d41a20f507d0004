package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeGiveawayCreated   EventType = "giveaway_created"
	EventTypeEntryAdded        EventType = "entry_added"
	EventTypeWinnerAnnounced   EventType = "winner_announced"
	EventTypeGiveawayCompleted EventType = "giveaway_completed"
	EventTypeGiveawayExhausted EventType = "giveaway_exhausted"
	EventTypeGiveawayCancelled EventType = "giveaway_cancelled"
	EventTypeJobDeadLettered   EventType = "job_dead_lettered"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// GiveawayCreatedEvent represents a newly created giveaway
type GiveawayCreatedEvent struct {
	GiveawayID int64
	GuildID    int64
	ChannelID  int64
	Prize      string
}

func (e GiveawayCreatedEvent) Type() EventType {
	return EventTypeGiveawayCreated
}

// EntryAddedEvent represents an accepted entry
type EntryAddedEvent struct {
	GiveawayID int64
	GuildID    int64
	DiscordID  int64
	EntryCount int64
}

func (e EntryAddedEvent) Type() EventType {
	return EventTypeEntryAdded
}

// WinnerAnnouncedEvent represents a winner pick, both the initial one and rerolls
type WinnerAnnouncedEvent struct {
	GiveawayID  int64
	GuildID     int64
	ChannelID   int64
	WinnerID    int64
	RerollCount int
}

func (e WinnerAnnouncedEvent) Type() EventType {
	return EventTypeWinnerAnnounced
}

// GiveawayCompletedEvent represents a confirmed claim
type GiveawayCompletedEvent struct {
	GiveawayID int64
	GuildID    int64
	ChannelID  int64
	WinnerID   int64
}

func (e GiveawayCompletedEvent) Type() EventType {
	return EventTypeGiveawayCompleted
}

// GiveawayExhaustedEvent represents a giveaway that ran out of eligible winners
type GiveawayExhaustedEvent struct {
	GiveawayID  int64
	GuildID     int64
	ChannelID   int64
	RerollCount int
}

func (e GiveawayExhaustedEvent) Type() EventType {
	return EventTypeGiveawayExhausted
}

// GiveawayCancelledEvent represents an administrator cancellation
type GiveawayCancelledEvent struct {
	GiveawayID int64
	GuildID    int64
	ChannelID  int64
	ActorID    int64
}

func (e GiveawayCancelledEvent) Type() EventType {
	return EventTypeGiveawayCancelled
}

// JobDeadLetteredEvent represents a job that exhausted its retry budget
type JobDeadLetteredEvent struct {
	JobKey     string
	GiveawayID int64
	GuildID    int64
	LastError  string
}

func (e JobDeadLetteredEvent) Type() EventType {
	return EventTypeJobDeadLettered
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking the emitter
	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType": event.Type(),
						"panic":     r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

// TransactionalBus stashes events published inside a unit of work and flushes
// them to the real bus only after the transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush is called after a successful DB commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Events are processed independently of the transaction lifecycle, so a
	// background context is used rather than the (possibly expired) tx context.
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard is called after a rollback to drop pending events.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
