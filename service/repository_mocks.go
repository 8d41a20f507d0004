package service

import (
	"context"
	"time"

	"raffle/events"
	"raffle/models"

	"github.com/stretchr/testify/mock"
)

// MockGiveawayRepository is a mock implementation of GiveawayRepository
type MockGiveawayRepository struct {
	mock.Mock
}

func (m *MockGiveawayRepository) Create(ctx context.Context, giveaway *models.Giveaway) error {
	args := m.Called(ctx, giveaway)
	return args.Error(0)
}

func (m *MockGiveawayRepository) GetByID(ctx context.Context, id int64) (*models.Giveaway, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Giveaway), args.Error(1)
}

func (m *MockGiveawayRepository) GetByMessageID(ctx context.Context, messageID int64) (*models.Giveaway, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Giveaway), args.Error(1)
}

func (m *MockGiveawayRepository) UpdateIfStatus(ctx context.Context, giveaway *models.Giveaway, expected models.GiveawayStatus) error {
	args := m.Called(ctx, giveaway, expected)
	return args.Error(0)
}

func (m *MockGiveawayRepository) UpdateMessageID(ctx context.Context, giveawayID int64, messageID int64) error {
	args := m.Called(ctx, giveawayID, messageID)
	return args.Error(0)
}

func (m *MockGiveawayRepository) AddExclusion(ctx context.Context, giveawayID int64, discordID int64) error {
	args := m.Called(ctx, giveawayID, discordID)
	return args.Error(0)
}

func (m *MockGiveawayRepository) GetExclusions(ctx context.Context, giveawayID int64) ([]int64, error) {
	args := m.Called(ctx, giveawayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

// MockEntryRepository is a mock implementation of EntryRepository
type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) Create(ctx context.Context, entry *models.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepository) GetByUser(ctx context.Context, giveawayID int64, discordID int64) (*models.Entry, error) {
	args := m.Called(ctx, giveawayID, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Entry), args.Error(1)
}

func (m *MockEntryRepository) ListDiscordIDs(ctx context.Context, giveawayID int64) ([]int64, error) {
	args := m.Called(ctx, giveawayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockEntryRepository) CountByGiveaway(ctx context.Context, giveawayID int64) (int64, error) {
	args := m.Called(ctx, giveawayID)
	return args.Get(0).(int64), args.Error(1)
}

// MockJobRepository is a mock implementation of JobRepository
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Enqueue(ctx context.Context, job *models.ScheduledJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) GetByKey(ctx context.Context, jobKey string) (*models.ScheduledJob, error) {
	args := m.Called(ctx, jobKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScheduledJob), args.Error(1)
}

func (m *MockJobRepository) ClaimDue(ctx context.Context, workerID string, lease time.Duration, limit int) ([]*models.ScheduledJob, error) {
	args := m.Called(ctx, workerID, lease, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ScheduledJob), args.Error(1)
}

func (m *MockJobRepository) MarkSucceeded(ctx context.Context, jobKey string) error {
	args := m.Called(ctx, jobKey)
	return args.Error(0)
}

func (m *MockJobRepository) MarkForRetry(ctx context.Context, jobKey string, attemptCount int, nextRetryAt time.Time, lastError string) error {
	args := m.Called(ctx, jobKey, attemptCount, nextRetryAt, lastError)
	return args.Error(0)
}

func (m *MockJobRepository) MarkDeadLettered(ctx context.Context, jobKey string, attemptCount int, lastError string) error {
	args := m.Called(ctx, jobKey, attemptCount, lastError)
	return args.Error(0)
}

func (m *MockJobRepository) ListDeadLettered(ctx context.Context, limit int) ([]*models.ScheduledJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ScheduledJob), args.Error(1)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Record(ctx context.Context, jobKey string, step string) error {
	args := m.Called(ctx, jobKey, step)
	return args.Error(0)
}

func (m *MockLedgerRepository) IsRecorded(ctx context.Context, jobKey string, step string) (bool, error) {
	args := m.Called(ctx, jobKey, step)
	return args.Bool(0), args.Error(1)
}

// MockNotificationSink is a mock implementation of NotificationSink
type MockNotificationSink struct {
	mock.Mock
}

func (m *MockNotificationSink) Announce(ctx context.Context, guildID int64, channelID int64, kind NotificationKind, giveaway *models.Giveaway) error {
	args := m.Called(ctx, guildID, channelID, kind, giveaway)
	return args.Error(0)
}

// MockMemberDirectory is a mock implementation of MemberDirectory
type MockMemberDirectory struct {
	mock.Mock
}

func (m *MockMemberDirectory) GetMember(ctx context.Context, guildID int64, discordID int64) (*models.Member, error) {
	args := m.Called(ctx, guildID, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

// MockAuthorizer is a mock implementation of Authorizer
type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) CanManageGiveaways(ctx context.Context, guildID int64, actorID int64) (bool, error) {
	args := m.Called(ctx, guildID, actorID)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock

	giveawayRepo GiveawayRepository
	entryRepo    EntryRepository
	jobRepo      JobRepository
	ledgerRepo   LedgerRepository
	eventBus     EventPublisher
}

// SetRepositories configures the repositories the unit of work hands out
func (m *MockUnitOfWork) SetRepositories(
	giveawayRepo GiveawayRepository,
	entryRepo EntryRepository,
	jobRepo JobRepository,
	ledgerRepo LedgerRepository,
	eventBus EventPublisher,
) {
	m.giveawayRepo = giveawayRepo
	m.entryRepo = entryRepo
	m.jobRepo = jobRepo
	m.ledgerRepo = ledgerRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) GiveawayRepository() GiveawayRepository {
	return m.giveawayRepo
}

func (m *MockUnitOfWork) EntryRepository() EntryRepository {
	return m.entryRepo
}

func (m *MockUnitOfWork) JobRepository() JobRepository {
	return m.jobRepo
}

func (m *MockUnitOfWork) LedgerRepository() LedgerRepository {
	return m.ledgerRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.eventBus == nil {
		return &noopPublisher{}
	}
	return m.eventBus
}

type noopPublisher struct{}

func (p *noopPublisher) Publish(event events.Event) {}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) CreateForGuild(guildID int64) UnitOfWork {
	args := m.Called(guildID)
	return args.Get(0).(UnitOfWork)
}
