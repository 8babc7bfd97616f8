package testhelpers

import (
	"context"
	"time"

	"coinbet/domain/entities"
	"coinbet/domain/events"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateBalance(ctx context.Context, id int64, newBalance int64) error {
	args := m.Called(ctx, id, newBalance)
	return args.Error(0)
}

func (m *MockUserRepository) SetBanned(ctx context.Context, id int64, banned bool, reason *string) error {
	args := m.Called(ctx, id, banned, reason)
	return args.Error(0)
}

func (m *MockUserRepository) GetLeaderboard(ctx context.Context, page entities.Page) ([]*entities.LeaderboardEntry, int64, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*entities.LeaderboardEntry), args.Get(1).(int64), args.Error(2)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *entities.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BalanceHistory), args.Error(1)
}

// MockMarketRepository is a mock implementation of MarketRepository
type MockMarketRepository struct {
	mock.Mock
}

func (m *MockMarketRepository) Create(ctx context.Context, market *entities.Market) error {
	args := m.Called(ctx, market)
	return args.Error(0)
}

func (m *MockMarketRepository) GetByID(ctx context.Context, id int64) (*entities.Market, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Market), args.Error(1)
}

func (m *MockMarketRepository) GetByIDForShare(ctx context.Context, id int64) (*entities.Market, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Market), args.Error(1)
}

func (m *MockMarketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Market, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Market), args.Error(1)
}

func (m *MockMarketRepository) GetByTournament(ctx context.Context, tournamentID int64) ([]*entities.Market, error) {
	args := m.Called(ctx, tournamentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Market), args.Error(1)
}

func (m *MockMarketRepository) LockByTournament(ctx context.Context, tournamentID int64) error {
	args := m.Called(ctx, tournamentID)
	return args.Error(0)
}

func (m *MockMarketRepository) Update(ctx context.Context, market *entities.Market) error {
	args := m.Called(ctx, market)
	return args.Error(0)
}

func (m *MockMarketRepository) ReplaceOptions(ctx context.Context, marketID int64, options []*entities.MarketOption) error {
	args := m.Called(ctx, marketID, options)
	return args.Error(0)
}

func (m *MockMarketRepository) UpdateOdds(ctx context.Context, marketID int64, odds []entities.OptionOdds) error {
	args := m.Called(ctx, marketID, odds)
	return args.Error(0)
}

func (m *MockMarketRepository) IncrementStake(ctx context.Context, marketID int64, option string, amount int64) error {
	args := m.Called(ctx, marketID, option, amount)
	return args.Error(0)
}

func (m *MockMarketRepository) DecrementStake(ctx context.Context, marketID int64, option string, amount int64) (int64, error) {
	args := m.Called(ctx, marketID, option, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMarketRepository) MarkSettled(ctx context.Context, marketID int64, at time.Time) error {
	args := m.Called(ctx, marketID, at)
	return args.Error(0)
}

func (m *MockMarketRepository) GetUnsettled(ctx context.Context) ([]*entities.Market, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Market), args.Error(1)
}

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *entities.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) GetByID(ctx context.Context, id int64) (*entities.Bet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Bet), args.Error(1)
}

func (m *MockBetRepository) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*entities.Bet, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Bet), args.Error(1)
}

func (m *MockBetRepository) GetByUser(ctx context.Context, userID int64, filter entities.BetFilter, page entities.Page) ([]*entities.Bet, int64, error) {
	args := m.Called(ctx, userID, filter, page)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*entities.Bet), args.Get(1).(int64), args.Error(2)
}

func (m *MockBetRepository) GetActiveByMarket(ctx context.Context, marketID int64) ([]*entities.Bet, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Bet), args.Error(1)
}

func (m *MockBetRepository) CountActiveByTournament(ctx context.Context, tournamentID int64) (int64, error) {
	args := m.Called(ctx, tournamentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBetRepository) CountActiveBySelection(ctx context.Context, marketID int64) (map[string]int64, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockBetRepository) CompareAndSetStatus(ctx context.Context, betID int64, status entities.BetStatus, at time.Time) (*entities.Bet, error) {
	args := m.Called(ctx, betID, status, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Bet), args.Error(1)
}

func (m *MockBetRepository) MarkStakeRecorded(ctx context.Context, betID int64) (bool, error) {
	args := m.Called(ctx, betID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBetRepository) GetUnrecorded(ctx context.Context, before time.Time, limit int) ([]*entities.Bet, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Bet), args.Error(1)
}

func (m *MockBetRepository) GetSettlementTotals(ctx context.Context, marketID int64) (*entities.SettlementTotals, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SettlementTotals), args.Error(1)
}

func (m *MockBetRepository) GetOptionSummaries(ctx context.Context, marketID int64) ([]*entities.OptionSummary, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.OptionSummary), args.Error(1)
}

// MockTournamentRepository is a mock implementation of TournamentRepository
type MockTournamentRepository struct {
	mock.Mock
}

func (m *MockTournamentRepository) Create(ctx context.Context, tournament *entities.Tournament) error {
	args := m.Called(ctx, tournament)
	return args.Error(0)
}

func (m *MockTournamentRepository) GetByID(ctx context.Context, id int64) (*entities.Tournament, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Tournament), args.Error(1)
}

func (m *MockTournamentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Tournament, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Tournament), args.Error(1)
}

func (m *MockTournamentRepository) Update(ctx context.Context, tournament *entities.Tournament) error {
	args := m.Called(ctx, tournament)
	return args.Error(0)
}

func (m *MockTournamentRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTournamentRepository) List(ctx context.Context, page entities.Page) ([]*entities.Tournament, int64, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*entities.Tournament), args.Get(1).(int64), args.Error(2)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockCounterStore is a mock implementation of CounterStore
type MockCounterStore struct {
	mock.Mock
}

func (m *MockCounterStore) Get(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	args := m.Called(ctx, key, ttl)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCounterStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// MockOddsCache is a mock implementation of OddsCache
type MockOddsCache struct {
	mock.Mock
}

func (m *MockOddsCache) SetOdds(ctx context.Context, snapshot *entities.OddsSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockOddsCache) GetOdds(ctx context.Context, marketID int64) (*entities.OddsSnapshot, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.OddsSnapshot), args.Error(1)
}

func (m *MockOddsCache) Invalidate(ctx context.Context, marketID int64) error {
	args := m.Called(ctx, marketID)
	return args.Error(0)
}
