package services

import (
	"context"
	"testing"
	"time"

	"coinbet/domain/entities"
	"coinbet/domain/events"
	"coinbet/domain/testhelpers"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
)

// Test constants for consistent test data
const (
	TestTournamentID   = int64(10)
	TestMarketID       = int64(20)
	TestOverallID      = int64(21)
	TestBetID          = int64(30)
	TestUser1ID        = int64(100)
	TestUser2ID        = int64(200)
	TestAdminID        = int64(900)
	TestInitialBalance = int64(1000)
)

// TestNow is the fixed time of the fake clock used in service tests
var TestNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// TestMocks aggregates all repository mocks for testing
type TestMocks struct {
	UserRepo           *testhelpers.MockUserRepository
	BalanceHistoryRepo *testhelpers.MockBalanceHistoryRepository
	MarketRepo         *testhelpers.MockMarketRepository
	BetRepo            *testhelpers.MockBetRepository
	TournamentRepo     *testhelpers.MockTournamentRepository
	EventPublisher     *testhelpers.MockEventPublisher
	CounterStore       *testhelpers.MockCounterStore
	Clock              *clockwork.FakeClock
}

// NewTestMocks creates a new set of mocks
func NewTestMocks() *TestMocks {
	return &TestMocks{
		UserRepo:           &testhelpers.MockUserRepository{},
		BalanceHistoryRepo: &testhelpers.MockBalanceHistoryRepository{},
		MarketRepo:         &testhelpers.MockMarketRepository{},
		BetRepo:            &testhelpers.MockBetRepository{},
		TournamentRepo:     &testhelpers.MockTournamentRepository{},
		EventPublisher:     &testhelpers.MockEventPublisher{},
		CounterStore:       &testhelpers.MockCounterStore{},
		Clock:              clockwork.NewFakeClockAt(TestNow),
	}
}

// AssertAllExpectations verifies all mock expectations were met
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.UserRepo.AssertExpectations(t)
	m.BalanceHistoryRepo.AssertExpectations(t)
	m.MarketRepo.AssertExpectations(t)
	m.BetRepo.AssertExpectations(t)
	m.TournamentRepo.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
	m.CounterStore.AssertExpectations(t)
}

// MockHelper provides common mock setup patterns
type MockHelper struct {
	mocks *TestMocks
	ctx   context.Context
}

// NewMockHelper creates a new mock helper
func NewMockHelper(mocks *TestMocks) *MockHelper {
	return &MockHelper{
		mocks: mocks,
		ctx:   context.Background(),
	}
}

// ExpectUserLookup sets up user repository mock expectations
func (h *MockHelper) ExpectUserLookup(userID int64, user *entities.User) {
	h.mocks.UserRepo.On("GetByID", mock.Anything, userID).Return(user, nil)
}

// ExpectUserLock sets up the locked user read done by the ledger
func (h *MockHelper) ExpectUserLock(userID int64, user *entities.User) {
	h.mocks.UserRepo.On("GetByIDForUpdate", mock.Anything, userID).Return(user, nil)
}

// ExpectBalanceUpdate sets up user repository mock to update balance
func (h *MockHelper) ExpectBalanceUpdate(userID int64, newBalance int64) {
	h.mocks.UserRepo.On("UpdateBalance", mock.Anything, userID, newBalance).Return(nil)
}

// ExpectBalanceHistoryRecordSimple sets up balance history repository mock with simple parameters
func (h *MockHelper) ExpectBalanceHistoryRecordSimple(userID int64, balanceAfter int64, transactionType entities.TransactionType) {
	h.mocks.BalanceHistoryRepo.On("Record", mock.Anything, mock.MatchedBy(func(bh *entities.BalanceHistory) bool {
		return bh.UserID == userID &&
			bh.BalanceAfter == balanceAfter &&
			bh.TransactionType == transactionType
	})).Return(nil)
}

// ExpectLedgerChange sets up the full ledger round trip for one balance change
func (h *MockHelper) ExpectLedgerChange(user *entities.User, newBalance int64, transactionType entities.TransactionType) {
	h.ExpectUserLock(user.ID, user)
	h.ExpectBalanceUpdate(user.ID, newBalance)
	h.ExpectBalanceHistoryRecordSimple(user.ID, newBalance, transactionType)
	h.ExpectEventPublish(events.EventTypeBalanceChange)
}

// ExpectMarketLookup sets up an unlocked market read
func (h *MockHelper) ExpectMarketLookup(marketID int64, market *entities.Market) {
	h.mocks.MarketRepo.On("GetByID", mock.Anything, marketID).Return(market, nil)
}

// ExpectMarketShareLock sets up the shared market read done when placing a bet
func (h *MockHelper) ExpectMarketShareLock(marketID int64, market *entities.Market) {
	h.mocks.MarketRepo.On("GetByIDForShare", mock.Anything, marketID).Return(market, nil)
}

// ExpectMarketLock sets up an exclusive market read
func (h *MockHelper) ExpectMarketLock(marketID int64, market *entities.Market) {
	h.mocks.MarketRepo.On("GetByIDForUpdate", mock.Anything, marketID).Return(market, nil)
}

// ExpectBetLookup sets up bet repository mock expectations
func (h *MockHelper) ExpectBetLookup(betID int64, bet *entities.Bet) {
	h.mocks.BetRepo.On("GetByID", mock.Anything, betID).Return(bet, nil)
}

// ExpectStatusChange sets up a successful compare-and-set returning the updated bet
func (h *MockHelper) ExpectStatusChange(bet *entities.Bet, status entities.BetStatus) *entities.Bet {
	updated := *bet
	updated.Status = status
	settledAt := TestNow
	updated.SettledAt = &settledAt
	h.mocks.BetRepo.On("CompareAndSetStatus", mock.Anything, bet.ID, status, TestNow).Return(&updated, nil)
	return &updated
}

// ExpectTournamentLookup sets up tournament repository mock expectations
func (h *MockHelper) ExpectTournamentLookup(tournamentID int64, tournament *entities.Tournament) {
	h.mocks.TournamentRepo.On("GetByID", mock.Anything, tournamentID).Return(tournament, nil)
}

// ExpectTournamentLock sets up a locked tournament read
func (h *MockHelper) ExpectTournamentLock(tournamentID int64, tournament *entities.Tournament) {
	h.mocks.TournamentRepo.On("GetByIDForUpdate", mock.Anything, tournamentID).Return(tournament, nil)
}

// ExpectEventPublish sets up event publisher mock expectations
func (h *MockHelper) ExpectEventPublish(eventType events.EventType) {
	h.mocks.EventPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		return e.Type() == eventType
	})).Return(nil)
}

// NewTestUser returns a user with the given balance
func NewTestUser(id int64, balance int64) *entities.User {
	return &entities.User{ID: id, Username: "user", Balance: balance, CreatedAt: TestNow, UpdatedAt: TestNow}
}

// NewTestTournament returns an upcoming tournament with the given roster
func NewTestTournament(teams ...string) *entities.Tournament {
	t := &entities.Tournament{
		ID:        TestTournamentID,
		Name:      "Spring Cup",
		StartDate: TestNow,
		EndDate:   TestNow.Add(7 * 24 * time.Hour),
		Status:    entities.TournamentStatusUpcoming,
	}
	for _, name := range teams {
		t.Teams = append(t.Teams, entities.Team{Name: name})
	}
	overallID := TestOverallID
	t.OverallWinnerMarketID = &overallID
	return t
}

// NewTestMatch returns an upcoming match market between two teams
func NewTestMatch(team1, team2 string) *entities.Market {
	m := entities.NewMatchMarket(TestTournamentID, team1, team2, "", TestNow.Add(24*time.Hour))
	m.ID = TestMarketID
	for i, opt := range m.Options {
		opt.ID = int64(i + 1)
		opt.MarketID = m.ID
	}
	return m
}

// NewTestBet returns an active bet on the test market
func NewTestBet(userID int64, selection string, amount int64, odds float64) *entities.Bet {
	return &entities.Bet{
		ID:           TestBetID,
		UserID:       userID,
		MarketID:     TestMarketID,
		TournamentID: TestTournamentID,
		Selection:    selection,
		Amount:       amount,
		Odds:         odds,
		PotentialWin: entities.CalculatePotentialWin(amount, odds),
		Status:       entities.BetStatusActive,
		CreatedAt:    TestNow,
	}
}

// AdminPrincipal is an admin caller for tests
func AdminPrincipal() entities.Principal {
	return entities.Principal{UserID: TestAdminID, IsAdmin: true}
}

// UserPrincipal is a regular caller for tests
func UserPrincipal(userID int64) entities.Principal {
	return entities.Principal{UserID: userID}
}
