package application

import (
	"context"
	"errors"
	"testing"

	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/domain/events"
	"coinbet/domain/services"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestResultOrchestrator() (*ResultOrchestrator, *MockUnitOfWorkFactory, *recordingMetrics) {
	factory := NewMockUnitOfWorkFactory()
	metrics := newRecordingMetrics()
	return NewResultOrchestrator(factory, metrics, clockwork.NewFakeClockAt(services.TestNow)), factory, metrics
}

func newSettlementBet(id, userID int64, selection string) *entities.Bet {
	bet := services.NewTestBet(userID, selection, 100, 2.0)
	bet.ID = id
	return bet
}

// expectSettle sets up the compare-and-set of one bet and the winner's credit
func expectSettle(repos *MockRepositories, bet *entities.Bet, result string) {
	status := bet.OutcomeFor(result)
	settled := *bet
	settled.Status = status

	repos.BetRepo.On("GetByID", mock.Anything, bet.ID).Return(bet, nil)
	repos.BetRepo.On("CompareAndSetStatus", mock.Anything, bet.ID, status, services.TestNow).Return(&settled, nil)
	if status == entities.BetStatusWon {
		user := services.NewTestUser(bet.UserID, 900)
		repos.UserRepo.On("GetByIDForUpdate", mock.Anything, bet.UserID).Return(user, nil)
		repos.UserRepo.On("UpdateBalance", mock.Anything, bet.UserID, 900+bet.PotentialWin).Return(nil)
		repos.BalanceHistoryRepo.On("Record", mock.Anything, mock.MatchedBy(func(h *entities.BalanceHistory) bool {
			return h.UserID == bet.UserID && h.TransactionType == entities.TransactionTypeBetWin
		})).Return(nil)
	}
}

func TestResultOrchestrator_SettleMarket(t *testing.T) {
	ctx := context.Background()
	orchestrator, factory, metrics := newTestResultOrchestrator()
	repos := factory.Repos

	market := services.NewTestMatch("Lions", "Tigers")
	require.NoError(t, market.DeclareResult("Lions", nil))
	winner := newSettlementBet(31, services.TestUser1ID, "Lions")
	loser := newSettlementBet(32, services.TestUser2ID, "Tigers")

	repos.MarketRepo.On("GetByID", mock.Anything, services.TestMarketID).Return(market, nil)
	repos.BetRepo.On("GetActiveByMarket", mock.Anything, services.TestMarketID).Return([]*entities.Bet{winner, loser}, nil)
	expectSettle(repos, winner, "Lions")
	expectSettle(repos, loser, "Lions")
	repos.BetRepo.On("GetSettlementTotals", mock.Anything, services.TestMarketID).
		Return(&entities.SettlementTotals{Settled: 2, Won: 1, Lost: 1, TotalPayout: 200}, nil)
	repos.MarketRepo.On("MarkSettled", mock.Anything, services.TestMarketID, services.TestNow).Return(nil)

	result, err := orchestrator.SettleMarket(ctx, services.TestMarketID)

	require.NoError(t, err)
	assert.Equal(t, &entities.SettlementResult{
		MarketID:         services.TestMarketID,
		Result:           "Lions",
		SettlementTotals: entities.SettlementTotals{Settled: 2, Won: 1, Lost: 1, TotalPayout: 200},
		NewlySettled:     2,
	}, result)
	assert.Equal(t, 3, factory.Commits(), "one transaction per bet plus completion")
	assert.Equal(t, map[entities.BetStatus]int{entities.BetStatusWon: 1, entities.BetStatusLost: 1}, metrics.settled)
	assert.Equal(t, int64(200), metrics.payout)
	assert.Equal(t, 1, metrics.settlementRuns)
	assert.Len(t, repos.Publisher.Published(events.EventTypeBetSettled), 2)
	assert.Len(t, repos.Publisher.Published(events.EventTypeMarketSettled), 1)
	repos.UserRepo.AssertExpectations(t)
}

func TestResultOrchestrator_SettleMarket_SkipsAlreadySettled(t *testing.T) {
	ctx := context.Background()
	orchestrator, factory, metrics := newTestResultOrchestrator()
	repos := factory.Repos

	market := services.NewTestMatch("Lions", "Tigers")
	require.NoError(t, market.DeclareResult("Lions", nil))
	raced := newSettlementBet(31, services.TestUser1ID, "Lions")

	repos.MarketRepo.On("GetByID", mock.Anything, services.TestMarketID).Return(market, nil)
	repos.BetRepo.On("GetActiveByMarket", mock.Anything, services.TestMarketID).Return([]*entities.Bet{raced}, nil)
	repos.BetRepo.On("GetByID", mock.Anything, raced.ID).Return(raced, nil)
	repos.BetRepo.On("CompareAndSetStatus", mock.Anything, raced.ID, entities.BetStatusWon, services.TestNow).Return(nil, nil)
	repos.BetRepo.On("GetSettlementTotals", mock.Anything, services.TestMarketID).
		Return(&entities.SettlementTotals{Settled: 1, Won: 1, TotalPayout: 200}, nil)
	repos.MarketRepo.On("MarkSettled", mock.Anything, services.TestMarketID, services.TestNow).Return(nil)

	result, err := orchestrator.SettleMarket(ctx, services.TestMarketID)

	require.NoError(t, err)
	assert.Zero(t, result.NewlySettled)
	assert.Equal(t, 1, result.Won)
	assert.Empty(t, metrics.settled)
	repos.UserRepo.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultOrchestrator_SettleMarket_Incomplete(t *testing.T) {
	ctx := context.Background()
	orchestrator, factory, metrics := newTestResultOrchestrator()
	repos := factory.Repos

	market := services.NewTestMatch("Lions", "Tigers")
	require.NoError(t, market.DeclareResult("Lions", nil))
	winner := newSettlementBet(31, services.TestUser1ID, "Lions")
	broken := newSettlementBet(32, services.TestUser2ID, "Tigers")

	repos.MarketRepo.On("GetByID", mock.Anything, services.TestMarketID).Return(market, nil)
	repos.BetRepo.On("GetActiveByMarket", mock.Anything, services.TestMarketID).Return([]*entities.Bet{winner, broken}, nil)
	expectSettle(repos, winner, "Lions")
	repos.BetRepo.On("GetByID", mock.Anything, broken.ID).Return(broken, nil)
	repos.BetRepo.On("CompareAndSetStatus", mock.Anything, broken.ID, entities.BetStatusLost, services.TestNow).
		Return(nil, errors.New("deadlock detected"))

	result, err := orchestrator.SettleMarket(ctx, services.TestMarketID)

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeSettlementIncomplete))
	assert.Equal(t, domain.KindConsistency, domain.KindOf(err))
	require.NotNil(t, result)
	assert.Equal(t, 1, result.NewlySettled)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, metrics.settlementFailures)
	repos.MarketRepo.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultOrchestrator_SettleMarket_NotReady(t *testing.T) {
	ctx := context.Background()
	orchestrator, factory, metrics := newTestResultOrchestrator()

	factory.Repos.MarketRepo.On("GetByID", mock.Anything, services.TestMarketID).
		Return(services.NewTestMatch("Lions", "Tigers"), nil)

	result, err := orchestrator.SettleMarket(ctx, services.TestMarketID)

	assert.Nil(t, result)
	assert.True(t, domain.IsCode(err, domain.CodeNotReadyToSettle))
	assert.Zero(t, metrics.settlementFailures)
}

func TestResultOrchestrator_SetMatchResult(t *testing.T) {
	ctx := context.Background()

	t.Run("declares and settles", func(t *testing.T) {
		orchestrator, factory, _ := newTestResultOrchestrator()
		repos := factory.Repos
		market := services.NewTestMatch("Lions", "Tigers")
		score := "2-1"

		repos.MarketRepo.On("GetByIDForUpdate", mock.Anything, services.TestMarketID).Return(market, nil)
		repos.MarketRepo.On("Update", mock.Anything, market).Return(nil)
		repos.MarketRepo.On("GetByID", mock.Anything, services.TestMarketID).Return(market, nil)
		repos.BetRepo.On("GetActiveByMarket", mock.Anything, services.TestMarketID).Return(nil, nil)
		repos.BetRepo.On("GetSettlementTotals", mock.Anything, services.TestMarketID).Return(&entities.SettlementTotals{}, nil)
		repos.MarketRepo.On("MarkSettled", mock.Anything, services.TestMarketID, services.TestNow).Return(nil)

		result, err := orchestrator.SetMatchResult(ctx, services.AdminPrincipal(), services.TestMarketID, "Draw", &score)

		require.NoError(t, err)
		assert.Equal(t, "Draw", result.Result)
		assert.Equal(t, entities.MarketStatusFinished, market.Status)
		assert.Len(t, repos.Publisher.Published(events.EventTypeMarketResultDeclared), 1)
	})

	t.Run("rejected declaration settles nothing", func(t *testing.T) {
		orchestrator, factory, _ := newTestResultOrchestrator()
		factory.Repos.MarketRepo.On("GetByIDForUpdate", mock.Anything, services.TestMarketID).
			Return(services.NewTestMatch("Lions", "Tigers"), nil)

		result, err := orchestrator.SetMatchResult(ctx, services.AdminPrincipal(), services.TestMarketID, "Bears", nil)

		assert.Nil(t, result)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidResult))
		factory.Repos.BetRepo.AssertNotCalled(t, "GetActiveByMarket", mock.Anything, mock.Anything)
	})

	t.Run("non-admin is rejected", func(t *testing.T) {
		orchestrator, factory, _ := newTestResultOrchestrator()

		_, err := orchestrator.SetMatchResult(ctx, services.UserPrincipal(services.TestUser1ID), services.TestMarketID, "Lions", nil)

		assert.True(t, domain.IsCode(err, domain.CodeForbidden))
		assert.Zero(t, factory.Commits())
		factory.Repos.MarketRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
	})

	t.Run("settlement failure after declaration", func(t *testing.T) {
		orchestrator, factory, metrics := newTestResultOrchestrator()
		repos := factory.Repos
		market := services.NewTestMatch("Lions", "Tigers")

		repos.MarketRepo.On("GetByIDForUpdate", mock.Anything, services.TestMarketID).Return(market, nil)
		repos.MarketRepo.On("Update", mock.Anything, market).Return(nil)
		repos.MarketRepo.On("GetByID", mock.Anything, services.TestMarketID).Return(nil, errors.New("connection reset"))

		_, err := orchestrator.SetMatchResult(ctx, services.AdminPrincipal(), services.TestMarketID, "Lions", nil)

		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.CodeSettlementIncomplete))
		assert.ErrorContains(t, err, "connection reset")
		assert.Equal(t, 1, factory.Commits(), "the declaration stays committed")
		assert.Equal(t, 1, metrics.settlementFailures)
	})
}

func TestResultOrchestrator_SetTournamentResults(t *testing.T) {
	ctx := context.Background()
	orchestrator, factory, _ := newTestResultOrchestrator()
	repos := factory.Repos

	tournament := services.NewTestTournament("Lions", "Tigers")
	overall := entities.NewOverallWinnerMarket(tournament)
	overall.ID = services.TestOverallID
	rankings := []entities.Ranking{{Rank: 1, TeamName: "Tigers"}, {Rank: 2, TeamName: "Lions"}}

	repos.TournamentRepo.On("GetByIDForUpdate", mock.Anything, services.TestTournamentID).Return(tournament, nil)
	repos.MarketRepo.On("GetByIDForUpdate", mock.Anything, services.TestOverallID).Return(overall, nil)
	repos.MarketRepo.On("Update", mock.Anything, overall).Return(nil)
	repos.TournamentRepo.On("Update", mock.Anything, tournament).Return(nil)
	repos.MarketRepo.On("GetByID", mock.Anything, services.TestOverallID).Return(overall, nil)
	repos.BetRepo.On("GetActiveByMarket", mock.Anything, services.TestOverallID).Return(nil, nil)
	repos.BetRepo.On("GetSettlementTotals", mock.Anything, services.TestOverallID).Return(&entities.SettlementTotals{}, nil)
	repos.MarketRepo.On("MarkSettled", mock.Anything, services.TestOverallID, services.TestNow).Return(nil)

	result, err := orchestrator.SetTournamentResults(ctx, services.AdminPrincipal(), services.TestTournamentID, rankings)

	require.NoError(t, err)
	assert.Equal(t, services.TestOverallID, result.MarketID)
	assert.Equal(t, "Tigers", result.Result)
	assert.Equal(t, entities.TournamentStatusFinished, tournament.Status)
	assert.Len(t, repos.Publisher.Published(events.EventTypeTournamentFinished), 1)
}

func TestResultOrchestrator_SettlePending(t *testing.T) {
	ctx := context.Background()
	orchestrator, factory, _ := newTestResultOrchestrator()
	repos := factory.Repos

	ready := services.NewTestMatch("Lions", "Tigers")
	require.NoError(t, ready.DeclareResult("Tigers", nil))
	broken := services.NewTestMatch("Lions", "Bears")
	broken.ID = services.TestMarketID + 1

	repos.MarketRepo.On("GetUnsettled", mock.Anything).Return([]*entities.Market{ready, broken}, nil)
	repos.MarketRepo.On("GetByID", mock.Anything, ready.ID).Return(ready, nil)
	repos.BetRepo.On("GetActiveByMarket", mock.Anything, ready.ID).Return(nil, nil)
	repos.BetRepo.On("GetSettlementTotals", mock.Anything, ready.ID).Return(&entities.SettlementTotals{}, nil)
	repos.MarketRepo.On("MarkSettled", mock.Anything, ready.ID, services.TestNow).Return(nil)
	repos.MarketRepo.On("GetByID", mock.Anything, broken.ID).Return(nil, errors.New("timeout"))

	settled, err := orchestrator.SettlePending(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, settled)
}
