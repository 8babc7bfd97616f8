package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinbet/domain/entities"
	"coinbet/domain/services"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestReconciliationWorker() (*ReconciliationWorker, *MockUnitOfWorkFactory, *recordingMetrics, *clockwork.FakeClock) {
	factory := NewMockUnitOfWorkFactory()
	metrics := newRecordingMetrics()
	clock := clockwork.NewFakeClockAt(services.TestNow)
	betting := NewBettingHandler(factory, metrics, clock)
	results := NewResultOrchestrator(factory, metrics, clock)
	return NewReconciliationWorker(factory, betting, results, metrics, clock, time.Minute), factory, metrics, clock
}

func TestReconciliationWorker_RunOnce(t *testing.T) {
	ctx := context.Background()
	worker, factory, metrics, _ := newTestReconciliationWorker()
	repos := factory.Repos

	market := services.NewTestMatch("Lions", "Tigers")
	lagging := services.NewTestBet(services.TestUser1ID, "Lions", 100, 2.0)
	broken := services.NewTestBet(services.TestUser2ID, "Tigers", 50, 2.0)
	broken.ID = services.TestBetID + 1

	repos.BetRepo.On("GetUnrecorded", mock.Anything, services.TestNow.Add(-stakeGracePeriod), stakeBatchSize).
		Return([]*entities.Bet{lagging, broken}, nil)

	repos.BetRepo.On("GetByID", mock.Anything, lagging.ID).Return(lagging, nil)
	repos.MarketRepo.On("GetByIDForUpdate", mock.Anything, services.TestMarketID).Return(market, nil)
	repos.BetRepo.On("MarkStakeRecorded", mock.Anything, lagging.ID).Return(true, nil)
	repos.MarketRepo.On("IncrementStake", mock.Anything, services.TestMarketID, "Lions", int64(100)).Return(nil)
	repos.MarketRepo.On("UpdateOdds", mock.Anything, services.TestMarketID, mock.Anything).Return(nil)

	repos.BetRepo.On("GetByID", mock.Anything, broken.ID).Return(nil, errors.New("connection reset"))

	repos.MarketRepo.On("GetUnsettled", mock.Anything).Return([]*entities.Market{}, nil)

	report, err := worker.RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, &ReconcileReport{StakesRecorded: 1, StakeFailures: 1}, report)
	assert.True(t, lagging.StakeRecorded)
	assert.Equal(t, 1, metrics.stakesReplayed)
	assert.Equal(t, int64(100), market.TotalStake)
}

func TestReconciliationWorker_RunOnce_SettlesPending(t *testing.T) {
	ctx := context.Background()
	worker, factory, _, _ := newTestReconciliationWorker()
	repos := factory.Repos

	market := services.NewTestMatch("Lions", "Tigers")
	require.NoError(t, market.DeclareResult("Draw", nil))

	repos.BetRepo.On("GetUnrecorded", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	repos.MarketRepo.On("GetUnsettled", mock.Anything).Return([]*entities.Market{market}, nil)
	repos.MarketRepo.On("GetByID", mock.Anything, services.TestMarketID).Return(market, nil)
	repos.BetRepo.On("GetActiveByMarket", mock.Anything, services.TestMarketID).Return(nil, nil)
	repos.BetRepo.On("GetSettlementTotals", mock.Anything, services.TestMarketID).Return(&entities.SettlementTotals{}, nil)
	repos.MarketRepo.On("MarkSettled", mock.Anything, services.TestMarketID, services.TestNow).Return(nil)

	report, err := worker.RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, report.MarketsSettled)
}

func TestReconciliationWorker_StartAndStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	worker, factory, _, clock := newTestReconciliationWorker()

	passes := make(chan struct{}, 10)
	factory.Repos.BetRepo.On("GetUnrecorded", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	factory.Repos.MarketRepo.On("GetUnsettled", mock.Anything).
		Run(func(mock.Arguments) { passes <- struct{}{} }).
		Return(nil, nil)

	stop := worker.Start(ctx)
	defer stop()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)

	select {
	case <-passes:
	case <-ctx.Done():
		t.Fatal("reconciliation pass did not run after one interval")
	}
	factory.Repos.BetRepo.AssertCalled(t, "GetUnrecorded", mock.Anything, services.TestNow.Add(time.Minute-stakeGracePeriod), stakeBatchSize)
}
