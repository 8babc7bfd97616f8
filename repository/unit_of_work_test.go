package repository

import (
	"context"
	"sync"
	"testing"

	"coinbet/application"
	"coinbet/database"
	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/domain/events"
	"coinbet/domain/interfaces"
	"coinbet/domain/services"
	"coinbet/domain/testhelpers"
	"coinbet/repository/testutil"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTransaction runs fn in its own unit of work, committing on success
func inTransaction(ctx context.Context, db *database.DB, publisher *testhelpers.RecordingPublisher, fn func(uow application.UnitOfWork) error) error {
	uow := CreateTestUnitOfWork(db, publisher)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

func betServiceFor(uow application.UnitOfWork) interfaces.BetService {
	return services.NewBetService(
		uow.BetRepository(),
		uow.MarketRepository(),
		uow.UserRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		clockwork.NewRealClock(),
	)
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	user := testutil.CreateTestUser("alice")
	require.NoError(t, NewUserRepository(testDB.DB).Create(ctx, user))

	t.Run("rollback discards writes and events", func(t *testing.T) {
		publisher := testhelpers.NewRecordingPublisher()
		uow := CreateTestUnitOfWork(testDB.DB, publisher)
		require.NoError(t, uow.Begin(ctx))

		ledger := services.NewLedgerService(uow.UserRepository(), uow.BalanceHistoryRepository(), uow.EventBus(), clockwork.NewRealClock())
		_, err := ledger.Debit(ctx, user.ID, 100, entities.LedgerEntry{TransactionType: entities.TransactionTypeAdminAdjustment})
		require.NoError(t, err)
		assert.Equal(t, 1, publisher.PendingCount())

		require.NoError(t, uow.Rollback())
		assert.Zero(t, publisher.PendingCount())
		assert.Empty(t, publisher.Published(events.EventTypeBalanceChange))

		reloaded, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), reloaded.Balance)
	})

	t.Run("commit flushes events", func(t *testing.T) {
		publisher := testhelpers.NewRecordingPublisher()
		err := inTransaction(ctx, testDB.DB, publisher, func(uow application.UnitOfWork) error {
			ledger := services.NewLedgerService(uow.UserRepository(), uow.BalanceHistoryRepository(), uow.EventBus(), clockwork.NewRealClock())
			_, err := ledger.Credit(ctx, user.ID, 50, entities.LedgerEntry{TransactionType: entities.TransactionTypeAdminAdjustment})
			return err
		})
		require.NoError(t, err)
		assert.Len(t, publisher.Published(events.EventTypeBalanceChange), 1)

		history, err := NewBalanceHistoryRepository(testDB.DB).GetByUser(ctx, user.ID, 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, int64(1050), history[0].BalanceAfter)
	})

	t.Run("repositories require Begin", func(t *testing.T) {
		uow := CreateTestUnitOfWork(testDB.DB, testhelpers.NewRecordingPublisher())
		assert.Panics(t, func() { uow.BetRepository() })
		assert.NoError(t, uow.Rollback())
		assert.Error(t, uow.Commit())
	})
}

func TestConcurrentBetsCannotOverdraw(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	user := testutil.CreateTestUserWithBalance("alice", 150)
	require.NoError(t, NewUserRepository(testDB.DB).Create(ctx, user))
	_, market := seedMatch(t, testDB.DB)

	const attempts = 2
	start := make(chan struct{})
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = inTransaction(ctx, testDB.DB, testhelpers.NewRecordingPublisher(), func(uow application.UnitOfWork) error {
				_, err := betServiceFor(uow).PlaceBet(ctx, entities.Principal{UserID: user.ID}, entities.PlaceBetRequest{
					MarketID:  market.ID,
					Selection: "Lions",
					Amount:    100,
				})
				return err
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case domain.IsCode(err, domain.CodeInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)

	reloaded, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), reloaded.Balance)

	bets, total, err := NewBetRepository(testDB.DB).GetByUser(ctx, user.ID, entities.BetFilter{}, testPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "the rejected bet is rolled back with its debit")
	assert.Len(t, bets, 1)
}

func TestBetLifecycle(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	alice := testutil.CreateTestUser("alice")
	bob := testutil.CreateTestUser("bob")
	require.NoError(t, NewUserRepository(testDB.DB).Create(ctx, alice))
	require.NoError(t, NewUserRepository(testDB.DB).Create(ctx, bob))
	_, market := seedMatch(t, testDB.DB)

	place := func(userID int64, selection string, amount int64) *entities.Bet {
		var placed *entities.Bet
		err := inTransaction(ctx, testDB.DB, testhelpers.NewRecordingPublisher(), func(uow application.UnitOfWork) error {
			result, err := betServiceFor(uow).PlaceBet(ctx, entities.Principal{UserID: userID}, entities.PlaceBetRequest{
				MarketID:  market.ID,
				Selection: selection,
				Amount:    amount,
			})
			if err != nil {
				return err
			}
			placed = result.Bet
			return nil
		})
		require.NoError(t, err)

		var recorded bool
		err = inTransaction(ctx, testDB.DB, testhelpers.NewRecordingPublisher(), func(uow application.UnitOfWork) error {
			var err error
			recorded, err = betServiceFor(uow).RecordStake(ctx, placed.ID)
			return err
		})
		require.NoError(t, err)
		require.True(t, recorded)
		return placed
	}

	winner := place(alice.ID, "Lions", 100)
	loser := place(bob.ID, "Tigers", 200)
	cancelled := place(bob.ID, "Draw", 50)

	t.Run("cancel reverses recorded stake", func(t *testing.T) {
		err := inTransaction(ctx, testDB.DB, testhelpers.NewRecordingPublisher(), func(uow application.UnitOfWork) error {
			result, err := betServiceFor(uow).CancelBet(ctx, entities.Principal{UserID: bob.ID}, cancelled.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, int64(50), result.RefundAmount)
			assert.Equal(t, int64(800), result.NewBalance)
			return nil
		})
		require.NoError(t, err)

		loaded, err := NewMarketRepository(testDB.DB).GetByID(ctx, market.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(300), loaded.TotalStake)
		assert.Zero(t, loaded.Options[2].Stake)
		require.NoError(t, loaded.CheckStakeInvariant())
	})

	require.NoError(t, inTransaction(ctx, testDB.DB, testhelpers.NewRecordingPublisher(), func(uow application.UnitOfWork) error {
		tournaments := services.NewTournamentService(uow.TournamentRepository(), uow.MarketRepository(), uow.BetRepository(),
			uow.UserRepository(), uow.BalanceHistoryRepository(), uow.EventBus(), clockwork.NewRealClock())
		_, err := tournaments.DeclareMatchResult(ctx, entities.Principal{IsAdmin: true}, market.ID, "Lions", nil)
		return err
	}))

	t.Run("settling twice pays once", func(t *testing.T) {
		for round := 0; round < 2; round++ {
			for _, bet := range []*entities.Bet{winner, loser} {
				err := inTransaction(ctx, testDB.DB, testhelpers.NewRecordingPublisher(), func(uow application.UnitOfWork) error {
					settlement, err := betServiceFor(uow).SettleBet(ctx, bet.ID, "Lions")
					if err != nil {
						return err
					}
					assert.Equal(t, round == 0, settlement.Applied)
					return nil
				})
				require.NoError(t, err)
			}
		}

		users := NewUserRepository(testDB.DB)
		a, err := users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1100), a.Balance)
		b, err := users.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(800), b.Balance)
	})

	t.Run("complete settlement", func(t *testing.T) {
		var totals *entities.SettlementTotals
		err := inTransaction(ctx, testDB.DB, testhelpers.NewRecordingPublisher(), func(uow application.UnitOfWork) error {
			var err error
			totals, err = betServiceFor(uow).CompleteSettlement(ctx, market.ID)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, entities.SettlementTotals{Settled: 2, Won: 1, Lost: 1, TotalPayout: 200}, *totals)

		unsettled, err := NewMarketRepository(testDB.DB).GetUnsettled(ctx)
		require.NoError(t, err)
		assert.Empty(t, unsettled)
	})
}
