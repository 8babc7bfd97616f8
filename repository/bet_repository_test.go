package repository

import (
	"context"
	"testing"
	"time"

	"coinbet/domain/entities"
	"coinbet/domain/interfaces"
	"coinbet/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetRepository_CreateAndGet(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewBetRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("alice")
	require.NoError(t, users.Create(ctx, user))
	_, market := seedMatch(t, testDB.DB)

	key := "client-key-1"
	bet := testutil.CreateTestBet(user.ID, market, "Lions", 100)
	bet.IdempotencyKey = &key
	require.NoError(t, repo.Create(ctx, bet))
	assert.NotZero(t, bet.ID)
	assert.False(t, bet.CreatedAt.IsZero())

	loaded, err := repo.GetByID(ctx, bet.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(200), loaded.PotentialWin)
	assert.Equal(t, entities.BetStatusActive, loaded.Status)
	assert.False(t, loaded.StakeRecorded)

	t.Run("lookup by idempotency key", func(t *testing.T) {
		found, err := repo.GetByIdempotencyKey(ctx, user.ID, key)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, bet.ID, found.ID)

		missing, err := repo.GetByIdempotencyKey(ctx, user.ID+1, key)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("duplicate idempotency key", func(t *testing.T) {
		again := testutil.CreateTestBet(user.ID, market, "Tigers", 50)
		again.IdempotencyKey = &key
		assert.ErrorIs(t, repo.Create(ctx, again), interfaces.ErrDuplicateIdempotencyKey)
	})

	t.Run("bets without a key never collide", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, testutil.CreateTestBet(user.ID, market, "Draw", 10)))
		require.NoError(t, repo.Create(ctx, testutil.CreateTestBet(user.ID, market, "Draw", 10)))
	})
}

func TestBetRepository_CompareAndSetStatus(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewBetRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("alice")
	require.NoError(t, users.Create(ctx, user))
	_, market := seedMatch(t, testDB.DB)

	bet := testutil.CreateTestBet(user.ID, market, "Lions", 100)
	require.NoError(t, repo.Create(ctx, bet))

	at := time.Now().UTC().Truncate(time.Second)
	won, err := repo.CompareAndSetStatus(ctx, bet.ID, entities.BetStatusWon, at)
	require.NoError(t, err)
	require.NotNil(t, won)
	assert.Equal(t, entities.BetStatusWon, won.Status)
	require.NotNil(t, won.SettledAt)
	assert.True(t, at.Equal(*won.SettledAt))

	again, err := repo.CompareAndSetStatus(ctx, bet.ID, entities.BetStatusLost, at)
	require.NoError(t, err)
	assert.Nil(t, again, "terminal bets are never moved twice")

	loaded, err := repo.GetByID(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BetStatusWon, loaded.Status)
}

func TestBetRepository_StakeRecording(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewBetRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("alice")
	require.NoError(t, users.Create(ctx, user))
	_, market := seedMatch(t, testDB.DB)

	first := testutil.CreateTestBet(user.ID, market, "Lions", 100)
	second := testutil.CreateTestBet(user.ID, market, "Tigers", 100)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	cutoff := time.Now().Add(time.Minute)
	pending, err := repo.GetUnrecorded(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	marked, err := repo.MarkStakeRecorded(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repo.MarkStakeRecorded(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, marked, "second mark is a no-op")

	pending, err = repo.GetUnrecorded(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	pending, err = repo.GetUnrecorded(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "bets inside the grace period are left alone")
}

func TestBetRepository_Queries(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewBetRepository(testDB.DB)
	ctx := context.Background()

	alice := testutil.CreateTestUser("alice")
	bob := testutil.CreateTestUser("bob")
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))
	tournament, market := seedMatch(t, testDB.DB)

	placed := []*entities.Bet{
		testutil.CreateTestBet(alice.ID, market, "Lions", 100),
		testutil.CreateTestBet(alice.ID, market, "Tigers", 50),
		testutil.CreateTestBet(bob.ID, market, "Lions", 200),
		testutil.CreateTestBet(bob.ID, market, "Draw", 30),
	}
	for _, bet := range placed {
		require.NoError(t, repo.Create(ctx, bet))
	}
	now := time.Now()
	_, err := repo.CompareAndSetStatus(ctx, placed[3].ID, entities.BetStatusCancelled, now)
	require.NoError(t, err)

	t.Run("user history with filters", func(t *testing.T) {
		bets, total, err := repo.GetByUser(ctx, alice.ID, entities.BetFilter{}, testPage(1, 1))
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, bets, 1)
		assert.Equal(t, placed[1].ID, bets[0].ID, "newest first")

		cancelled := entities.BetStatusCancelled
		bets, total, err = repo.GetByUser(ctx, bob.ID, entities.BetFilter{Status: &cancelled, TournamentID: &tournament.ID}, testPage(1, 10))
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, bets, 1)
		assert.Equal(t, placed[3].ID, bets[0].ID)
	})

	t.Run("active bets and counts", func(t *testing.T) {
		active, err := repo.GetActiveByMarket(ctx, market.ID)
		require.NoError(t, err)
		assert.Len(t, active, 3)
		assert.Equal(t, placed[0].ID, active[0].ID)

		count, err := repo.CountActiveByTournament(ctx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		bySelection, err := repo.CountActiveBySelection(ctx, market.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"Lions": 2, "Tigers": 1}, bySelection)
	})

	t.Run("option summaries skip cancelled bets", func(t *testing.T) {
		summaries, err := repo.GetOptionSummaries(ctx, market.ID)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "Lions", summaries[0].Name)
		assert.Equal(t, int64(2), summaries[0].Count)
		assert.Equal(t, int64(300), summaries[0].Amount)
		assert.Equal(t, int64(600), summaries[0].PotentialPayout)
	})

	t.Run("settlement totals", func(t *testing.T) {
		_, err := repo.CompareAndSetStatus(ctx, placed[0].ID, entities.BetStatusWon, now)
		require.NoError(t, err)
		_, err = repo.CompareAndSetStatus(ctx, placed[1].ID, entities.BetStatusLost, now)
		require.NoError(t, err)

		totals, err := repo.GetSettlementTotals(ctx, market.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.SettlementTotals{Settled: 2, Won: 1, Lost: 1, TotalPayout: 200}, *totals)
	})

	t.Run("leaderboard stats", func(t *testing.T) {
		entries, _, err := users.GetLeaderboard(ctx, testPage(1, 10))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, entry := range entries {
			if entry.UserID == alice.ID {
				assert.Equal(t, int64(2), entry.TotalBets)
				assert.Equal(t, int64(150), entry.TotalStaked)
				assert.Equal(t, int64(1), entry.WonBets)
				assert.Equal(t, int64(1), entry.LostBets)
			}
		}
	})
}
