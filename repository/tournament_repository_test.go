package repository

import (
	"context"
	"testing"

	"coinbet/database"
	"coinbet/domain/entities"
	"coinbet/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedMatch stores a tournament and one match market between its first two teams
func seedMatch(t *testing.T, db *database.DB) (*entities.Tournament, *entities.Market) {
	t.Helper()
	ctx := context.Background()

	tournament := testutil.CreateTestTournament("Spring Cup", "Lions", "Tigers", "Bears")
	require.NoError(t, NewTournamentRepository(db).Create(ctx, tournament))

	market := testutil.CreateTestMatch(tournament.ID, "Lions", "Tigers")
	require.NoError(t, NewMarketRepository(db).Create(ctx, market))
	return tournament, market
}

func TestTournamentRepository_CreateAndGet(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewTournamentRepository(testDB.DB)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		tournament, err := repo.GetByID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, tournament)
	})

	t.Run("roster round trip", func(t *testing.T) {
		created := testutil.CreateTestTournament("Spring Cup", "Lions", "Tigers")
		created.Teams[0].Description = "defending champions"
		require.NoError(t, repo.Create(ctx, created))
		assert.NotZero(t, created.ID)

		loaded, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, created.Teams, loaded.Teams)
		assert.Nil(t, loaded.FinalRankings)
		assert.Nil(t, loaded.OverallWinnerMarketID)
		assert.True(t, created.StartDate.Equal(loaded.StartDate))
	})
}

func TestTournamentRepository_Update(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewTournamentRepository(testDB.DB)
	ctx := context.Background()

	tournament, market := seedMatch(t, testDB.DB)
	tournament.OverallWinnerMarketID = &market.ID
	tournament.Status = entities.TournamentStatusFinished
	tournament.FinalRankings = []entities.Ranking{{Rank: 1, TeamName: "Tigers"}, {Rank: 2, TeamName: "Lions"}}
	require.NoError(t, repo.Update(ctx, tournament))

	loaded, err := repo.GetByIDForUpdate(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TournamentStatusFinished, loaded.Status)
	assert.Equal(t, tournament.FinalRankings, loaded.FinalRankings)
	require.NotNil(t, loaded.OverallWinnerMarketID)
	assert.Equal(t, market.ID, *loaded.OverallWinnerMarketID)
}

func TestTournamentRepository_DeleteCascades(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewTournamentRepository(testDB.DB)
	markets := NewMarketRepository(testDB.DB)
	ctx := context.Background()

	tournament, market := seedMatch(t, testDB.DB)
	require.NoError(t, repo.Delete(ctx, tournament.ID))

	gone, err := markets.GetByID(ctx, market.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.Error(t, repo.Delete(ctx, tournament.ID))
}

func TestTournamentRepository_List(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewTournamentRepository(testDB.DB)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, repo.Create(ctx, testutil.CreateTestTournament(name, "Lions", "Tigers")))
	}

	page, total, err := repo.List(ctx, testPage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)
}
