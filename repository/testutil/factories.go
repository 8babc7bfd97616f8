package testutil

import (
	"time"

	"coinbet/domain/entities"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(username string) *entities.User {
	return &entities.User{
		Username: username,
		Balance:  1000,
	}
}

// CreateTestUserWithBalance creates a test user with a specific balance
func CreateTestUserWithBalance(username string, balance int64) *entities.User {
	user := CreateTestUser(username)
	user.Balance = balance
	return user
}

// CreateTestBalanceHistory creates a test balance history entry
func CreateTestBalanceHistory(userID int64, transactionType entities.TransactionType) *entities.BalanceHistory {
	return &entities.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   1000,
		BalanceAfter:    900,
		ChangeAmount:    -100,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}

// CreateTestTournament creates an upcoming tournament with the given roster
func CreateTestTournament(name string, teams ...string) *entities.Tournament {
	start := time.Now().UTC().Truncate(time.Second)
	t := &entities.Tournament{
		Name:      name,
		StartDate: start,
		EndDate:   start.Add(7 * 24 * time.Hour),
		Status:    entities.TournamentStatusUpcoming,
	}
	for _, team := range teams {
		t.Teams = append(t.Teams, entities.Team{Name: team})
	}
	return t
}

// CreateTestMatch creates an upcoming match market for a stored tournament
func CreateTestMatch(tournamentID int64, team1, team2 string) *entities.Market {
	return entities.NewMatchMarket(tournamentID, team1, team2, "", time.Now().UTC().Add(24*time.Hour).Truncate(time.Second))
}

// CreateTestBet creates an active bet at the market's current odds
func CreateTestBet(userID int64, market *entities.Market, selection string, amount int64) *entities.Bet {
	odds := entities.DefaultTeamOdds
	if opt, err := market.Option(selection); err == nil {
		odds = opt.Odds
	}
	return &entities.Bet{
		UserID:       userID,
		MarketID:     market.ID,
		TournamentID: market.TournamentID,
		Selection:    selection,
		Amount:       amount,
		Odds:         odds,
		PotentialWin: entities.CalculatePotentialWin(amount, odds),
		Status:       entities.BetStatusActive,
	}
}
