package interfaces

import (
	"context"

	"coinbet/domain/entities"
)

// LedgerService moves coins in and out of user balances.
// Both operations lock the user row for the rest of the transaction.
type LedgerService interface {
	// Debit removes amount from the balance and returns the new balance
	Debit(ctx context.Context, userID int64, amount int64, entry entities.LedgerEntry) (int64, error)

	// Credit adds amount to the balance and returns the new balance
	Credit(ctx context.Context, userID int64, amount int64, entry entities.LedgerEntry) (int64, error)
}

// OddsService keeps market odds in line with the stake distribution
type OddsService interface {
	// RecalculateOdds applies the odds formula to every option of an open market
	RecalculateOdds(ctx context.Context, marketID int64) (*entities.OddsSnapshot, error)
}

// BetService defines the bet lifecycle operations that run inside a single transaction
type BetService interface {
	// PlaceBet debits the stake and stores an active bet
	PlaceBet(ctx context.Context, principal entities.Principal, req entities.PlaceBetRequest) (*entities.PlaceBetResult, error)

	// CancelBet refunds an active bet on a market that has not started
	CancelBet(ctx context.Context, principal entities.Principal, betID int64) (*entities.CancelBetResult, error)

	// RecordStake adds a bet's amount to its market accumulators exactly once
	RecordStake(ctx context.Context, betID int64) (bool, error)

	// PrepareSettlement checks the market is ready and returns its active bets
	PrepareSettlement(ctx context.Context, marketID int64) (*entities.Market, []*entities.Bet, error)

	// SettleBet resolves a single bet against the declared result
	SettleBet(ctx context.Context, betID int64, result string) (*entities.BetSettlement, error)

	// CompleteSettlement stamps the market as settled and returns market-wide totals
	CompleteSettlement(ctx context.Context, marketID int64) (*entities.SettlementTotals, error)

	// GetUserBets returns a filtered page of a user's bets
	GetUserBets(ctx context.Context, userID int64, filter entities.BetFilter, page entities.Page) (*entities.BetPage, error)

	// GetMarketSummary aggregates a market's bets per option
	GetMarketSummary(ctx context.Context, marketID int64) (*entities.MarketSummary, error)
}

// TournamentService defines tournament and market administration
type TournamentService interface {
	CreateTournament(ctx context.Context, principal entities.Principal, req entities.CreateTournamentRequest) (*entities.Tournament, *entities.Market, error)

	// UpdateTeams replaces the roster and re-derives the overall-winner options
	UpdateTeams(ctx context.Context, principal entities.Principal, tournamentID int64, teams []entities.Team) (*entities.Tournament, error)

	CreateMatch(ctx context.Context, principal entities.Principal, req entities.CreateMatchRequest) (*entities.Market, error)

	// DeclareMatchResult records the winner of a match market and marks it finished
	DeclareMatchResult(ctx context.Context, principal entities.Principal, marketID int64, winner string, score *string) (*entities.Market, error)

	// DeclareTournamentResults records final rankings and declares the overall-winner market
	DeclareTournamentResults(ctx context.Context, principal entities.Principal, tournamentID int64, rankings []entities.Ranking) (*entities.Tournament, *entities.Market, error)

	// DeleteTournament removes a tournament with no active bets
	DeleteTournament(ctx context.Context, principal entities.Principal, tournamentID int64) error

	SetMarketOptions(ctx context.Context, principal entities.Principal, marketID int64, options []*entities.MarketOption) (*entities.Market, error)

	SetMarketStatus(ctx context.Context, principal entities.Principal, marketID int64, status entities.MarketStatus) (*entities.Market, error)

	// GetTournament returns a tournament with its markets
	GetTournament(ctx context.Context, tournamentID int64) (*entities.Tournament, []*entities.Market, error)
}

// UserService defines account operations
type UserService interface {
	// Register creates an account with the starting balance, subject to the per-IP limit
	Register(ctx context.Context, username string, ip string) (*entities.User, error)

	// RecordRegistration counts a successful registration against its IP
	RecordRegistration(ctx context.Context, ip string) error

	BanUser(ctx context.Context, principal entities.Principal, userID int64, reason string) error

	UnbanUser(ctx context.Context, principal entities.Principal, userID int64) error

	GetLeaderboard(ctx context.Context, page entities.Page) ([]*entities.LeaderboardEntry, entities.Pagination, error)
}
