package interfaces

import (
	"context"
	"errors"
	"time"

	"coinbet/domain/entities"
	"coinbet/domain/events"
)

// ErrDuplicateIdempotencyKey is returned by BetRepository.Create when the user already placed a bet with the same key
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by ID, nil when missing
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// GetByIDForUpdate retrieves a user and locks the row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error)

	// GetByUsername retrieves a user by username, nil when missing
	GetByUsername(ctx context.Context, username string) (*entities.User, error)

	// Create inserts a new user and fills in ID and timestamps
	Create(ctx context.Context, user *entities.User) error

	// UpdateBalance sets a user's balance
	UpdateBalance(ctx context.Context, id int64, newBalance int64) error

	// SetBanned updates the ban flag and reason
	SetBanned(ctx context.Context, id int64, banned bool, reason *string) error

	// GetLeaderboard returns non-banned users ordered by balance with their betting stats
	GetLeaderboard(ctx context.Context, page entities.Page) ([]*entities.LeaderboardEntry, int64, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *entities.BalanceHistory) error

	// GetByUser returns the most recent balance history for a user
	GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.BalanceHistory, error)
}

// MarketRepository defines the interface for market and option data access.
// Lock order inside a transaction is always markets before market_options.
type MarketRepository interface {
	// Create inserts the market together with its options
	Create(ctx context.Context, market *entities.Market) error

	// GetByID retrieves a market with its ordered options, nil when missing
	GetByID(ctx context.Context, id int64) (*entities.Market, error)

	// GetByIDForShare retrieves a market holding a shared row lock
	GetByIDForShare(ctx context.Context, id int64) (*entities.Market, error)

	// GetByIDForUpdate retrieves a market holding an exclusive row lock
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Market, error)

	// GetByTournament returns every market of a tournament
	GetByTournament(ctx context.Context, tournamentID int64) ([]*entities.Market, error)

	// LockByTournament takes exclusive locks on every market of a tournament
	LockByTournament(ctx context.Context, tournamentID int64) error

	// Update persists descriptive fields, status and result. Stakes and odds are not written.
	Update(ctx context.Context, market *entities.Market) error

	// ReplaceOptions synchronizes the option set by name: existing options keep their stake,
	// new options start at zero and options missing from the list are removed
	ReplaceOptions(ctx context.Context, marketID int64, options []*entities.MarketOption) error

	// UpdateOdds writes the odds of the given options
	UpdateOdds(ctx context.Context, marketID int64, odds []entities.OptionOdds) error

	// IncrementStake atomically adds amount to the option and the market total
	IncrementStake(ctx context.Context, marketID int64, option string, amount int64) error

	// DecrementStake atomically removes up to amount from the option and the market total,
	// returning what was actually removed
	DecrementStake(ctx context.Context, marketID int64, option string, amount int64) (int64, error)

	// MarkSettled stamps the settlement time
	MarkSettled(ctx context.Context, marketID int64, at time.Time) error

	// GetUnsettled returns finished markets whose settlement has not completed
	GetUnsettled(ctx context.Context) ([]*entities.Market, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create inserts a new bet. Returns ErrDuplicateIdempotencyKey on a key collision.
	Create(ctx context.Context, bet *entities.Bet) error

	// GetByID retrieves a bet by its ID, nil when missing
	GetByID(ctx context.Context, id int64) (*entities.Bet, error)

	// GetByIdempotencyKey retrieves a user's bet by client key, nil when missing
	GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*entities.Bet, error)

	// GetByUser returns a page of a user's bets, newest first, and the total count
	GetByUser(ctx context.Context, userID int64, filter entities.BetFilter, page entities.Page) ([]*entities.Bet, int64, error)

	// GetActiveByMarket returns the active bets of a market in placement order
	GetActiveByMarket(ctx context.Context, marketID int64) ([]*entities.Bet, error)

	// CountActiveByTournament counts active bets across a tournament's markets
	CountActiveByTournament(ctx context.Context, tournamentID int64) (int64, error)

	// CountActiveBySelection counts a market's active bets per selection, recorded stake or not
	CountActiveBySelection(ctx context.Context, marketID int64) (map[string]int64, error)

	// CompareAndSetStatus moves an active bet to a terminal status.
	// Returns the updated bet, or nil when the bet was no longer active.
	CompareAndSetStatus(ctx context.Context, betID int64, status entities.BetStatus, at time.Time) (*entities.Bet, error)

	// MarkStakeRecorded flips stake_recorded for an active bet, reporting whether this call did it
	MarkStakeRecorded(ctx context.Context, betID int64) (bool, error)

	// GetUnrecorded returns active bets placed before the cutoff whose stake is not yet recorded
	GetUnrecorded(ctx context.Context, before time.Time, limit int) ([]*entities.Bet, error)

	// GetSettlementTotals aggregates the settled bets of a market
	GetSettlementTotals(ctx context.Context, marketID int64) (*entities.SettlementTotals, error)

	// GetOptionSummaries aggregates the bets of a market by selection, skipping refunded ones
	GetOptionSummaries(ctx context.Context, marketID int64) ([]*entities.OptionSummary, error)
}

// TournamentRepository defines the interface for tournament data access
type TournamentRepository interface {
	// Create inserts a tournament and fills in ID and timestamps
	Create(ctx context.Context, tournament *entities.Tournament) error

	// GetByID retrieves a tournament, nil when missing
	GetByID(ctx context.Context, id int64) (*entities.Tournament, error)

	// GetByIDForUpdate retrieves a tournament holding an exclusive row lock
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Tournament, error)

	// Update persists every mutable field
	Update(ctx context.Context, tournament *entities.Tournament) error

	// Delete removes a tournament; markets and bets cascade
	Delete(ctx context.Context, id int64) error

	// List returns a page of tournaments, newest start date first
	List(ctx context.Context, page entities.Page) ([]*entities.Tournament, int64, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher buffers events until the surrounding transaction ends
type TransactionalEventPublisher interface {
	EventPublisher

	// Flush publishes every buffered event. Called after commit.
	Flush(ctx context.Context) error

	// Discard drops every buffered event. Called on rollback.
	Discard()
}

// CounterStore holds expiring counters shared across service instances
type CounterStore interface {
	// Get returns the current value, zero when missing or expired
	Get(ctx context.Context, key string) (int64, error)

	// Increment adds one and returns the new value. The ttl applies only when the counter is created.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Set overwrites the value and its ttl
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
}

// OddsCache stores the latest odds snapshot per market for fast reads
type OddsCache interface {
	SetOdds(ctx context.Context, snapshot *entities.OddsSnapshot) error

	// GetOdds returns nil when nothing is cached
	GetOdds(ctx context.Context, marketID int64) (*entities.OddsSnapshot, error)

	Invalidate(ctx context.Context, marketID int64) error
}
