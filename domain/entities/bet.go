package entities

import (
	"math"
	"time"
)

// BetStatus represents the lifecycle state of a bet
type BetStatus string

const (
	BetStatusActive    BetStatus = "active"
	BetStatusWon       BetStatus = "won"
	BetStatusLost      BetStatus = "lost"
	BetStatusCancelled BetStatus = "cancelled"
	BetStatusVoid      BetStatus = "void"
)

// IsValid reports whether s is a known bet status
func (s BetStatus) IsValid() bool {
	switch s {
	case BetStatusActive, BetStatusWon, BetStatusLost, BetStatusCancelled, BetStatusVoid:
		return true
	}
	return false
}

// Bet is a user's stake on one option of a market.
// Odds and PotentialWin are frozen when the bet is placed.
type Bet struct {
	ID             int64      `db:"id"`
	UserID         int64      `db:"user_id"`
	MarketID       int64      `db:"market_id"`
	TournamentID   int64      `db:"tournament_id"`
	Selection      string     `db:"selection"`
	Amount         int64      `db:"amount"`
	Odds           float64    `db:"odds"`
	PotentialWin   int64      `db:"potential_win"`
	Status         BetStatus  `db:"status"`
	StakeRecorded  bool       `db:"stake_recorded"`
	IdempotencyKey *string    `db:"idempotency_key"`
	CreatedAt      time.Time  `db:"created_at"`
	SettledAt      *time.Time `db:"settled_at"`
}

// CalculatePotentialWin returns the payout for a winning stake at the given odds
func CalculatePotentialWin(amount int64, odds float64) int64 {
	return int64(math.Round(float64(amount) * odds))
}

// IsActive returns true while the bet awaits settlement
func (b *Bet) IsActive() bool {
	return b.Status == BetStatusActive
}

// IsTerminal returns true once the bet can no longer change
func (b *Bet) IsTerminal() bool {
	return !b.IsActive()
}

// OutcomeFor returns the terminal status of the bet for a declared result
func (b *Bet) OutcomeFor(result string) BetStatus {
	if b.Selection == result {
		return BetStatusWon
	}
	return BetStatusLost
}

// PayoutFor returns the amount credited to the bettor for a declared result
func (b *Bet) PayoutFor(result string) int64 {
	if b.OutcomeFor(result) == BetStatusWon {
		return b.PotentialWin
	}
	return 0
}

// BetFilter narrows a user's bet history
type BetFilter struct {
	Status       *BetStatus
	TournamentID *int64
	MarketID     *int64
}

// BetPage is a page of bets with pagination metadata
type BetPage struct {
	Bets       []*Bet     `json:"bets"`
	Pagination Pagination `json:"pagination"`
}

// PlaceBetRequest is the input to placing a bet
type PlaceBetRequest struct {
	MarketID       int64  `validate:"required,gt=0"`
	Selection      string `validate:"required"`
	Amount         int64
	IdempotencyKey string `validate:"max=128"`
}

// PlaceBetResult is returned after a bet is accepted
type PlaceBetResult struct {
	Bet        *Bet  `json:"bet"`
	NewBalance int64 `json:"newBalance"`
	Replayed   bool  `json:"replayed"`
}

// CancelBetResult is returned after a bet is cancelled
type CancelBetResult struct {
	Bet          *Bet  `json:"bet"`
	RefundAmount int64 `json:"refundAmount"`
	NewBalance   int64 `json:"newBalance"`
}
