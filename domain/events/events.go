package events

import "coinbet/domain/entities"

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange        EventType = "balance_change"
	EventTypeUserCreated          EventType = "user_created"
	EventTypeBetPlaced            EventType = "bet_placed"
	EventTypeBetCancelled         EventType = "bet_cancelled"
	EventTypeBetVoided            EventType = "bet_voided"
	EventTypeBetSettled           EventType = "bet_settled"
	EventTypeOddsUpdated          EventType = "odds_updated"
	EventTypeMarketResultDeclared EventType = "market_result_declared"
	EventTypeMarketSettled        EventType = "market_settled"
	EventTypeTournamentFinished   EventType = "tournament_finished"
)

// AllEventTypes lists every event type published by the service
var AllEventTypes = []EventType{
	EventTypeBalanceChange,
	EventTypeUserCreated,
	EventTypeBetPlaced,
	EventTypeBetCancelled,
	EventTypeBetVoided,
	EventTypeBetSettled,
	EventTypeOddsUpdated,
	EventTypeMarketResultDeclared,
	EventTypeMarketSettled,
	EventTypeTournamentFinished,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent is one ledger movement. RelatedType and RelatedID name the bet or market behind it.
type BalanceChangeEvent struct {
	UserID          int64                    `json:"userId"`
	BalanceBefore   int64                    `json:"balanceBefore"`
	BalanceAfter    int64                    `json:"balanceAfter"`
	Delta           int64                    `json:"delta"`
	TransactionType entities.TransactionType `json:"transactionType"`
	RelatedType     *entities.RelatedType    `json:"relatedType,omitempty"`
	RelatedID       *int64                   `json:"relatedId,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserCreatedEvent represents a new account
type UserCreatedEvent struct {
	UserID         int64  `json:"userId"`
	Username       string `json:"username"`
	InitialBalance int64  `json:"initialBalance"`
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// BetPlacedEvent represents an accepted bet
type BetPlacedEvent struct {
	BetID        int64   `json:"betId"`
	UserID       int64   `json:"userId"`
	MarketID     int64   `json:"marketId"`
	Selection    string  `json:"selection"`
	Amount       int64   `json:"amount"`
	Odds         float64 `json:"odds"`
	PotentialWin int64   `json:"potentialWin"`
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

// BetCancelledEvent represents a bet withdrawn before the market started
type BetCancelledEvent struct {
	BetID        int64 `json:"betId"`
	UserID       int64 `json:"userId"`
	MarketID     int64 `json:"marketId"`
	RefundAmount int64 `json:"refundAmount"`
}

func (e BetCancelledEvent) Type() EventType {
	return EventTypeBetCancelled
}

// BetVoidedEvent represents an active bet refunded because its market was cancelled
type BetVoidedEvent struct {
	BetID        int64 `json:"betId"`
	UserID       int64 `json:"userId"`
	MarketID     int64 `json:"marketId"`
	RefundAmount int64 `json:"refundAmount"`
}

func (e BetVoidedEvent) Type() EventType {
	return EventTypeBetVoided
}

// BetSettledEvent represents a bet moving to won or lost
type BetSettledEvent struct {
	BetID    int64              `json:"betId"`
	UserID   int64              `json:"userId"`
	MarketID int64              `json:"marketId"`
	Status   entities.BetStatus `json:"status"`
	Payout   int64              `json:"payout"`
}

func (e BetSettledEvent) Type() EventType {
	return EventTypeBetSettled
}

// OddsUpdatedEvent carries the recalculated odds of a market
type OddsUpdatedEvent struct {
	MarketID   int64                 `json:"marketId"`
	TotalStake int64                 `json:"totalStake"`
	Options    []entities.OptionOdds `json:"options"`
}

func (e OddsUpdatedEvent) Type() EventType {
	return EventTypeOddsUpdated
}

// MarketResultDeclaredEvent represents a market finishing with a winner
type MarketResultDeclaredEvent struct {
	MarketID     int64   `json:"marketId"`
	TournamentID int64   `json:"tournamentId"`
	Result       string  `json:"result"`
	Score        *string `json:"score,omitempty"`
}

func (e MarketResultDeclaredEvent) Type() EventType {
	return EventTypeMarketResultDeclared
}

// MarketSettledEvent represents every bet of a market reaching a terminal state
type MarketSettledEvent struct {
	MarketID int64                     `json:"marketId"`
	Result   string                    `json:"result"`
	Totals   entities.SettlementTotals `json:"totals"`
}

func (e MarketSettledEvent) Type() EventType {
	return EventTypeMarketSettled
}

// TournamentFinishedEvent represents final rankings being posted
type TournamentFinishedEvent struct {
	TournamentID int64              `json:"tournamentId"`
	Winner       string             `json:"winner"`
	Rankings     []entities.Ranking `json:"rankings"`
}

func (e TournamentFinishedEvent) Type() EventType {
	return EventTypeTournamentFinished
}
