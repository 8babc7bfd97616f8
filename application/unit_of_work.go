package application

import (
	"context"

	"coinbet/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and publishes the events raised inside it
	Commit() error

	// Rollback rolls back the transaction and drops its events
	Rollback() error

	// Repository getters
	UserRepository() interfaces.UserRepository
	BalanceHistoryRepository() interfaces.BalanceHistoryRepository
	MarketRepository() interfaces.MarketRepository
	BetRepository() interfaces.BetRepository
	TournamentRepository() interfaces.TournamentRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
