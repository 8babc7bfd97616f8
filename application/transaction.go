package application

import (
	"context"
	"fmt"

	"coinbet/domain/interfaces"
	"coinbet/domain/services"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// runInUnitOfWork begins a unit of work, runs fn and commits.
// An error or panic from fn rolls the transaction back and discards buffered events.
func runInUnitOfWork(ctx context.Context, factory UnitOfWorkFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			uow.Rollback()
			panic(r)
		}
	}()

	if err := fn(uow); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			log.WithError(rbErr).Error("Failed to rollback transaction")
		}
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// readInUnitOfWork runs fn in a transaction that is always rolled back
func readInUnitOfWork(ctx context.Context, factory UnitOfWorkFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return fn(uow)
}

func newBetService(uow UnitOfWork, clock clockwork.Clock) interfaces.BetService {
	return services.NewBetService(
		uow.BetRepository(),
		uow.MarketRepository(),
		uow.UserRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		clock,
	)
}

func newOddsService(uow UnitOfWork, clock clockwork.Clock) interfaces.OddsService {
	return services.NewOddsService(uow.MarketRepository(), uow.EventBus(), clock)
}

func newTournamentService(uow UnitOfWork, clock clockwork.Clock) interfaces.TournamentService {
	return services.NewTournamentService(
		uow.TournamentRepository(),
		uow.MarketRepository(),
		uow.BetRepository(),
		uow.UserRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		clock,
	)
}

func newUserService(uow UnitOfWork, counters interfaces.CounterStore, clock clockwork.Clock) interfaces.UserService {
	return services.NewUserService(
		uow.UserRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		counters,
		clock,
	)
}
