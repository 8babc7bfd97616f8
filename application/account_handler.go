package application

import (
	"context"

	"coinbet/domain/entities"
	"coinbet/domain/interfaces"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// AccountHandler registers users and serves account views
type AccountHandler struct {
	uowFactory UnitOfWorkFactory
	counters   interfaces.CounterStore
	clock      clockwork.Clock
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(uowFactory UnitOfWorkFactory, counters interfaces.CounterStore, clock clockwork.Clock) *AccountHandler {
	return &AccountHandler{
		uowFactory: uowFactory,
		counters:   counters,
		clock:      clock,
	}
}

// Register creates an account with the starting balance.
// The per-IP counter is only bumped once the account is committed.
func (h *AccountHandler) Register(ctx context.Context, username string, ip string) (*entities.User, error) {
	var user *entities.User
	err := runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		user, err = newUserService(uow, h.counters, h.clock).Register(ctx, username, ip)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = readInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		return newUserService(uow, h.counters, h.clock).RecordRegistration(ctx, ip)
	})
	if err != nil {
		log.WithFields(log.Fields{
			"userID": user.ID,
			"error":  err,
		}).Warn("Failed to count registration against its address")
	}

	return user, nil
}

func (h *AccountHandler) BanUser(ctx context.Context, principal entities.Principal, userID int64, reason string) error {
	return runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		return newUserService(uow, h.counters, h.clock).BanUser(ctx, principal, userID, reason)
	})
}

func (h *AccountHandler) UnbanUser(ctx context.Context, principal entities.Principal, userID int64) error {
	return runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		return newUserService(uow, h.counters, h.clock).UnbanUser(ctx, principal, userID)
	})
}

// GetLeaderboard ranks non-banned users by balance
func (h *AccountHandler) GetLeaderboard(ctx context.Context, page entities.Page) ([]*entities.LeaderboardEntry, entities.Pagination, error) {
	var entries []*entities.LeaderboardEntry
	var pagination entities.Pagination
	err := readInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		entries, pagination, err = newUserService(uow, h.counters, h.clock).GetLeaderboard(ctx, page)
		return err
	})
	if err != nil {
		return nil, entities.Pagination{}, err
	}
	if entries == nil {
		entries = []*entities.LeaderboardEntry{}
	}
	return entries, pagination, nil
}
