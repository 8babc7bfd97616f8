package application

import (
	"context"
	"errors"
	"fmt"

	"coinbet/domain/entities"
	"coinbet/domain/interfaces"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// BettingHandler runs the bet lifecycle operations in their own units of work.
// Placement commits the debit and the bet first; the market accumulators and odds follow
// in a second transaction and are replayed by reconciliation when that step fails.
type BettingHandler struct {
	uowFactory UnitOfWorkFactory
	metrics    Metrics
	clock      clockwork.Clock
}

// NewBettingHandler creates a new betting handler
func NewBettingHandler(uowFactory UnitOfWorkFactory, metrics Metrics, clock clockwork.Clock) *BettingHandler {
	return &BettingHandler{
		uowFactory: uowFactory,
		metrics:    metrics,
		clock:      clock,
	}
}

// PlaceBet debits the stake and stores the bet, then records its stake and reprices the market
func (h *BettingHandler) PlaceBet(ctx context.Context, principal entities.Principal, req entities.PlaceBetRequest) (*entities.PlaceBetResult, error) {
	result, err := h.placeBet(ctx, principal, req)
	if errors.Is(err, interfaces.ErrDuplicateIdempotencyKey) {
		// Another request with the same key committed between our lookup and insert.
		// Running again finds that bet and replays it.
		log.WithFields(log.Fields{
			"userID":         principal.UserID,
			"idempotencyKey": req.IdempotencyKey,
		}).Debug("Idempotency key collision, replaying committed bet")
		result, err = h.placeBet(ctx, principal, req)
	}
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		h.metrics.RecordBetPlaced(result.Bet.Amount)
	}

	if !result.Bet.StakeRecorded {
		if _, err := h.RecordStake(ctx, result.Bet); err != nil {
			log.WithFields(log.Fields{
				"betID":    result.Bet.ID,
				"marketID": result.Bet.MarketID,
				"error":    err,
			}).Warn("Stake update failed after bet placement, leaving it to reconciliation")
		}
	}

	return result, nil
}

func (h *BettingHandler) placeBet(ctx context.Context, principal entities.Principal, req entities.PlaceBetRequest) (*entities.PlaceBetResult, error) {
	var result *entities.PlaceBetResult
	err := runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		result, err = newBetService(uow, h.clock).PlaceBet(ctx, principal, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordStake adds an accepted bet to its market accumulators and recalculates the odds
// in one transaction. Returns false when the stake was already recorded or the bet left
// the active state.
func (h *BettingHandler) RecordStake(ctx context.Context, bet *entities.Bet) (bool, error) {
	var recorded bool
	err := runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		recorded, err = newBetService(uow, h.clock).RecordStake(ctx, bet.ID)
		if err != nil || !recorded {
			return err
		}
		if _, err := newOddsService(uow, h.clock).RecalculateOdds(ctx, bet.MarketID); err != nil {
			return fmt.Errorf("failed to recalculate odds: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if recorded {
		bet.StakeRecorded = true
	}
	return recorded, nil
}

// CancelBet refunds an active bet on a market that has not started, then reprices the market
func (h *BettingHandler) CancelBet(ctx context.Context, principal entities.Principal, betID int64) (*entities.CancelBetResult, error) {
	var result *entities.CancelBetResult
	err := runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		result, err = newBetService(uow, h.clock).CancelBet(ctx, principal, betID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.metrics.RecordBetCancelled()

	if result.Bet.StakeRecorded {
		err := runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
			_, err := newOddsService(uow, h.clock).RecalculateOdds(ctx, result.Bet.MarketID)
			return err
		})
		if err != nil {
			log.WithFields(log.Fields{
				"betID":    betID,
				"marketID": result.Bet.MarketID,
				"error":    err,
			}).Warn("Failed to reprice market after cancellation")
		}
	}

	return result, nil
}

// GetUserBets returns a filtered page of a user's bets
func (h *BettingHandler) GetUserBets(ctx context.Context, userID int64, filter entities.BetFilter, page entities.Page) (*entities.BetPage, error) {
	var betPage *entities.BetPage
	err := readInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		betPage, err = newBetService(uow, h.clock).GetUserBets(ctx, userID, filter, page)
		return err
	})
	if err != nil {
		return nil, err
	}
	return betPage, nil
}
