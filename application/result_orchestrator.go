package application

import (
	"context"
	"fmt"

	"coinbet/domain"
	"coinbet/domain/entities"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// ResultOrchestrator declares results and settles the affected markets.
// The declaration commits on its own; each bet then settles in its own transaction
// so one failing bet does not hold back the others.
type ResultOrchestrator struct {
	uowFactory UnitOfWorkFactory
	metrics    Metrics
	clock      clockwork.Clock
}

// NewResultOrchestrator creates a new result orchestrator
func NewResultOrchestrator(uowFactory UnitOfWorkFactory, metrics Metrics, clock clockwork.Clock) *ResultOrchestrator {
	return &ResultOrchestrator{
		uowFactory: uowFactory,
		metrics:    metrics,
		clock:      clock,
	}
}

// SetMatchResult declares the winner of a match market and settles its bets
func (o *ResultOrchestrator) SetMatchResult(ctx context.Context, principal entities.Principal, marketID int64, winner string, score *string) (*entities.SettlementResult, error) {
	err := runInUnitOfWork(ctx, o.uowFactory, func(uow UnitOfWork) error {
		_, err := newTournamentService(uow, o.clock).DeclareMatchResult(ctx, principal, marketID, winner, score)
		return err
	})
	if err != nil {
		return nil, err
	}

	return o.settleDeclared(ctx, marketID)
}

// SetTournamentResults stores the final rankings and settles the overall-winner market
func (o *ResultOrchestrator) SetTournamentResults(ctx context.Context, principal entities.Principal, tournamentID int64, rankings []entities.Ranking) (*entities.SettlementResult, error) {
	var overall *entities.Market
	err := runInUnitOfWork(ctx, o.uowFactory, func(uow UnitOfWork) error {
		var err error
		_, overall, err = newTournamentService(uow, o.clock).DeclareTournamentResults(ctx, principal, tournamentID, rankings)
		return err
	})
	if err != nil {
		return nil, err
	}

	return o.settleDeclared(ctx, overall.ID)
}

// settleDeclared settles a market whose result was just committed.
// Any failure here leaves a declared but unsettled market behind.
func (o *ResultOrchestrator) settleDeclared(ctx context.Context, marketID int64) (*entities.SettlementResult, error) {
	result, err := o.SettleMarket(ctx, marketID)
	if err == nil {
		return result, nil
	}

	if !domain.IsCode(err, domain.CodeSettlementIncomplete) {
		o.metrics.RecordSettlementFailure()
		log.WithFields(log.Fields{
			"marketID":      marketID,
			"inconsistency": true,
			"error":         err,
		}).Error("Result declared but settlement failed")
		err = domain.NewError(domain.CodeSettlementIncomplete, "result of market %d declared but settlement failed", marketID).
			WithDetail("marketId", marketID).
			Wrap(err)
	}
	return result, err
}

// SettleMarket settles every active bet of a finished market and stamps it settled.
// Running it again skips bets that already left the active state and reports the same totals.
func (o *ResultOrchestrator) SettleMarket(ctx context.Context, marketID int64) (*entities.SettlementResult, error) {
	start := o.clock.Now()

	var market *entities.Market
	var bets []*entities.Bet
	err := readInUnitOfWork(ctx, o.uowFactory, func(uow UnitOfWork) error {
		var err error
		market, bets, err = newBetService(uow, o.clock).PrepareSettlement(ctx, marketID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &entities.SettlementResult{
		MarketID: marketID,
		Result:   *market.Result,
	}

	var lastErr error
	for _, bet := range bets {
		var settlement *entities.BetSettlement
		err := runInUnitOfWork(ctx, o.uowFactory, func(uow UnitOfWork) error {
			var err error
			settlement, err = newBetService(uow, o.clock).SettleBet(ctx, bet.ID, result.Result)
			return err
		})
		if err != nil {
			result.Failed++
			lastErr = err
			log.WithFields(log.Fields{
				"betID":    bet.ID,
				"marketID": marketID,
				"error":    err,
			}).Error("Failed to settle bet")
			continue
		}
		if settlement.Applied {
			result.NewlySettled++
			o.metrics.RecordBetSettled(settlement.Bet.Status, settlement.Payout)
		}
	}

	if result.Failed > 0 {
		o.metrics.RecordSettlementFailure()
		log.WithFields(log.Fields{
			"marketID":      marketID,
			"failed":        result.Failed,
			"newlySettled":  result.NewlySettled,
			"inconsistency": true,
		}).Error("Market settlement incomplete")
		return result, domain.NewError(domain.CodeSettlementIncomplete, "%d of %d bets on market %d failed to settle", result.Failed, len(bets), marketID).
			WithDetail("marketId", marketID).
			WithDetail("failed", result.Failed).
			Wrap(lastErr)
	}

	var totals *entities.SettlementTotals
	err = runInUnitOfWork(ctx, o.uowFactory, func(uow UnitOfWork) error {
		var err error
		totals, err = newBetService(uow, o.clock).CompleteSettlement(ctx, marketID)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("failed to complete settlement: %w", err)
	}
	result.SettlementTotals = *totals

	o.metrics.ObserveSettlementDuration(o.clock.Since(start))
	log.WithFields(log.Fields{
		"marketID":     marketID,
		"result":       result.Result,
		"settled":      result.Settled,
		"won":          result.Won,
		"lost":         result.Lost,
		"totalPayout":  result.TotalPayout,
		"newlySettled": result.NewlySettled,
	}).Info("Market settled")

	return result, nil
}

// SettlePending retries settlement of every finished market that has not completed it.
// Returns the number of markets settled in this pass.
func (o *ResultOrchestrator) SettlePending(ctx context.Context) (int, error) {
	var markets []*entities.Market
	err := readInUnitOfWork(ctx, o.uowFactory, func(uow UnitOfWork) error {
		var err error
		markets, err = uow.MarketRepository().GetUnsettled(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get unsettled markets: %w", err)
	}

	settled := 0
	for _, market := range markets {
		if _, err := o.SettleMarket(ctx, market.ID); err != nil {
			log.WithFields(log.Fields{
				"marketID": market.ID,
				"error":    err,
			}).Warn("Pending settlement still incomplete")
			continue
		}
		settled++
	}
	return settled, nil
}
