package application

import (
	"context"
	"fmt"

	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/domain/events"
	"coinbet/domain/interfaces"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// OddsHandler serves market odds and keeps the odds cache current.
// A nil cache disables caching; reads then always go to the database.
type OddsHandler struct {
	uowFactory UnitOfWorkFactory
	cache      interfaces.OddsCache
	clock      clockwork.Clock
}

// NewOddsHandler creates a new odds handler
func NewOddsHandler(uowFactory UnitOfWorkFactory, cache interfaces.OddsCache, clock clockwork.Clock) *OddsHandler {
	return &OddsHandler{
		uowFactory: uowFactory,
		cache:      cache,
		clock:      clock,
	}
}

// RecalculateOdds reprices every option of a market from its stake distribution
func (h *OddsHandler) RecalculateOdds(ctx context.Context, marketID int64) (*entities.OddsSnapshot, error) {
	var snapshot *entities.OddsSnapshot
	err := runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		snapshot, err = newOddsService(uow, h.clock).RecalculateOdds(ctx, marketID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.store(ctx, snapshot)
	return snapshot, nil
}

// GetOdds returns the current odds of a market, from the cache when possible
func (h *OddsHandler) GetOdds(ctx context.Context, marketID int64) (*entities.OddsSnapshot, error) {
	if h.cache != nil {
		cached, err := h.cache.GetOdds(ctx, marketID)
		if err != nil {
			log.WithFields(log.Fields{
				"marketID": marketID,
				"error":    err,
			}).Warn("Odds cache read failed, falling back to database")
		} else if cached != nil {
			return cached, nil
		}
	}

	var snapshot *entities.OddsSnapshot
	err := readInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		market, err := uow.MarketRepository().GetByID(ctx, marketID)
		if err != nil {
			return fmt.Errorf("failed to get market: %w", err)
		}
		if market == nil {
			return domain.NewError(domain.CodeMarketNotFound, "market %d not found", marketID)
		}
		snapshot = market.Snapshot(h.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.store(ctx, snapshot)
	return snapshot, nil
}

// HandleOddsUpdated writes published odds into the cache
func (h *OddsHandler) HandleOddsUpdated(ctx context.Context, event events.Event) error {
	updated, ok := event.(events.OddsUpdatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	h.store(ctx, &entities.OddsSnapshot{
		MarketID:   updated.MarketID,
		TotalStake: updated.TotalStake,
		Options:    updated.Options,
		UpdatedAt:  h.clock.Now(),
	})
	return nil
}

// HandleMarketResultDeclared drops the cached odds of a market that stopped trading
func (h *OddsHandler) HandleMarketResultDeclared(ctx context.Context, event events.Event) error {
	declared, ok := event.(events.MarketResultDeclaredEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if h.cache == nil {
		return nil
	}
	if err := h.cache.Invalidate(ctx, declared.MarketID); err != nil {
		return fmt.Errorf("failed to invalidate cached odds: %w", err)
	}
	return nil
}

func (h *OddsHandler) store(ctx context.Context, snapshot *entities.OddsSnapshot) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetOdds(ctx, snapshot); err != nil {
		log.WithFields(log.Fields{
			"marketID": snapshot.MarketID,
			"error":    err,
		}).Warn("Failed to cache odds")
	}
}
