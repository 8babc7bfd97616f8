package services

import (
	"context"
	"fmt"

	"coinbet/config"
	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/domain/events"
	"coinbet/domain/interfaces"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

type oddsService struct {
	cfg            OddsConfig
	marketRepo     interfaces.MarketRepository
	eventPublisher interfaces.EventPublisher
	clock          clockwork.Clock
}

// NewOddsService creates a new odds service using the configured house edge
func NewOddsService(
	marketRepo interfaces.MarketRepository,
	eventPublisher interfaces.EventPublisher,
	clock clockwork.Clock,
) interfaces.OddsService {
	c := config.Get()
	return &oddsService{
		cfg:            OddsConfig{HouseEdgePercent: c.HouseEdgePercent, MinActivity: c.OddsMinActivity},
		marketRepo:     marketRepo,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
}

// RecalculateOdds reloads the market under an exclusive lock and reprices every option.
// Closed markets are returned unchanged.
func (s *oddsService) RecalculateOdds(ctx context.Context, marketID int64) (*entities.OddsSnapshot, error) {
	market, err := s.marketRepo.GetByIDForUpdate(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, domain.NewError(domain.CodeMarketNotFound, "market %d not found", marketID)
	}

	if !market.IsOpenForWagering() {
		return market.Snapshot(s.clock.Now()), nil
	}

	changed := ApplyOdds(market, s.cfg)
	snapshot := market.Snapshot(s.clock.Now())
	if len(changed) == 0 {
		return snapshot, nil
	}

	if err := s.marketRepo.UpdateOdds(ctx, marketID, changed); err != nil {
		return nil, fmt.Errorf("failed to update odds: %w", err)
	}

	log.WithFields(log.Fields{
		"marketID":   marketID,
		"totalStake": market.TotalStake,
		"changed":    len(changed),
	}).Debug("Recalculated market odds")

	if err := s.eventPublisher.Publish(events.OddsUpdatedEvent{
		MarketID:   marketID,
		TotalStake: snapshot.TotalStake,
		Options:    snapshot.Options,
	}); err != nil {
		log.WithError(err).Error("Failed to publish odds updated event")
	}

	return snapshot, nil
}
