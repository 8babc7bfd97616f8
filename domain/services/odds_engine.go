package services

import (
	"math"

	"coinbet/domain/entities"
)

// OddsConfig holds the tunables of the odds formula
type OddsConfig struct {
	// HouseEdgePercent is taken off the fair price, 5 means 5%
	HouseEdgePercent float64
	// MinActivity is the total stake below which odds are left untouched
	MinActivity int64
}

// DefaultOddsConfig returns the standard house edge and activity threshold
func DefaultOddsConfig() OddsConfig {
	return OddsConfig{HouseEdgePercent: 5, MinActivity: 100}
}

// CalculateOdds prices one option from its share of the market stake.
// The current odds are kept when the market is too quiet or the option has no stake.
func CalculateOdds(totalStake, optionStake int64, current float64, cfg OddsConfig) float64 {
	if totalStake < cfg.MinActivity || optionStake == 0 || totalStake <= 0 {
		return current
	}

	probability := float64(optionStake) / float64(totalStake)
	fair := 1 / probability
	odds := fair / (1 + cfg.HouseEdgePercent/100)

	odds = math.Max(entities.MinOdds, math.Min(entities.MaxOdds, odds))
	return math.Round(odds*100) / 100
}

// ApplyOdds recalculates every option of the market in place and returns the options whose odds moved
func ApplyOdds(market *entities.Market, cfg OddsConfig) []entities.OptionOdds {
	var changed []entities.OptionOdds
	for _, opt := range market.Options {
		odds := CalculateOdds(market.TotalStake, opt.Stake, opt.Odds, cfg)
		if odds == opt.Odds {
			continue
		}
		opt.Odds = odds
		changed = append(changed, entities.OptionOdds{Name: opt.Name, Odds: odds, Stake: opt.Stake})
	}
	return changed
}
