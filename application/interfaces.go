package application

import (
	"time"

	"coinbet/domain/entities"
)

// Metrics receives business measurements from the application handlers.
// The infrastructure layer backs it with Prometheus collectors.
type Metrics interface {
	RecordBetPlaced(amount int64)
	RecordBetCancelled()
	RecordBetSettled(status entities.BetStatus, payout int64)

	// RecordSettlementFailure counts settlements that stopped after a result was declared
	RecordSettlementFailure()

	// RecordStakeReplayed counts stake updates applied by reconciliation instead of the placement path
	RecordStakeReplayed()

	ObserveSettlementDuration(d time.Duration)
}

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) RecordBetPlaced(int64) {}
func (NoopMetrics) RecordBetCancelled() {}
func (NoopMetrics) RecordBetSettled(entities.BetStatus, int64) {}
func (NoopMetrics) RecordSettlementFailure() {}
func (NoopMetrics) RecordStakeReplayed() {}
func (NoopMetrics) ObserveSettlementDuration(time.Duration) {}
