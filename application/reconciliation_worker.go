package application

import (
	"context"
	"fmt"
	"time"

	"coinbet/domain/entities"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const (
	// stakeGracePeriod leaves fresh bets to the placement path
	stakeGracePeriod = 30 * time.Second
	stakeBatchSize   = 100
)

// ReconcileReport summarizes one reconciliation pass
type ReconcileReport struct {
	StakesRecorded int `json:"stakesRecorded"`
	StakeFailures  int `json:"stakeFailures"`
	MarketsSettled int `json:"marketsSettled"`
}

// ReconciliationWorker repairs work left behind by failed post-commit steps:
// stakes of accepted bets that never reached the market accumulators, and
// declared markets whose settlement did not complete.
type ReconciliationWorker struct {
	uowFactory UnitOfWorkFactory
	betting    *BettingHandler
	results    *ResultOrchestrator
	metrics    Metrics
	clock      clockwork.Clock
	interval   time.Duration
}

// NewReconciliationWorker creates a new reconciliation worker
func NewReconciliationWorker(
	uowFactory UnitOfWorkFactory,
	betting *BettingHandler,
	results *ResultOrchestrator,
	metrics Metrics,
	clock clockwork.Clock,
	interval time.Duration,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		uowFactory: uowFactory,
		betting:    betting,
		results:    results,
		metrics:    metrics,
		clock:      clock,
		interval:   interval,
	}
}

// Start runs a reconciliation pass every interval until ctx is done or the returned stop function is called
func (w *ReconciliationWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})
	ticker := w.clock.NewTicker(w.interval)

	go func() {
		defer ticker.Stop()
		log.Infof("Reconciliation worker started, running every %v", w.interval)

		for {
			select {
			case <-ctx.Done():
				log.Info("Reconciliation worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Reconciliation worker shutting down (stop requested)...")
				return
			case <-ticker.Chan():
				if _, err := w.RunOnce(ctx); err != nil {
					log.Errorf("Error during reconciliation: %v", err)
				}
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// RunOnce replays lagging stake updates, then retries incomplete settlements
func (w *ReconciliationWorker) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	var bets []*entities.Bet
	err := readInUnitOfWork(ctx, w.uowFactory, func(uow UnitOfWork) error {
		var err error
		bets, err = uow.BetRepository().GetUnrecorded(ctx, w.clock.Now().Add(-stakeGracePeriod), stakeBatchSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bets with unrecorded stakes: %w", err)
	}

	for _, bet := range bets {
		recorded, err := w.betting.RecordStake(ctx, bet)
		if err != nil {
			report.StakeFailures++
			log.WithFields(log.Fields{
				"betID":    bet.ID,
				"marketID": bet.MarketID,
				"error":    err,
			}).Error("Failed to replay stake")
			continue
		}
		if recorded {
			report.StakesRecorded++
			w.metrics.RecordStakeReplayed()
		}
	}

	report.MarketsSettled, err = w.results.SettlePending(ctx)
	if err != nil {
		return report, err
	}

	if report.StakesRecorded > 0 || report.StakeFailures > 0 || report.MarketsSettled > 0 {
		log.WithFields(log.Fields{
			"stakesRecorded": report.StakesRecorded,
			"stakeFailures":  report.StakeFailures,
			"marketsSettled": report.MarketsSettled,
		}).Info("Reconciliation pass completed")
	}
	return report, nil
}
