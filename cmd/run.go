package cmd

import (
	"context"
	"fmt"

	"coinbet/api"
	"coinbet/config"

	log "github.com/sirupsen/logrus"
)

// Run starts the reconciliation worker and the operator API and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting coinbet...")

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	stopReconciler := app.Reconciler.Start(ctx)

	operatorAPI := api.NewOperatorAPI(cfg.OperatorPort, api.Deps{
		Settler:    app.Results,
		Odds:       app.Odds,
		Reconciler: app.Reconciler,
		Auditor:    app.Admin,
		Database:   app.DB,
		Metrics:    app.Metrics,
		Gatherer:   app.Registry,
	})
	stopAPI := operatorAPI.Start(ctx)

	log.Info("coinbet is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	stopAPI()
	stopReconciler()
	log.Info("Shutdown completed")
	return nil
}

// Settle runs settlement for one market and exits
func Settle(ctx context.Context, arg string) error {
	marketID, err := parseMarketID(arg)
	if err != nil {
		return err
	}

	cfg := config.Get()
	ConfigureLogging(cfg)
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Results.SettleMarket(ctx, marketID)
	if result != nil {
		log.WithFields(log.Fields{
			"marketID":     result.MarketID,
			"result":       result.Result,
			"settled":      result.Settled,
			"won":          result.Won,
			"lost":         result.Lost,
			"totalPayout":  result.TotalPayout,
			"newlySettled": result.NewlySettled,
			"failed":       result.Failed,
		}).Info("Settlement finished")
	}
	if err != nil {
		return fmt.Errorf("failed to settle market %d: %w", marketID, err)
	}
	return nil
}

// Reconcile runs one reconciliation pass and exits
func Reconcile(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.Reconciler.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	log.WithFields(log.Fields{
		"stakesRecorded": report.StakesRecorded,
		"stakeFailures":  report.StakeFailures,
		"marketsSettled": report.MarketsSettled,
	}).Info("Reconciliation finished")
	return nil
}
