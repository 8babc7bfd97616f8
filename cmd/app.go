package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"coinbet/application"
	"coinbet/config"
	"coinbet/database"
	"coinbet/domain/events"
	"coinbet/domain/interfaces"
	"coinbet/infrastructure"
	"coinbet/infrastructure/observability"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

// App holds the wired application handlers and the resources they depend on
type App struct {
	DB         *database.DB
	Registry   *prometheus.Registry
	Metrics    *observability.Metrics
	Accounts   *application.AccountHandler
	Admin      *application.AdminHandler
	Betting    *application.BettingHandler
	Odds       *application.OddsHandler
	Results    *application.ResultOrchestrator
	Reconciler *application.ReconciliationWorker

	closers []func()
}

// ConfigureLogging applies the configured level and switches to JSON output in production
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// NewApp connects every dependency and wires the handlers.
// Close releases the resources in reverse order.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}
	clock := clockwork.NewRealClock()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), database.PoolOptions{
		MaxConns:    cfg.DatabaseMaxConns,
		LockTimeout: cfg.DatabaseLockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	app.closers = append(app.closers, db.Close)

	publisher, err := app.connectEventBus(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	var oddsCache interfaces.OddsCache
	var counters interfaces.CounterStore
	if cfg.RedisAddr != "" {
		client, err := infrastructure.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		oddsCache = infrastructure.NewRedisOddsCache(client, cfg.OddsCacheTTL)
		counters = infrastructure.NewRedisCounterStore(client)
		log.WithField("addr", cfg.RedisAddr).Info("Redis odds cache and counter store enabled")
	} else {
		counters = infrastructure.NewMemoryCounterStore(cfg.CounterStoreCapacity, cfg.IPTrackingDuration, clock)
		log.Info("Redis not configured, odds are computed on every read and registration counters are per process")
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = observability.NewMetrics(app.Registry)

	uowFactory := infrastructure.NewUnitOfWorkFactory(db, publisher)

	app.Accounts = application.NewAccountHandler(uowFactory, counters, clock)
	app.Admin = application.NewAdminHandler(uowFactory, clock)
	app.Betting = application.NewBettingHandler(uowFactory, app.Metrics, clock)
	app.Odds = application.NewOddsHandler(uowFactory, oddsCache, clock)
	app.Results = application.NewResultOrchestrator(uowFactory, app.Metrics, clock)
	app.Reconciler = application.NewReconciliationWorker(uowFactory, app.Betting, app.Results, app.Metrics, clock, cfg.ReconcileInterval)

	uowFactory.RegisterLocalHandler(events.EventTypeOddsUpdated, app.Odds.HandleOddsUpdated)
	uowFactory.RegisterLocalHandler(events.EventTypeMarketResultDeclared, app.Odds.HandleMarketResultDeclared)

	return app, nil
}

func (a *App) connectEventBus(cfg *config.Config) (interfaces.EventPublisher, error) {
	mapper := infrastructure.NewEventSubjectMapper()

	switch cfg.EventBus {
	case config.EventBusNATS:
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		client := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Failed to close NATS connection")
			}
		})
		if err := client.EnsureStream(mapper.GetAllSubjects()); err != nil {
			return nil, fmt.Errorf("failed to ensure event stream: %w", err)
		}
		return infrastructure.NewNATSEventPublisher(client, mapper), nil

	case config.EventBusKafka:
		log.WithField("brokers", cfg.KafkaBrokers).Info("Creating Kafka writer...")
		publisher := infrastructure.NewKafkaEventPublisher(infrastructure.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), mapper)
		a.closers = append(a.closers, func() {
			if err := publisher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close Kafka writer")
			}
		})
		return publisher, nil

	default:
		log.Info("Event bus disabled, events are only dispatched in process")
		return infrastructure.NewNoopEventPublisher(), nil
	}
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func parseMarketID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid market id %q", arg)
	}
	return id, nil
}
