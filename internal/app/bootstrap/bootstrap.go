package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pollledger "stakepoll/contexts/staked-voting/poll-ledger"
	"stakepoll/contexts/staked-voting/poll-ledger/adapters/memory"
	postgresadapter "stakepoll/contexts/staked-voting/poll-ledger/adapters/postgres"
	"stakepoll/contexts/staked-voting/poll-ledger/application/commands"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	contractsv1 "stakepoll/contracts/gen/events/v1"
	"stakepoll/internal/platform/config"
	"stakepoll/internal/platform/db"
	"stakepoll/internal/platform/httpserver"
	"stakepoll/internal/platform/messaging"
	"stakepoll/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	shutdownTimeout   = 10 * time.Second
	eventLogGroup     = "poll-ledger-event-log-cg"
	metricsNamespace  = "stakepoll"
	workerProcessName = "worker"
)

var ledgerTopics = []string{
	commands.EventPollCreated,
	commands.EventVoteCast,
	commands.EventDemoVoteCast,
	commands.EventPollResolved,
	commands.EventWinningsClaimed,
	commands.EventHouseFeesWithdrawn,
	commands.EventOwnershipTransferred,
}

type APIApp struct {
	server       *httpserver.Server
	module       pollledger.Module
	bus          *messaging.Kafka
	postgres     *db.Postgres
	runRelay     bool
	pollInterval time.Duration
	logger       *slog.Logger
}

type WorkerApp struct {
	module       pollledger.Module
	bus          *messaging.Kafka
	postgres     *db.Postgres
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}
	registry := metrics.New(metricsNamespace)
	module, pg, err := buildLedger(context.Background(), cfg, bus, registry, logger)
	if err != nil {
		return nil, err
	}

	return &APIApp{
		server:   httpserver.New(module, registry, logger, normalizeAddr(cfg.HTTPPort)),
		module:   module,
		bus:      bus,
		postgres: pg,
		// The memory store lives in this process, so nobody else can drain
		// its outbox.
		runRelay:     cfg.StoreBackend == config.StoreBackendMemory,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StoreBackend != config.StoreBackendPostgres {
		return nil, errors.New("worker requires STORE_BACKEND=postgres")
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", workerProcessName)

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}
	module, pg, err := buildLedger(context.Background(), cfg, bus, nil, logger)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		module:       module,
		bus:          bus,
		postgres:     pg,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func buildLedger(
	ctx context.Context,
	cfg config.Config,
	bus *messaging.Kafka,
	registry *metrics.Registry,
	logger *slog.Logger,
) (pollledger.Module, *db.Postgres, error) {
	deps := pollledger.Dependencies{
		Publisher:      bus,
		AmountDecimals: cfg.AmountDecimals,
		IdempotencyTTL: cfg.IdempotencyTTL,
		RelayBatchSize: cfg.OutboxBatchSize,
		Logger:         logger,
	}
	if registry != nil {
		deps.Metrics = registry
	}
	owner := entities.Principal(cfg.ProtocolOwner)

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return pollledger.Module{}, nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.EnsureTreasury(ctx, owner); err != nil {
			_ = pg.Close()
			return pollledger.Module{}, nil, fmt.Errorf("seed treasury: %w", err)
		}
		deps.Ledger = repo
		deps.Idempotency = repo
		deps.Outbox = repo
		deps.Transfer = postgresadapter.NewAccountTransfer(repo)
		deps.Clock = repo
		deps.IDGen = repo
		return pollledger.NewModule(deps), pg, nil
	default:
		store := memory.NewStore(owner)
		wallet := memory.NewWallet()
		deps.Ledger = store
		deps.Idempotency = store
		deps.Outbox = store
		deps.Transfer = wallet
		deps.Clock = store
		deps.IDGen = store
		module := pollledger.NewModule(deps)
		module.Store = store
		module.Wallet = wallet
		return module, nil, nil
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"relay_in_process", a.runRelay,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.runRelay {
		if err := subscribeEventLog(groupCtx, a.bus, a.logger); err != nil {
			return err
		}
		group.Go(func() error {
			return runRelayLoop(groupCtx, a.module, a.pollInterval, a.logger)
		})
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := subscribeEventLog(ctx, w.bus, w.logger); err != nil {
		return err
	}
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"brokers", strings.Join(w.bus.Brokers(), ","),
	)
	return runRelayLoop(ctx, w.module, w.pollInterval, w.logger)
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// runRelayLoop drains the outbox on every tick. A failed cycle is logged by
// the relay and retried on the next tick.
func runRelayLoop(ctx context.Context, module pollledger.Module, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := module.Relay.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("outbox relay cycle failed",
				"event", "bootstrap_relay_cycle_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// subscribeEventLog attaches a consumer that records every ledger event the
// relay publishes.
func subscribeEventLog(ctx context.Context, bus *messaging.Kafka, logger *slog.Logger) error {
	for _, topic := range ledgerTopics {
		err := bus.Subscribe(ctx, topic, eventLogGroup, func(_ context.Context, event contractsv1.Envelope) error {
			logger.Info("ledger event consumed",
				"event", "bootstrap_ledger_event_consumed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"event_id", event.EventID,
				"event_type", event.EventType,
				"partition_key", event.PartitionKey,
			)
			return nil
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
