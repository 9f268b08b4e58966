package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rfqworks/price-intel/internal/config"
	"github.com/rfqworks/price-intel/internal/core/ports"
	"github.com/rfqworks/price-intel/internal/core/usecase"
	"github.com/rfqworks/price-intel/internal/infrastructure/queue/nats"
	"github.com/rfqworks/price-intel/internal/infrastructure/resilience"
	"github.com/rfqworks/price-intel/internal/infrastructure/store/jsonfile"
	"github.com/rfqworks/price-intel/internal/infrastructure/store/postgres"
	"github.com/rfqworks/price-intel/internal/pricerules"
)

type App struct {
	Config config.Config
	Rules  pricerules.Rules

	Store ports.ObservationStore
	Queue *nats.Queue

	IngestUC  *usecase.IngestUseCase
	MatchUC   *usecase.MatchUseCase
	HistoryUC *usecase.HistoryUseCase
	Oracle    *usecase.PricingOracle
	Grader    *usecase.ConfidenceGrader
	QuoteUC   *usecase.QuoteUseCase

	closeFn func()
}

type Options struct {
	// WithQueue connects NATS; the API publishes to it, the worker subscribes.
	WithQueue bool
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	rules, err := pricerules.Load(cfg.PricingRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load pricing rules: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var queue *nats.Queue
	if opts.WithQueue {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.QueuePolicy(), logger),
			Logger:             logger,
		})
		if err != nil {
			closeStore()
			return nil, fmt.Errorf("init observation queue: %w", err)
		}
	}

	ingestUC := usecase.NewIngestUseCase(store, logger)
	matchUC := usecase.NewMatchUseCase(store, logger)
	historyUC := usecase.NewHistoryUseCase(store, logger)
	oracle := usecase.NewPricingOracle(rules, logger)
	grader := usecase.NewConfidenceGrader(rules)
	quoteUC := usecase.NewQuoteUseCase(matchUC, oracle, grader, logger)

	return &App{
		Config: cfg,
		Rules:  rules,
		Store:  store,
		Queue:  queue,

		IngestUC:  ingestUC,
		MatchUC:   matchUC,
		HistoryUC: historyUC,
		Oracle:    oracle,
		Grader:    grader,
		QuoteUC:   quoteUC,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			closeStore()
		},
	}, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.ObservationStore, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		store := postgres.NewStore(db, postgres.Options{
			MaxRecords: cfg.StoreMaxRecords,
			Executor:   resilience.NewExecutor(resilience.StorePolicy(), logger),
			Logger:     logger,
		})
		return store, func() { _ = store.Close() }, nil
	case "jsonfile", "":
		store, err := jsonfile.Open(cfg.StorePath, cfg.StoreMaxRecords)
		if err != nil {
			return nil, nil, fmt.Errorf("open store file: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
