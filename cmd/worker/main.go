package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/rfqworks/price-intel/internal/bootstrap"
	"github.com/rfqworks/price-intel/internal/config"
	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/observability/logging"
	"github.com/rfqworks/price-intel/internal/observability/metrics"
)

const serviceName = "price-intel-worker"

func main() {
	cfg := config.Load()
	logger := logging.New(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{WithQueue: true})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// Bulk imports can dump thousands of observations at once; the limiter
	// keeps the store's persist cycle from starving match queries.
	limiter := rate.NewLimiter(rate.Limit(cfg.IngestRatePerSec), int(cfg.IngestRatePerSec)+1)

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "store_backend", cfg.StoreBackend)
	err = app.Queue.SubscribeObservations(ctx, func(handlerCtx context.Context, raw domain.RawObservation) error {
		if err := limiter.Wait(handlerCtx); err != nil {
			return err
		}

		ingestCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		workerMetrics.StartIngest()
		start := time.Now()
		result, err := app.IngestUC.Ingest(ingestCtx, raw)
		workerMetrics.FinishIngest(serviceName, string(result.Reason), time.Since(start), err)
		if err != nil {
			return err
		}

		if stats, statsErr := app.IngestUC.Stats(ingestCtx); statsErr == nil {
			workerMetrics.SetStoreSize(stats.RecordCount)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
