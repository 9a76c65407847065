package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medbot-api/internal/app"
	"github.com/jwalitptl/medbot-api/internal/config"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/messaging/redis"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
	"github.com/jwalitptl/medbot-api/pkg/worker"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func setupHealthCheck(port int, store pinger, registry *prometheus.Registry, logger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "health check server failed")
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Redis.URL == "" {
		log.Fatal().Msg("redis.url is required to run the ingest worker")
	}

	// Initialize logger
	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = appLogger.Zerolog()
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Log.Level))
	workerLogger := appLogger.With("ingest_worker")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	workerMetrics := metrics.NewMetrics("medbot", "worker", registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, appLogger, workerMetrics)
	if err != nil {
		workerLogger.Fatal(err, "failed to open record store")
	}
	defer stores.Close()

	// Initialize Redis broker
	zl := appLogger.Zerolog()
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl)
	if err != nil {
		workerLogger.Fatal(err, "failed to create Redis broker")
	}
	defer broker.Close()

	// Records stored by the worker still fire alerts and are republished
	// on the stored topic.
	recordSvc := app.NewRecordService(cfg, stores, broker, appLogger, workerMetrics)

	processor := worker.NewIngestProcessor(
		recordSvc,
		broker,
		worker.IngestProcessorConfig{
			Channel:       cfg.Worker.Channel,
			RetryAttempts: cfg.Worker.RetryAttempts,
			RetryDelay:    cfg.Worker.RetryDelay,
		},
		workerLogger,
		workerMetrics,
	)

	healthSrv := setupHealthCheck(cfg.Worker.HealthPort, stores.Records, registry, workerLogger)

	workerLogger.Info("Worker started", "channel", cfg.Worker.Channel, "health_port", cfg.Worker.HealthPort)
	if err := processor.Start(ctx); err != nil {
		workerLogger.Error(err, "ingest processor stopped")
	}

	workerLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		workerLogger.Error(err, "health check server forced to shutdown")
	}
}
