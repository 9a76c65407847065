package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medbot-api/internal/app"
	"github.com/jwalitptl/medbot-api/internal/catalog"
	"github.com/jwalitptl/medbot-api/internal/config"
	analysisHandler "github.com/jwalitptl/medbot-api/internal/handler/analysis"
	chatHandler "github.com/jwalitptl/medbot-api/internal/handler/chat"
	"github.com/jwalitptl/medbot-api/internal/handler/health"
	promHandler "github.com/jwalitptl/medbot-api/internal/handler/prometheus"
	recordHandler "github.com/jwalitptl/medbot-api/internal/handler/record"
	"github.com/jwalitptl/medbot-api/internal/llm"
	"github.com/jwalitptl/medbot-api/internal/matcher"
	"github.com/jwalitptl/medbot-api/internal/middleware"
	"github.com/jwalitptl/medbot-api/internal/router"
	analysisService "github.com/jwalitptl/medbot-api/internal/service/analysis"
	chatService "github.com/jwalitptl/medbot-api/internal/service/chat"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/messaging"
	"github.com/jwalitptl/medbot-api/pkg/messaging/redis"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
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

	// Metrics share one registry with the /metrics endpoint
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics("medbot", "", registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load catalog
	entries, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		appLogger.Fatal(err, "failed to load catalog", "path", cfg.Catalog.Path)
	}
	clipMatcher := matcher.New(entries)
	appLogger.Info("Catalog loaded", "entries", len(entries))

	// Initialize stores
	stores, err := app.OpenStores(ctx, cfg, appLogger, appMetrics)
	if err != nil {
		appLogger.Fatal(err, "failed to open record store")
	}
	defer stores.Close()

	// Initialize Redis message broker when configured
	var broker messaging.Broker = messaging.NopBroker{}
	if cfg.Redis.URL != "" {
		zl := appLogger.Zerolog()
		broker, err = redis.NewRedisBroker(redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &zl)
		if err != nil {
			appLogger.Fatal(err, "failed to connect to Redis")
		}
	}
	defer broker.Close()

	// Initialize services
	recordSvc := app.NewRecordService(cfg, stores, broker, appLogger, appMetrics)

	analysisSvc, err := analysisService.NewService(
		analysisService.ExecRunner{Dir: cfg.Analysis.WorkDir},
		recordSvc,
		stores.Prescriptions,
		analysisService.Config{
			Python:         cfg.Analysis.Python,
			ECGScript:      cfg.Analysis.ECGScript,
			OCRScript:      cfg.Analysis.OCRScript,
			UploadDir:      cfg.Uploads.Dir,
			MaxUploadBytes: cfg.Uploads.MaxBytes,
			Timeout:        cfg.Analysis.Timeout,
			ECGEnabled:     cfg.Analysis.Enabled,
		},
		appLogger.With("analysis"),
		appMetrics,
	)
	if err != nil {
		appLogger.Fatal(err, "failed to initialize analysis service")
	}

	generator, err := llm.New(llm.Config{
		Provider:        cfg.Generation.Provider,
		BaseURL:         cfg.Generation.BaseURL,
		Model:           cfg.Generation.Model,
		APIKey:          cfg.Generation.APIKey,
		Timeout:         cfg.Generation.Timeout,
		BreakerFailures: cfg.Generation.BreakerFailures,
		BreakerTimeout:  cfg.Generation.BreakerTimeout,
	}, appMetrics)
	if err != nil {
		appLogger.Fatal(err, "failed to initialize text generator")
	}

	chatSvc := chatService.NewService(
		generator,
		clipMatcher,
		stores.Records,
		stores.Prescriptions,
		chatService.NewSequencer(cfg.Chat.SessionTTL),
		chatService.Config{
			MaxWords:   cfg.Chat.MaxWords,
			MinScore:   cfg.Matcher.MinScore,
			ClipSuffix: cfg.Catalog.ClipSuffix,
		},
		appLogger.With("chat"),
		appMetrics,
	)

	// Setup router
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins

	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxBodySize = cfg.Server.MaxBodyBytes
	sizeLimit.MaxUploadSize = cfg.Uploads.MaxBytes

	r := router.NewRouter(
		router.RouterConfig{
			Debug: cfg.IsDevelopment(),
			RateLimit: middleware.RateLimiterConfig{
				RPS:   cfg.RateLimit.RequestsPerSecond,
				Burst: cfg.RateLimit.Burst,
			},
			RateLimitOn:    cfg.RateLimit.Enabled,
			CORSConfig:     corsConfig,
			Security:       middleware.DefaultSecurityConfig(),
			SizeLimit:      sizeLimit,
			RequestTimeout: cfg.Server.RequestTimeout,
		},
		promHandler.New("medbot", registry),
		health.NewHandler(stores.Records, analysisSvc, health.Config{
			Environment: cfg.Environment,
			WordLimit:   cfg.Chat.MaxWords,
		}),
		chatHandler.NewHandler(chatSvc, clipMatcher),
		recordHandler.NewHandler(recordSvc),
		analysisHandler.NewHandler(analysisSvc),
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		appLogger.Info("MEDBOT AI server running", "addr", srv.Addr, "ecg_analysis", analysisSvc.Available())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	appLogger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}
