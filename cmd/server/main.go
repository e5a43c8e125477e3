package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/api"
	"github.com/flowmarket/marketplace/internal/assistant"
	"github.com/flowmarket/marketplace/internal/cache"
	"github.com/flowmarket/marketplace/internal/clickhouse"
	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/importer"
	"github.com/flowmarket/marketplace/internal/jobs"
	"github.com/flowmarket/marketplace/internal/observability"
	"github.com/flowmarket/marketplace/internal/payments"
	"github.com/flowmarket/marketplace/internal/search"
	"github.com/flowmarket/marketplace/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting marketplace service",
		zap.String("service", cfg.Observability.ServiceName),
	)

	tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing mysql: %w", err)
	}
	defer db.Close()
	logger.Info("mysql store initialized")

	redisCache, err := cache.NewRedisCache(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("initializing redis: %w", err)
	}
	defer redisCache.Close()
	logger.Info("redis cache initialized")

	searchClient, err := search.NewClient(cfg.Meilisearch, cfg.Search, logger)
	if err != nil {
		return fmt.Errorf("initializing meilisearch: %w", err)
	}
	if err := searchClient.EnsureIndexes(ctx); err != nil {
		logger.Warn("ensuring search indexes failed, search may degrade", zap.Error(err))
	}
	logger.Info("meilisearch client initialized")

	var chClient *clickhouse.Client
	chClient, err = clickhouse.NewClient(cfg.ClickHouse, logger)
	if err != nil {
		logger.Warn("clickhouse initialization failed, analytics will be unavailable", zap.Error(err))
		chClient = nil
	} else {
		defer chClient.Close()
		if err := chClient.EnsureTables(ctx); err != nil {
			logger.Warn("clickhouse table creation failed", zap.Error(err))
		}
		logger.Info("clickhouse client initialized")
	}

	var analyticsWriter observability.AnalyticsWriter
	if chClient != nil {
		analyticsWriter = chClient
	}
	slowQueryDetector := observability.NewSlowQueryDetector(
		cfg.Search.SlowQuery.WarningThreshold,
		cfg.Search.SlowQuery.CriticalThreshold,
		logger,
		analyticsWriter,
	)

	paymentService := payments.NewService(db, cfg.Payments, logger)
	dispatcher := assistant.NewDispatcher(db, searchClient, int64(cfg.Search.DefaultLimit), logger)
	marketAssistant := assistant.New(dispatcher, db, logger)
	templateImporter := importer.New(db, cfg.Import, logger)

	producer := jobs.NewProducer(cfg.Kafka, redisCache, logger)
	defer producer.Close()

	worker := jobs.NewWorker(templateImporter, searchClient, db, redisCache, cfg.Import, logger)
	consumer := jobs.NewConsumer(cfg.Kafka, worker.Handle, logger)
	if err := consumer.Start(ctx); err != nil {
		logger.Warn("kafka consumer start failed, background jobs will not run", zap.Error(err))
	} else {
		defer consumer.Stop()
		logger.Info("kafka consumer started")
	}

	var analytics api.AnalyticsSource
	if chClient != nil {
		analytics = chClient
	}
	handler := api.NewHandler(
		db, searchClient, marketAssistant, paymentService,
		producer, redisCache, analytics, slowQueryDetector, cfg, logger,
	)

	healthHandler := api.NewHealthHandler(logger)
	healthHandler.Register("mysql", db)
	healthHandler.Register("redis", redisCache)
	healthHandler.Register("meilisearch", searchClient)
	healthHandler.Register("kafka", consumer)
	if chClient != nil {
		healthHandler.Register("clickhouse", chClient)
	}

	router := api.NewRouter(handler, healthHandler, redisCache, cfg.RateLimit, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancel()

	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}
