package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kmelnikov/slackvault/internal/common/config"
	"github.com/kmelnikov/slackvault/internal/common/logging"
	"github.com/kmelnikov/slackvault/internal/infra/cache"
	"github.com/kmelnikov/slackvault/internal/infra/db"
	"github.com/kmelnikov/slackvault/internal/infra/migrations"
	"github.com/kmelnikov/slackvault/internal/ingest"
	"github.com/kmelnikov/slackvault/internal/observability"
	"github.com/kmelnikov/slackvault/internal/ratelimit"
	"github.com/kmelnikov/slackvault/internal/resolver"
	"github.com/kmelnikov/slackvault/internal/slack"
	"github.com/kmelnikov/slackvault/internal/store"
	"github.com/kmelnikov/slackvault/internal/webhook"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Server.Debug {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting slackvault",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
	)

	database, err := db.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := migrations.Run(ctx, database.Pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations applied successfully")

	var cacheClient *cache.Cache
	if cfg.Redis.Enabled {
		cacheClient, err = cache.New(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			logger.Warn("failed to connect to redis, continuing without name cache", zap.Error(err))
		} else {
			defer func() {
				if err := cacheClient.Close(); err != nil {
					logger.Error("failed to close cache", zap.Error(err))
				}
			}()
			logger.Info("connected to redis")
		}
	}

	metrics := observability.NewMetrics(logger)

	healthChecker := observability.NewHealthChecker(logger, version)
	healthChecker.RegisterCheck("database", func(ctx context.Context) (observability.HealthStatus, string, error) {
		if err := database.Health(ctx); err != nil {
			return observability.StatusUnhealthy, "database connection failed", err
		}
		return observability.StatusHealthy, "database connection ok", nil
	})
	if cacheClient != nil {
		healthChecker.RegisterCheck("redis", func(ctx context.Context) (observability.HealthStatus, string, error) {
			if err := cacheClient.Ping(ctx); err != nil {
				return observability.StatusDegraded, "redis connection failed", err
			}
			return observability.StatusHealthy, "redis connection ok", nil
		})
	}

	slackClient := slack.NewClient(cfg.Slack.Token, slack.WithBaseURL(cfg.Slack.APIBaseURL))
	nameResolver := resolver.New(slackClient, cacheClient, cfg.Slack.NameCacheTTL, logger, metrics)

	repo := store.NewRepository(database.Pool)
	dispatcher := ingest.NewDispatcher(repo, nameResolver, logger, metrics)
	webhookHandler := webhook.NewHandler(dispatcher, logger)

	limiter := ratelimit.NewLimiter(
		cfg.RateLimit.RequestsPerMinute,
		cfg.RateLimit.Burst,
		cfg.RateLimit.Enabled,
	)
	defer limiter.Close()
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute),
		)
	}

	router := mux.NewRouter()
	router.Use(webhook.RecoveryMiddleware(logger))
	router.Use(webhook.RequestIDMiddleware(logger))
	router.Use(metrics.HTTPMiddleware)
	router.Use(limiter.Middleware)
	router.Use(webhook.SignatureMiddleware(cfg.Slack.SigningSecret, logger))
	webhookHandler.Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 3)

	go func() {
		logger.Info("webhook server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("serve http: %w", err)
		}
	}()

	go func() {
		if err := metrics.Start(ctx, cfg.Server.MetricsPort); err != nil {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	go func() {
		if err := healthChecker.Start(ctx, cfg.Server.HealthPort); err != nil {
			errChan <- fmt.Errorf("health server: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
