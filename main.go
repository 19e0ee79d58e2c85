package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stock-insight-backend/config"
	"stock-insight-backend/internal/api"
	"stock-insight-backend/internal/auth"
	"stock-insight-backend/internal/cache"
	"stock-insight-backend/internal/database"
	"stock-insight-backend/internal/events"
	"stock-insight-backend/internal/logging"
	"stock-insight-backend/internal/marketdata"
	"stock-insight-backend/internal/scanner"
	"stock-insight-backend/internal/secrets"
)

func main() {
	// Load .env when present; deployments set real environment variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LoggingConfig)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secretsClient, err := secrets.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize vault client")
	}
	if secretsClient.IsEnabled() {
		if err := secretsClient.Hydrate(ctx, cfg); err != nil {
			logger.Fatal().Err(err).Msg("failed to hydrate secrets from vault")
		}
		logger.Info().Msg("secrets hydrated from vault")
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	repo := database.NewRepository(db)

	authService, err := auth.NewService(repo, auth.Config{
		JWTSecret:            cfg.AuthConfig.JWTSecret,
		AccessTokenDuration:  cfg.AuthConfig.AccessTokenDuration,
		RefreshTokenDuration: cfg.AuthConfig.RefreshTokenDuration,
		MinPasswordLength:    cfg.AuthConfig.MinPasswordLength,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize auth service")
	}
	go authService.RunSessionCleanup(ctx, cfg.AuthConfig.SessionCleanupInterval)

	var redisCache *cache.Service
	if cfg.RedisConfig.Enabled {
		redisCache, err = cache.NewService(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, analysis caches fall back to memory")
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	eventBus := events.NewEventBus()

	provider := marketdata.NewProvider(marketdata.NewClient(""), logger)
	evaluator := scanner.NewEvaluator(provider, logger)

	watchScanner := scanner.NewScanner(repo, evaluator, eventBus, scanner.Config{
		Enabled:      cfg.ScannerConfig.Enabled,
		ScanInterval: time.Duration(cfg.ScannerConfig.ScanInterval) * time.Second,
		WorkerCount:  cfg.ScannerConfig.WorkerCount,
		MaxSymbols:   cfg.ScannerConfig.MaxSymbols,
	}, logger)

	server := api.NewServer(cfg, repo, eventBus, authService, provider, evaluator, watchScanner, secretsClient, redisCache, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("web server failed")
		}
	}()
	logger.Info().
		Str("host", cfg.ServerConfig.Host).
		Int("port", cfg.ServerConfig.Port).
		Msg("server started")

	watchScanner.Start()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	watchScanner.Stop()

	logger.Info().Msg("shutdown complete")
}
