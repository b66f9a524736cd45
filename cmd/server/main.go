// Package main is the entry point for the waitlist API server.
//
// The server exposes applicant registration, the badge catalogue, and the
// leaderboard over REST, backed by Postgres with an optional Redis cache.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/catalyst-hub/waitlist-backend/config"
	"github.com/catalyst-hub/waitlist-backend/internal/application/command"
	"github.com/catalyst-hub/waitlist-backend/internal/application/query"
	"github.com/catalyst-hub/waitlist-backend/internal/infrastructure/external/holdings"
	"github.com/catalyst-hub/waitlist-backend/internal/infrastructure/external/mailer"
	"github.com/catalyst-hub/waitlist-backend/internal/infrastructure/persistence/postgres"
	"github.com/catalyst-hub/waitlist-backend/internal/infrastructure/persistence/redis"
	httpapi "github.com/catalyst-hub/waitlist-backend/internal/interface/http"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})
	log.Info("starting waitlist API server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version))

	// ─────────────────────────────────────────────────────────────────────────
	// Postgres
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnection(ctx, cfg.Database.URL, postgres.PoolSettings{
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer dbConn.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var leaderboardCache *redis.LeaderboardCache
	var cachePinger httpapi.Pinger

	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("redis unavailable, caching disabled", logger.Err(err))
		} else {
			defer cache.Close()
			leaderboardCache = redis.NewLeaderboardCache(cache,
				cfg.Redis.LeaderboardTTL, cfg.Redis.ApplicantCountTTL)
			cachePinger = cache
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Repositories and external clients
	// ─────────────────────────────────────────────────────────────────────────
	applicantRepo := postgres.NewApplicantRepository(dbConn)
	progressionRepo := postgres.NewProgressionRepository(dbConn)
	badgeRepo := postgres.NewBadgeRepository(dbConn)
	leaderboardRepo := postgres.NewLeaderboardRepository(dbConn)

	holdingsConfig := holdings.DefaultClientConfig(cfg.Holdings.BaseURL)
	holdingsConfig.StakedBaseURL = cfg.Holdings.StakedBaseURL
	holdingsConfig.APIKey = cfg.Holdings.APIKey
	holdingsConfig.Timeout = cfg.Holdings.RequestTimeout
	holdingsConfig.RateLimit = cfg.Holdings.RateLimit
	holdingsConfig.RateLimitBurst = cfg.Holdings.RateLimitBurst
	holdingsConfig.BreakerThreshold = cfg.Holdings.CircuitBreakerThreshold
	holdingsConfig.BreakerTimeout = cfg.Holdings.CircuitBreakerTimeout
	holdingsConfig.Logger = log
	holdingsClient := holdings.NewClient(holdingsConfig)

	var mailingList command.MailingList
	if !cfg.Mailer.Disabled && cfg.Mailer.BaseURL != "" {
		mailingList = mailer.NewClient(mailer.ClientConfig{
			BaseURL:    cfg.Mailer.BaseURL,
			APIKey:     cfg.Mailer.APIKey,
			ListID:     cfg.Mailer.ListID,
			Timeout:    cfg.Mailer.RequestTimeout,
			MaxRetries: cfg.Mailer.MaxRetries,
			Logger:     log,
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Use cases
	// ─────────────────────────────────────────────────────────────────────────
	var cacheDep command.LeaderboardCache
	var pageCache query.PageCache
	if leaderboardCache != nil {
		cacheDep = leaderboardCache
		pageCache = leaderboardCache
	}

	syncHandler := command.NewSyncProgressionsHandler(
		applicantRepo, progressionRepo, badgeRepo, leaderboardRepo,
		holdingsClient, cacheDep, log,
		command.SyncProgressionsHandlerConfig{
			TokenAddress:  cfg.Holdings.TokenAddress,
			SourceTimeout: cfg.Holdings.RequestTimeout,
		})

	deps := httpapi.Dependencies{
		CreateApplicant: command.NewCreateApplicantHandler(
			applicantRepo, leaderboardRepo, progressionRepo, badgeRepo,
			syncHandler, cacheDep, log),
		UpdateEmail:        command.NewUpdateEmailHandler(applicantRepo, mailingList, log),
		SyncProgressions:   syncHandler,
		RebuildLeaderboard: command.NewRebuildLeaderboardHandler(leaderboardRepo, cacheDep, log),

		GetApplicant:      query.NewGetApplicantHandler(applicantRepo, progressionRepo, leaderboardRepo),
		GetApplicantCount: query.NewGetApplicantCountHandler(applicantRepo, pageCache, log),
		GetUserRank:       query.NewGetUserRankHandler(applicantRepo, leaderboardRepo),
		GetLeaderboard:    query.NewGetLeaderboardHandler(leaderboardRepo, pageCache, log),
		GetBadges:         query.NewGetBadgesHandler(applicantRepo, badgeRepo),

		Database: dbConn,
		Cache:    cachePinger,
		Logger:   log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpapi.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.RequireSignature = cfg.Auth.RequireSignature
	serverConfig.MaxSignatureAge = cfg.Auth.MaxSignatureAge
	serverConfig.APIKeyHash = cfg.Auth.WorkerAPIKeyHash

	server := httpapi.NewServer(serverConfig, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("shutdown completed")
	return nil
}
