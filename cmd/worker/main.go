// Package main is the entry point for the waitlist background worker.
//
// The worker periodically re-syncs every applicant's progressions from the
// upstream sources and rebuilds the leaderboard once per pass.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/catalyst-hub/waitlist-backend/config"
	"github.com/catalyst-hub/waitlist-backend/internal/application/command"
	"github.com/catalyst-hub/waitlist-backend/internal/infrastructure/external/holdings"
	"github.com/catalyst-hub/waitlist-backend/internal/infrastructure/persistence/postgres"
	"github.com/catalyst-hub/waitlist-backend/internal/infrastructure/persistence/redis"
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

	if !cfg.Worker.Enabled {
		log.Info("worker is disabled, exiting")
		return nil
	}

	log.Info("starting waitlist sync worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("schedule", cfg.Worker.SyncSchedule))

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

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional, used only to invalidate cached pages after a pass)
	// ─────────────────────────────────────────────────────────────────────────
	var cacheDep command.LeaderboardCache

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
			log.Warn("redis unavailable, cache invalidation disabled", logger.Err(err))
		} else {
			defer cache.Close()
			cacheDep = redis.NewLeaderboardCache(cache,
				cfg.Redis.LeaderboardTTL, cfg.Redis.ApplicantCountTTL)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Use cases
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

	syncHandler := command.NewSyncProgressionsHandler(
		applicantRepo, progressionRepo, badgeRepo, leaderboardRepo,
		holdingsClient, cacheDep, log,
		command.SyncProgressionsHandlerConfig{
			TokenAddress:  cfg.Holdings.TokenAddress,
			SourceTimeout: cfg.Holdings.RequestTimeout,
		})
	rebuildHandler := command.NewRebuildLeaderboardHandler(leaderboardRepo, cacheDep, log)
	syncAll := command.NewSyncAllHandler(applicantRepo, syncHandler, rebuildHandler, log)

	runPass := func() {
		passCtx, cancel := context.WithTimeout(ctx, cfg.Worker.SyncTimeout)
		defer cancel()

		result, err := syncAll.Handle(passCtx, command.SyncAllCommand{
			Concurrency: cfg.Worker.SyncConcurrency,
		})
		if err != nil {
			log.Error("sync pass failed", logger.Err(err))
			return
		}
		log.Info("sync pass finished",
			logger.Int("total", result.Total),
			logger.Int("failed", result.Failed),
			logger.Latency(result.Duration))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Schedule
	// ─────────────────────────────────────────────────────────────────────────
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Worker.SyncSchedule, runPass); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", cfg.Worker.SyncSchedule, err)
	}

	// One pass at startup so a fresh deployment does not wait for the
	// first cron tick.
	go runPass()

	scheduler.Start()
	log.Info("worker started")

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	// Stop scheduling new passes, then wait for a running pass to finish.
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("timed out waiting for running jobs")
	}

	log.Info("shutdown completed")
	return nil
}
