package command

import (
	"context"
	"fmt"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD COMMAND
// Recomputes every score and rank from the badge awards. Runs on the worker
// schedule and behind the admin endpoint; badge awards themselves never
// trigger it synchronously, which is why the cached rank may lag the score.
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardHandler recomputes the cached standings.
type RebuildLeaderboardHandler struct {
	leaderboardRepo leaderboard.Repository
	cache           LeaderboardCache
	log             *logger.Logger
}

// NewRebuildLeaderboardHandler creates a new RebuildLeaderboardHandler.
func NewRebuildLeaderboardHandler(
	leaderboardRepo leaderboard.Repository,
	cache LeaderboardCache,
	log *logger.Logger,
) *RebuildLeaderboardHandler {
	if log == nil {
		log = logger.Default()
	}

	return &RebuildLeaderboardHandler{
		leaderboardRepo: leaderboardRepo,
		cache:           cache,
		log:             log.With(logger.Component("rebuild_leaderboard")),
	}
}

// Handle rebuilds the standings and drops cached pages.
func (h *RebuildLeaderboardHandler) Handle(ctx context.Context) error {
	start := time.Now()

	if err := h.leaderboardRepo.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild_leaderboard: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.InvalidatePages(ctx); err != nil {
			h.log.Warn("failed to invalidate leaderboard cache", logger.Err(err))
		}
	}

	h.log.Info("leaderboard rebuilt", logger.Latency(time.Since(start)))
	return nil
}
