package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC ALL COMMAND
// The worker's full-population pass: sync every applicant with bounded
// concurrency, then rebuild the leaderboard once at the end. Per-applicant
// failures are counted and logged, never fatal to the pass.
// ══════════════════════════════════════════════════════════════════════════════

// SyncAllCommand contains the parameters for a full-population sync.
type SyncAllCommand struct {
	// Concurrency bounds how many applicants sync at once. Defaults to 4.
	Concurrency int

	// CorrelationID for tracing. Generated when empty.
	CorrelationID string
}

// SyncAllResult summarizes a full pass.
type SyncAllResult struct {
	Total    int
	Synced   int
	Failed   int
	Duration time.Duration
}

// SyncAllHandler handles the SyncAllCommand.
type SyncAllHandler struct {
	applicantRepo applicant.Repository
	syncHandler   *SyncProgressionsHandler
	rebuild       *RebuildLeaderboardHandler
	log           *logger.Logger
}

// NewSyncAllHandler creates a new SyncAllHandler.
func NewSyncAllHandler(
	applicantRepo applicant.Repository,
	syncHandler *SyncProgressionsHandler,
	rebuild *RebuildLeaderboardHandler,
	log *logger.Logger,
) *SyncAllHandler {
	if log == nil {
		log = logger.Default()
	}

	return &SyncAllHandler{
		applicantRepo: applicantRepo,
		syncHandler:   syncHandler,
		rebuild:       rebuild,
		log:           log.With(logger.Component("sync_all")),
	}
}

// Handle runs the full pass. Individual syncs skip the leaderboard refresh;
// one rebuild at the end covers the whole population.
func (h *SyncAllHandler) Handle(ctx context.Context, cmd SyncAllCommand) (*SyncAllResult, error) {
	start := time.Now()

	concurrency := cmd.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	correlationID := cmd.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.log.WithRequestID(correlationID)

	keys, err := h.applicantRepo.ListPublicKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync_all: list applicants: %w", err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	sem := make(chan struct{}, concurrency)

	for _, publicKey := range keys {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(publicKey string) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := h.syncHandler.Handle(ctx, SyncProgressionsCommand{
				PublicKey:     publicKey,
				CorrelationID: correlationID,
			}); err != nil {
				log.Warn("applicant sync failed",
					logger.PublicKey(publicKey),
					logger.Err(err))
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(publicKey)
	}
	wg.Wait()

	if err := h.rebuild.Handle(ctx); err != nil {
		return nil, fmt.Errorf("sync_all: %w", err)
	}

	result := &SyncAllResult{
		Total:    len(keys),
		Synced:   len(keys) - failed,
		Failed:   failed,
		Duration: time.Since(start),
	}

	log.Info("full sync pass completed",
		logger.Int("total", result.Total),
		logger.Int("failed", result.Failed),
		logger.Latency(result.Duration))

	return result, nil
}
