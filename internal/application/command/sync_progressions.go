// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/badge"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC PROGRESSIONS COMMAND
// Pulls every progression source for one applicant, updates the counters, and
// evaluates badges per source. The central design decision is failure
// isolation: one unreachable balance source must not block the other sources
// or the caller.
// ══════════════════════════════════════════════════════════════════════════════

// SyncProgressionsCommand contains the data needed to sync one applicant.
type SyncProgressionsCommand struct {
	// PublicKey identifies the applicant to sync.
	PublicKey string

	// RefreshLeaderboard recomputes the cached standings after the sync.
	// The full-population worker pass sets this false and rebuilds once at
	// the end instead.
	RefreshLeaderboard bool

	// CorrelationID for tracing. Generated when empty.
	CorrelationID string
}

// Validate validates the command.
func (c SyncProgressionsCommand) Validate() error {
	if c.PublicKey == "" {
		return errors.New("sync_progressions: public_key must be provided")
	}
	return nil
}

// SourceOutcome describes what happened to one progression source during a
// sync. Fetch failures are recorded here instead of surfacing to the caller.
type SourceOutcome struct {
	EventType progression.EventType
	Progress  int
	FetchErr  error
}

// Failed reports whether the source fetch failed and fell back to zero.
func (o SourceOutcome) Failed() bool {
	return o.FetchErr != nil
}

// SyncProgressionsResult contains the per-source outcomes of a sync.
type SyncProgressionsResult struct {
	ApplicantID int64
	Outcomes    []SourceOutcome
	SyncedAt    time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// BalanceSource provides on-chain balances for a wallet.
type BalanceSource interface {
	// GetTokenBalance returns the wallet's balance of the given token mint.
	GetTokenBalance(ctx context.Context, publicKey, tokenAddress string) (float64, error)

	// GetStakedTokenBalance returns the wallet's governance-staked balance.
	GetStakedTokenBalance(ctx context.Context, publicKey string) (float64, error)
}

// LeaderboardCache invalidates cached leaderboard reads after writes.
// Implementations may be nil-safe no-ops when caching is disabled.
type LeaderboardCache interface {
	InvalidatePages(ctx context.Context) error
	InvalidateApplicantCount(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SyncProgressionsHandler handles the SyncProgressionsCommand.
type SyncProgressionsHandler struct {
	applicantRepo   applicant.Repository
	recorder        progression.Recorder
	badgeRepo       badge.Repository
	leaderboardRepo leaderboard.Repository
	balances        BalanceSource
	cache           LeaderboardCache
	log             *logger.Logger

	tokenAddress  string
	sourceTimeout time.Duration
}

// SyncProgressionsHandlerConfig contains configuration for the handler.
type SyncProgressionsHandlerConfig struct {
	// TokenAddress is the mint whose balance feeds token_balance_check.
	TokenAddress string

	// SourceTimeout bounds each source fetch independently so one slow
	// upstream cannot stall the others.
	SourceTimeout time.Duration
}

// NewSyncProgressionsHandler creates a new SyncProgressionsHandler.
func NewSyncProgressionsHandler(
	applicantRepo applicant.Repository,
	recorder progression.Recorder,
	badgeRepo badge.Repository,
	leaderboardRepo leaderboard.Repository,
	balances BalanceSource,
	cache LeaderboardCache,
	log *logger.Logger,
	config SyncProgressionsHandlerConfig,
) *SyncProgressionsHandler {
	if config.SourceTimeout == 0 {
		config.SourceTimeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}

	return &SyncProgressionsHandler{
		applicantRepo:   applicantRepo,
		recorder:        recorder,
		badgeRepo:       badgeRepo,
		leaderboardRepo: leaderboardRepo,
		balances:        balances,
		cache:           cache,
		log:             log.With(logger.Component("sync_progressions")),
		tokenAddress:    config.TokenAddress,
		sourceTimeout:   config.SourceTimeout,
	}
}

// Handle executes the sync. Exactly four sources are fetched concurrently:
// registration (constant 1), token balance, staked balance, and the referral
// count recomputed from the referral graph. A source that fails to fetch is
// logged and recorded as 0 for this sync; the others proceed. Only an
// applicant lookup miss or a persistence failure aborts the call.
func (h *SyncProgressionsHandler) Handle(ctx context.Context, cmd SyncProgressionsCommand) (*SyncProgressionsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	correlationID := cmd.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.log.WithRequestID(correlationID).With(logger.PublicKey(cmd.PublicKey))

	a, err := h.applicantRepo.GetByPublicKey(ctx, cmd.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("sync_progressions: %w", err)
	}

	outcomes := h.fetchSources(ctx, a)

	for _, o := range outcomes {
		if o.Failed() {
			log.Warn("progression source failed, recording zero",
				logger.EventType(o.EventType.String()),
				logger.Err(o.FetchErr))
		}

		if err := h.recorder.RecordEvent(ctx, cmd.PublicKey, o.EventType, o.Progress); err != nil {
			return nil, fmt.Errorf("sync_progressions: record %s: %w", o.EventType, err)
		}

		if err := h.badgeRepo.AwardIfEligible(ctx, a.ID, o.EventType, o.Progress); err != nil {
			return nil, fmt.Errorf("sync_progressions: evaluate %s: %w", o.EventType, err)
		}
	}

	if cmd.RefreshLeaderboard {
		if err := h.leaderboardRepo.Rebuild(ctx); err != nil {
			return nil, fmt.Errorf("sync_progressions: rebuild leaderboard: %w", err)
		}
		if h.cache != nil {
			if err := h.cache.InvalidatePages(ctx); err != nil {
				log.Warn("failed to invalidate leaderboard cache", logger.Err(err))
			}
		}
	}

	log.Info("progression sync completed",
		logger.ApplicantID(a.ID),
		logger.Int("sources", len(outcomes)))

	return &SyncProgressionsResult{
		ApplicantID: a.ID,
		Outcomes:    outcomes,
		SyncedAt:    time.Now().UTC(),
	}, nil
}

// fetchSources runs the four source fetches concurrently, each under its own
// timeout. The result slice is in fixed event-type order regardless of
// completion order.
func (h *SyncProgressionsHandler) fetchSources(ctx context.Context, a *applicant.Applicant) []SourceOutcome {
	type fetch struct {
		eventType progression.EventType
		fn        func(ctx context.Context) (int, error)
	}

	fetches := []fetch{
		{progression.EventRegistrationCompleted, func(ctx context.Context) (int, error) {
			return 1, nil
		}},
		{progression.EventTokenBalanceCheck, func(ctx context.Context) (int, error) {
			if h.tokenAddress == "" {
				return 0, shared.ErrConfigurationMissing
			}
			balance, err := h.balances.GetTokenBalance(ctx, a.PublicKey, h.tokenAddress)
			return int(balance), err
		}},
		{progression.EventStakedBalanceCheck, func(ctx context.Context) (int, error) {
			balance, err := h.balances.GetStakedTokenBalance(ctx, a.PublicKey)
			return int(balance), err
		}},
		{progression.EventReferralCreated, func(ctx context.Context) (int, error) {
			return h.applicantRepo.CountReferrals(ctx, a.ID)
		}},
	}

	results := make([]SourceOutcome, len(fetches))
	done := make(chan int, len(fetches))

	for i, f := range fetches {
		go func(i int, f fetch) {
			defer func() { done <- i }()

			fetchCtx, cancel := context.WithTimeout(ctx, h.sourceTimeout)
			defer cancel()

			progress, err := f.fn(fetchCtx)
			if err != nil {
				results[i] = SourceOutcome{EventType: f.eventType, Progress: 0, FetchErr: err}
				return
			}
			results[i] = SourceOutcome{EventType: f.eventType, Progress: progress}
		}(i, f)
	}

	for range fetches {
		<-done
	}

	return results
}
