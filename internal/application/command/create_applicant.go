package command

import (
	"context"
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
// CREATE APPLICANT COMMAND
// Registers a wallet on the waitlist. The flow is deliberately sequential and
// non-transactional: persist applicant → leaderboard entry → registration
// counter → badge evaluation → full sync. Each step's failure surfaces as the
// operation's failure; there is no rollback of earlier steps. A retry is safe
// because every step is idempotent (insert-or-re-read, upsert, ON CONFLICT).
// ══════════════════════════════════════════════════════════════════════════════

// CreateApplicantCommand contains the data needed to register an applicant.
type CreateApplicantCommand struct {
	// PublicKey is the wallet public key signing up.
	PublicKey string

	// ReferralCode is the optional code of the referring applicant.
	ReferralCode string

	// CorrelationID for tracing. Generated when empty.
	CorrelationID string
}

// Validate validates the command.
func (c CreateApplicantCommand) Validate() error {
	if c.PublicKey == "" {
		return shared.ErrInvalidPublicKey
	}
	return nil
}

// CreateApplicantResult contains the created (or pre-existing) applicant.
type CreateApplicantResult struct {
	Applicant *applicant.Applicant

	// AlreadyExisted is true when the public key was registered before and
	// the existing row was returned.
	AlreadyExisted bool

	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreateApplicantHandler handles the CreateApplicantCommand.
type CreateApplicantHandler struct {
	applicantRepo   applicant.Repository
	leaderboardRepo leaderboard.Repository
	recorder        progression.Recorder
	badgeRepo       badge.Repository
	syncHandler     *SyncProgressionsHandler
	cache           LeaderboardCache
	log             *logger.Logger
}

// NewCreateApplicantHandler creates a new CreateApplicantHandler.
func NewCreateApplicantHandler(
	applicantRepo applicant.Repository,
	leaderboardRepo leaderboard.Repository,
	recorder progression.Recorder,
	badgeRepo badge.Repository,
	syncHandler *SyncProgressionsHandler,
	cache LeaderboardCache,
	log *logger.Logger,
) *CreateApplicantHandler {
	if log == nil {
		log = logger.Default()
	}

	return &CreateApplicantHandler{
		applicantRepo:   applicantRepo,
		leaderboardRepo: leaderboardRepo,
		recorder:        recorder,
		badgeRepo:       badgeRepo,
		syncHandler:     syncHandler,
		cache:           cache,
		log:             log.With(logger.Component("create_applicant")),
	}
}

// Handle executes the registration flow.
func (h *CreateApplicantHandler) Handle(ctx context.Context, cmd CreateApplicantCommand) (*CreateApplicantResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	correlationID := cmd.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.log.WithRequestID(correlationID).With(logger.PublicKey(cmd.PublicKey))

	// An unknown referral code is a caller error, surfaced before anything
	// is written.
	var referrer *applicant.Applicant
	if cmd.ReferralCode != "" {
		var err error
		referrer, err = h.applicantRepo.GetByReferralCode(ctx, cmd.ReferralCode)
		if err != nil {
			return nil, fmt.Errorf("create_applicant: resolve referral code: %w", err)
		}
	}

	var referredByID int64
	if referrer != nil {
		referredByID = referrer.ID
	}

	fresh, err := applicant.New(cmd.PublicKey, referredByID)
	if err != nil {
		return nil, err
	}

	persisted, err := h.applicantRepo.CreateOrFetch(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("create_applicant: persist: %w", err)
	}
	alreadyExisted := persisted.ReferralCode != fresh.ReferralCode

	if err := h.leaderboardRepo.AddUser(ctx, persisted.ID); err != nil {
		return nil, fmt.Errorf("create_applicant: add leaderboard entry: %w", err)
	}

	if err := h.recorder.RecordEvent(ctx, persisted.PublicKey,
		progression.EventRegistrationCompleted, 1); err != nil {
		return nil, fmt.Errorf("create_applicant: record registration: %w", err)
	}

	if err := h.badgeRepo.AwardIfEligible(ctx, persisted.ID,
		progression.EventRegistrationCompleted, 1); err != nil {
		return nil, fmt.Errorf("create_applicant: evaluate registration badge: %w", err)
	}

	// The referrer's referral counter moves as a consequence of this
	// registration; recompute and evaluate it right away instead of waiting
	// for the referrer's next sync.
	if referrer != nil && !alreadyExisted {
		if err := h.creditReferrer(ctx, referrer); err != nil {
			return nil, fmt.Errorf("create_applicant: credit referrer: %w", err)
		}
	}

	if h.cache != nil {
		if err := h.cache.InvalidateApplicantCount(ctx); err != nil {
			log.Warn("failed to invalidate applicant count cache", logger.Err(err))
		}
	}

	// Full sync picks up balances the wallet already holds. Source failures
	// inside the sync are isolated and never fail the registration.
	if _, err := h.syncHandler.Handle(ctx, SyncProgressionsCommand{
		PublicKey:          persisted.PublicKey,
		RefreshLeaderboard: true,
		CorrelationID:      correlationID,
	}); err != nil {
		return nil, fmt.Errorf("create_applicant: initial sync: %w", err)
	}

	log.Info("applicant registered",
		logger.ApplicantID(persisted.ID),
		logger.ReferralCode(persisted.ReferralCode),
		logger.Bool("already_existed", alreadyExisted),
		logger.Bool("was_referred", persisted.WasReferred()))

	return &CreateApplicantResult{
		Applicant:      persisted,
		AlreadyExisted: alreadyExisted,
		CreatedAt:      persisted.CreatedAt,
	}, nil
}

// creditReferrer recomputes the referrer's referral count from the graph and
// evaluates referral badges against the new value.
func (h *CreateApplicantHandler) creditReferrer(ctx context.Context, referrer *applicant.Applicant) error {
	count, err := h.applicantRepo.CountReferrals(ctx, referrer.ID)
	if err != nil {
		return err
	}

	if err := h.recorder.RecordEvent(ctx, referrer.PublicKey,
		progression.EventReferralCreated, count); err != nil {
		return err
	}

	return h.badgeRepo.AwardIfEligible(ctx, referrer.ID,
		progression.EventReferralCreated, count)
}
