package query

import (
	"context"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET APPLICANT QUERY
// The profile view: applicant identity, every progression counter, referral
// stats, and the cached rank.
// ══════════════════════════════════════════════════════════════════════════════

// GetApplicantQuery identifies the applicant to load.
type GetApplicantQuery struct {
	PublicKey string
}

// Validate validates the query.
func (q GetApplicantQuery) Validate() error {
	if q.PublicKey == "" {
		return shared.ErrInvalidPublicKey
	}
	return nil
}

// ProgressionDTO is one progression counter in the profile.
type ProgressionDTO struct {
	EventTypeID int    `json:"event_type_id"`
	EventName   string `json:"event_name"`
	Progress    int    `json:"progress"`
}

// GetApplicantResult is the applicant profile.
type GetApplicantResult struct {
	ID           int64  `json:"id"`
	PublicKey    string `json:"public_key"`
	Email        string `json:"email,omitempty"`
	ReferralCode string `json:"referral_code"`
	WasReferred  bool   `json:"was_referred"`

	// ReferralCount is the number of applicants who registered with this
	// applicant's code, read live from the referral graph.
	ReferralCount int `json:"referral_count"`

	// Rank is the cached leaderboard position, 0 when the entry is missing.
	Rank int `json:"rank"`

	// TotalScore is the cached badge score.
	TotalScore int `json:"total_score"`

	Progressions []ProgressionDTO `json:"progressions"`
	CreatedAt    time.Time        `json:"created_at"`
}

// GetApplicantHandler handles profile reads.
type GetApplicantHandler struct {
	applicantRepo   applicant.Repository
	recorder        progression.Recorder
	leaderboardRepo leaderboard.Repository
}

// NewGetApplicantHandler creates a new GetApplicantHandler.
func NewGetApplicantHandler(
	applicantRepo applicant.Repository,
	recorder progression.Recorder,
	leaderboardRepo leaderboard.Repository,
) *GetApplicantHandler {
	return &GetApplicantHandler{
		applicantRepo:   applicantRepo,
		recorder:        recorder,
		leaderboardRepo: leaderboardRepo,
	}
}

// Handle loads the applicant profile.
func (h *GetApplicantHandler) Handle(ctx context.Context, query GetApplicantQuery) (*GetApplicantResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	a, err := h.applicantRepo.GetByPublicKey(ctx, query.PublicKey)
	if err != nil {
		return nil, err
	}

	counters, err := h.recorder.ReadUserProgressions(ctx, a.PublicKey)
	if err != nil {
		return nil, shared.WrapError("query", "GetApplicant", shared.ErrPersistence, "failed to read progressions", err)
	}

	referralCount, err := h.applicantRepo.CountReferrals(ctx, a.ID)
	if err != nil {
		return nil, shared.WrapError("query", "GetApplicant", shared.ErrPersistence, "failed to count referrals", err)
	}

	result := &GetApplicantResult{
		ID:            a.ID,
		PublicKey:     a.PublicKey,
		Email:         a.Email,
		ReferralCode:  a.ReferralCode,
		WasReferred:   a.WasReferred(),
		ReferralCount: referralCount,
		CreatedAt:     a.CreatedAt,
		Progressions:  make([]ProgressionDTO, 0, len(counters)),
	}

	for _, c := range counters {
		result.Progressions = append(result.Progressions, ProgressionDTO{
			EventTypeID: c.EventType.ID(),
			EventName:   c.EventName,
			Progress:    c.Progress,
		})
	}

	// A missing entry only means the leaderboard row was not created yet;
	// the profile still renders with rank 0.
	if entry, err := h.leaderboardRepo.GetUserEntry(ctx, a.ID); err == nil {
		result.Rank = entry.Rank
		result.TotalScore = entry.TotalScore
	}

	return result, nil
}
