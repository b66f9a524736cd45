package query

import (
	"context"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER RANK QUERY
// Returns the caller's own leaderboard position in both views: the cached
// rank the public list shows, and the realtime rank computed from current
// scores. The page number locates the caller inside the paged list.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserRankQuery contains the parameters for a single-user rank lookup.
type GetUserRankQuery struct {
	// PublicKey identifies the applicant.
	PublicKey string

	// Limit is the page size used to compute which page the applicant is
	// on. Defaults and caps match GetLeaderboardQuery.
	Limit int
}

// Validate normalizes the query.
func (q *GetUserRankQuery) Validate() error {
	if q.PublicKey == "" {
		return shared.ErrInvalidPublicKey
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return nil
}

// GetUserRankResult contains both rank views for one applicant.
type GetUserRankResult struct {
	// PublicKey is the applicant's full key; this query is only served to
	// the key's owner.
	PublicKey string `json:"public_key"`

	// Rank is the cached position from the last rebuild.
	Rank int `json:"rank"`

	// RealtimeRank reflects the current scores and may be ahead of Rank.
	RealtimeRank int `json:"realtime_rank"`

	// TotalScore is the current badge score.
	TotalScore int `json:"total_score"`

	// RankChange is the movement recorded by the last rebuild.
	RankChange int `json:"rank_change"`

	// Page is the 1-based page of the cached list the applicant appears on.
	Page int `json:"page"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetUserRankHandler handles single-user rank lookups.
type GetUserRankHandler struct {
	applicantRepo   applicant.Repository
	leaderboardRepo leaderboard.Repository
}

// NewGetUserRankHandler creates a new GetUserRankHandler.
func NewGetUserRankHandler(
	applicantRepo applicant.Repository,
	leaderboardRepo leaderboard.Repository,
) *GetUserRankHandler {
	return &GetUserRankHandler{
		applicantRepo:   applicantRepo,
		leaderboardRepo: leaderboardRepo,
	}
}

// Handle resolves the applicant and reads both rank views.
func (h *GetUserRankHandler) Handle(ctx context.Context, query GetUserRankQuery) (*GetUserRankResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	a, err := h.applicantRepo.GetByPublicKey(ctx, query.PublicKey)
	if err != nil {
		return nil, shared.WrapError("query", "GetUserRank", shared.ErrNotFound, "applicant not found", err)
	}

	cached, err := h.leaderboardRepo.GetUserEntry(ctx, a.ID)
	if err != nil {
		return nil, shared.WrapError("query", "GetUserRank", shared.ErrNotFound, "leaderboard entry not found", err)
	}

	realtime, err := h.leaderboardRepo.GetRealtimeEntry(ctx, a.ID)
	if err != nil {
		return nil, shared.WrapError("query", "GetUserRank", shared.ErrNotFound, "leaderboard entry not found", err)
	}

	return &GetUserRankResult{
		PublicKey:    a.PublicKey,
		Rank:         cached.Rank,
		RealtimeRank: realtime.Rank,
		TotalScore:   realtime.TotalScore,
		RankChange:   cached.RankDelta(),
		Page:         ((cached.Rank - 1) / query.Limit) + 1,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
