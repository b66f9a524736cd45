// Package query contains read operations (CQRS - Queries).
// Queries never modify state; each one is a self-contained use case with its
// own request and response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Returns one page of the cached standings. Entries expose masked public keys
// only; full keys never leave the read model through this query.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultPageSize is the page size used when the caller does not pass one.
const DefaultPageSize = 10

// MaxPageSize caps the page size a caller can request.
const MaxPageSize = 100

// GetLeaderboardQuery contains the leaderboard page parameters.
type GetLeaderboardQuery struct {
	// Page is the 1-based page number.
	Page int

	// Limit is the page size (default 10, capped at 100).
	Limit int
}

// Validate normalizes the paging parameters.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Page < 0 || q.Limit < 0 {
		return errors.New("page and limit cannot be negative")
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return nil
}

// LeaderboardEntryDTO is one row of the public leaderboard.
type LeaderboardEntryDTO struct {
	// Rank is the cached position, starting at 1.
	Rank int `json:"rank"`

	// PublicKey is masked (first and last four characters).
	PublicKey string `json:"public_key"`

	// TotalScore is the badge score as of the last rebuild.
	TotalScore int `json:"total_score"`

	// PreviousRank is the position before the last rebuild, 0 for entries
	// that joined after it.
	PreviousRank int `json:"previous_rank"`

	// RankChange is positive when the entry climbed, negative when it fell.
	RankChange int `json:"rank_change"`
}

// GetLeaderboardResult contains one page of the standings.
type GetLeaderboardResult struct {
	Entries     []LeaderboardEntryDTO `json:"entries"`
	TotalCount  int64                 `json:"total_count"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"page_size"`
	HasMore     bool                  `json:"has_more"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// PageCache is the read-through cache for leaderboard pages. May be nil when
// caching is disabled.
type PageCache interface {
	GetPage(ctx context.Context, page, limit int) ([]leaderboard.Entry, error)
	SetPage(ctx context.Context, page, limit int, entries []leaderboard.Entry) error
	GetApplicantCount(ctx context.Context) (int64, error)
	SetApplicantCount(ctx context.Context, count int64) error
}

// GetLeaderboardHandler handles leaderboard page reads.
type GetLeaderboardHandler struct {
	leaderboardRepo leaderboard.Repository
	cache           PageCache
	log             *logger.Logger
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(
	leaderboardRepo leaderboard.Repository,
	cache PageCache,
	log *logger.Logger,
) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Default()
	}

	return &GetLeaderboardHandler{
		leaderboardRepo: leaderboardRepo,
		cache:           cache,
		log:             log.With(logger.Component("get_leaderboard")),
	}
}

// Handle returns the requested page, reading through the cache.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, "invalid paging", err)
	}

	entries, cached := h.tryCache(ctx, query.Page, query.Limit)
	if !cached {
		var err error
		entries, err = h.leaderboardRepo.GetPage(ctx, query.Page, query.Limit)
		if err != nil {
			return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrPersistence, "failed to read standings", err)
		}

		if h.cache != nil {
			if err := h.cache.SetPage(ctx, query.Page, query.Limit, entries); err != nil {
				h.log.Warn("failed to cache leaderboard page", logger.Err(err))
			}
		}
	}

	total, err := h.leaderboardRepo.Count(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrPersistence, "failed to count entries", err)
	}

	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}

	return &GetLeaderboardResult{
		Entries:     dtos,
		TotalCount:  total,
		Page:        query.Page,
		PageSize:    query.Limit,
		HasMore:     int64(query.Page*query.Limit) < total,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (h *GetLeaderboardHandler) tryCache(ctx context.Context, page, limit int) ([]leaderboard.Entry, bool) {
	if h.cache == nil {
		return nil, false
	}

	entries, err := h.cache.GetPage(ctx, page, limit)
	if err != nil {
		return nil, false
	}
	return entries, true
}

// toEntryDTO converts a domain entry to its public shape, masking the key.
func toEntryDTO(e leaderboard.Entry) LeaderboardEntryDTO {
	return LeaderboardEntryDTO{
		Rank:         e.Rank,
		PublicKey:    leaderboard.MaskPublicKey(e.PublicKey),
		TotalScore:   e.TotalScore,
		PreviousRank: e.PreviousRank,
		RankChange:   e.RankDelta(),
	}
}
