package query

import (
	"context"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/badge"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BADGES QUERY
// The badge catalogue from one applicant's perspective: every badge with its
// unlock state, grouped for display.
// ══════════════════════════════════════════════════════════════════════════════

// GetBadgesQuery identifies the applicant whose unlock state to include.
type GetBadgesQuery struct {
	PublicKey string
}

// Validate validates the query.
func (q GetBadgesQuery) Validate() error {
	if q.PublicKey == "" {
		return shared.ErrInvalidPublicKey
	}
	return nil
}

// BadgeDTO is one badge in the catalogue view.
type BadgeDTO struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Score       int        `json:"score"`
	GroupID     int64      `json:"group_id"`
	IsUnlocked  bool       `json:"is_unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}

// BadgeGroupDTO is one display group with its badges.
type BadgeGroupDTO struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Badges      []BadgeDTO `json:"badges"`
}

// GetBadgesResult is the grouped badge catalogue.
type GetBadgesResult struct {
	Groups []BadgeGroupDTO `json:"groups"`

	// UnlockedCount and TotalCount summarize progress through the catalogue.
	UnlockedCount int `json:"unlocked_count"`
	TotalCount    int `json:"total_count"`

	// UnlockedScore is the sum of scores over unlocked badges. It matches
	// the leaderboard total after the next rebuild.
	UnlockedScore int `json:"unlocked_score"`
}

// GroupDTO is one badge group on its own, without member badges.
type GroupDTO struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GetBadgeGroupsResult is the group catalogue.
type GetBadgeGroupsResult struct {
	Groups []GroupDTO `json:"groups"`
}

// GetBadgesHandler handles badge catalogue reads.
type GetBadgesHandler struct {
	applicantRepo applicant.Repository
	badgeRepo     badge.Repository
}

// NewGetBadgesHandler creates a new GetBadgesHandler.
func NewGetBadgesHandler(
	applicantRepo applicant.Repository,
	badgeRepo badge.Repository,
) *GetBadgesHandler {
	return &GetBadgesHandler{
		applicantRepo: applicantRepo,
		badgeRepo:     badgeRepo,
	}
}

// Handle loads the catalogue with the applicant's unlock state.
func (h *GetBadgesHandler) Handle(ctx context.Context, query GetBadgesQuery) (*GetBadgesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	a, err := h.applicantRepo.GetByPublicKey(ctx, query.PublicKey)
	if err != nil {
		return nil, err
	}

	badges, err := h.badgeRepo.ReadBadges(ctx, a.ID)
	if err != nil {
		return nil, shared.WrapError("query", "GetBadges", shared.ErrPersistence, "failed to read badges", err)
	}

	groups, err := h.badgeRepo.ReadGroups(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetBadges", shared.ErrPersistence, "failed to read badge groups", err)
	}

	result := &GetBadgesResult{TotalCount: len(badges)}

	byGroup := make(map[int64][]BadgeDTO)
	for _, b := range badges {
		dto := BadgeDTO{
			ID:          b.ID,
			Title:       b.Title,
			Description: b.Description,
			Score:       b.Score,
			GroupID:     b.GroupID,
			IsUnlocked:  b.IsUnlocked,
			UnlockedAt:  b.UnlockedAt,
		}
		byGroup[b.GroupID] = append(byGroup[b.GroupID], dto)

		if b.IsUnlocked {
			result.UnlockedCount++
			result.UnlockedScore += b.Score
		}
	}

	result.Groups = make([]BadgeGroupDTO, 0, len(groups))
	for _, g := range groups {
		result.Groups = append(result.Groups, BadgeGroupDTO{
			ID:          g.ID,
			Title:       g.Title,
			Description: g.Description,
			Badges:      byGroup[g.ID],
		})
		delete(byGroup, g.ID)
	}

	// Badges without a known group still render, in a catch-all group.
	if len(byGroup) > 0 {
		var rest []BadgeDTO
		for _, dtos := range byGroup {
			rest = append(rest, dtos...)
		}
		result.Groups = append(result.Groups, BadgeGroupDTO{Title: "Other", Badges: rest})
	}

	return result, nil
}

// HandleGroups returns the group catalogue without any applicant context.
// The catalogue is static seeded data, so no authentication is involved.
func (h *GetBadgesHandler) HandleGroups(ctx context.Context) (*GetBadgeGroupsResult, error) {
	groups, err := h.badgeRepo.ReadGroups(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetBadgeGroups", shared.ErrPersistence, "failed to read badge groups", err)
	}

	result := &GetBadgeGroupsResult{Groups: make([]GroupDTO, 0, len(groups))}
	for _, g := range groups {
		result.Groups = append(result.Groups, GroupDTO{
			ID:          g.ID,
			Title:       g.Title,
			Description: g.Description,
		})
	}
	return result, nil
}
