package query

import (
	"context"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET APPLICANT COUNT QUERY
// The landing page counter. Served from cache when possible; a registration
// invalidates it.
// ══════════════════════════════════════════════════════════════════════════════

// GetApplicantCountResult contains the total number of registered applicants.
type GetApplicantCountResult struct {
	Count       int64     `json:"count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GetApplicantCountHandler handles applicant count reads.
type GetApplicantCountHandler struct {
	applicantRepo applicant.Repository
	cache         PageCache
	log           *logger.Logger
}

// NewGetApplicantCountHandler creates a new GetApplicantCountHandler.
func NewGetApplicantCountHandler(
	applicantRepo applicant.Repository,
	cache PageCache,
	log *logger.Logger,
) *GetApplicantCountHandler {
	if log == nil {
		log = logger.Default()
	}

	return &GetApplicantCountHandler{
		applicantRepo: applicantRepo,
		cache:         cache,
		log:           log.With(logger.Component("get_applicant_count")),
	}
}

// Handle returns the applicant count, reading through the cache.
func (h *GetApplicantCountHandler) Handle(ctx context.Context) (*GetApplicantCountResult, error) {
	if h.cache != nil {
		if count, err := h.cache.GetApplicantCount(ctx); err == nil {
			return &GetApplicantCountResult{Count: count, GeneratedAt: time.Now().UTC()}, nil
		}
	}

	count, err := h.applicantRepo.Count(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetApplicantCount", shared.ErrPersistence, "failed to count applicants", err)
	}

	if h.cache != nil {
		if err := h.cache.SetApplicantCount(ctx, count); err != nil {
			h.log.Warn("failed to cache applicant count", logger.Err(err))
		}
	}

	return &GetApplicantCountResult{Count: count, GeneratedAt: time.Now().UTC()}, nil
}
