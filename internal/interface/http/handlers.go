package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/application/command"
	"github.com/catalyst-hub/waitlist-backend/internal/application/query"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down"
			healthy = false
			return
		}
		checks[name] = "up"
	}
	check("database", s.deps.Database)
	check("cache", s.deps.Cache)

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICANTS
// ══════════════════════════════════════════════════════════════════════════════

type createApplicantRequest struct {
	ReferralCode string `json:"referral_code"`
}

func (s *Server) handleCreateApplicant(w http.ResponseWriter, r *http.Request) {
	publicKey := PublicKeyFromContext(r.Context())
	if publicKey == "" {
		writeError(w, http.StatusUnauthorized, "wallet authentication required")
		return
	}

	var req createApplicantRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	result, err := s.deps.CreateApplicant.Handle(r.Context(), command.CreateApplicantCommand{
		PublicKey:     publicKey,
		ReferralCode:  req.ReferralCode,
		CorrelationID: requestIDFromContext(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	profile, err := s.deps.GetApplicant.Handle(r.Context(), query.GetApplicantQuery{PublicKey: publicKey})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	writeJSON(w, status, profile)
}

func (s *Server) handleGetApplicant(w http.ResponseWriter, r *http.Request) {
	publicKey := PublicKeyFromContext(r.Context())
	if publicKey == "" {
		writeError(w, http.StatusUnauthorized, "wallet authentication required")
		return
	}

	profile, err := s.deps.GetApplicant.Handle(r.Context(), query.GetApplicantQuery{PublicKey: publicKey})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateEmailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	publicKey := PublicKeyFromContext(r.Context())
	if publicKey == "" {
		writeError(w, http.StatusUnauthorized, "wallet authentication required")
		return
	}

	var req updateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if _, err := s.deps.UpdateEmail.Handle(r.Context(), command.UpdateEmailCommand{
		PublicKey: publicKey,
		Email:     req.Email,
	}); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	profile, err := s.deps.GetApplicant.Handle(r.Context(), query.GetApplicantQuery{PublicKey: publicKey})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGetApplicantCount(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetApplicantCount.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetUserRank(w http.ResponseWriter, r *http.Request) {
	publicKey := PublicKeyFromContext(r.Context())
	if publicKey == "" {
		writeError(w, http.StatusUnauthorized, "wallet authentication required")
		return
	}

	result, err := s.deps.GetUserRank.Handle(r.Context(), query.GetUserRankQuery{PublicKey: publicKey})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// leaderboardListResponse adds the caller's own position to a page of the
// standings.
type leaderboardListResponse struct {
	*query.GetLeaderboardResult
	UserContext *userContext `json:"user_context,omitempty"`
}

type userContext struct {
	Rank            int  `json:"rank"`
	TotalScore      int  `json:"total_score"`
	IsOnCurrentPage bool `json:"is_on_current_page"`
}

func (s *Server) handleGetLeaderboardList(w http.ResponseWriter, r *http.Request) {
	publicKey := PublicKeyFromContext(r.Context())

	page := queryInt(r, "page", 0)
	limit := queryInt(r, "limit", 0)

	// Without an explicit page the list opens on the caller's own page.
	var caller *query.GetUserRankResult
	if publicKey != "" {
		rank, err := s.deps.GetUserRank.Handle(r.Context(), query.GetUserRankQuery{
			PublicKey: publicKey,
			Limit:     limit,
		})
		if err == nil {
			caller = rank
			if page == 0 {
				page = rank.Page
			}
		}
	}

	result, err := s.deps.GetLeaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := leaderboardListResponse{GetLeaderboardResult: result}
	if caller != nil {
		resp.UserContext = &userContext{
			Rank:            caller.Rank,
			TotalScore:      caller.TotalScore,
			IsOnCurrentPage: caller.Page == result.Page,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetBadges(w http.ResponseWriter, r *http.Request) {
	publicKey := PublicKeyFromContext(r.Context())
	if publicKey == "" {
		writeError(w, http.StatusUnauthorized, "wallet authentication required")
		return
	}

	result, err := s.deps.GetBadges.Handle(r.Context(), query.GetBadgesQuery{PublicKey: publicKey})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetBadgeGroups serves the static group catalogue.
func (s *Server) handleGetBadgeGroups(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetBadges.HandleGroups(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// WORKER / ADMIN
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	publicKey := r.URL.Query().Get("publicKey")
	if publicKey == "" {
		writeError(w, http.StatusBadRequest, "publicKey query parameter is required")
		return
	}

	result, err := s.deps.SyncProgressions.Handle(r.Context(), command.SyncProgressionsCommand{
		PublicKey:          publicKey,
		RefreshLeaderboard: true,
		CorrelationID:      requestIDFromContext(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	failed := 0
	for _, o := range result.Outcomes {
		if o.Failed() {
			failed++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"applicant_id":   result.ApplicantID,
		"sources":        len(result.Outcomes),
		"failed_sources": failed,
		"synced_at":      result.SyncedAt,
	})
}

func (s *Server) handleRebuildLeaderboard(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.RebuildLeaderboard.Handle(r.Context()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain errors onto HTTP statuses. Internal detail is
// logged, never returned.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case shared.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case shared.IsUpstreamUnavailable(err):
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// queryInt parses an integer query parameter, returning def when absent or
// malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
