package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/badge"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// Slim read-model fakes. Unlike the command-side fakes these hold canned
// data; queries never write.

type stubApplicantRepo struct {
	applicants map[string]*applicant.Applicant
	referrals  map[int64]int
	count      int64
}

func newStubApplicantRepo() *stubApplicantRepo {
	return &stubApplicantRepo{
		applicants: make(map[string]*applicant.Applicant),
		referrals:  make(map[int64]int),
	}
}

func (r *stubApplicantRepo) CreateOrFetch(context.Context, *applicant.Applicant) (*applicant.Applicant, error) {
	return nil, errors.New("not implemented")
}

func (r *stubApplicantRepo) GetByPublicKey(_ context.Context, publicKey string) (*applicant.Applicant, error) {
	if a, ok := r.applicants[publicKey]; ok {
		return a, nil
	}
	return nil, shared.ErrApplicantNotFound
}

func (r *stubApplicantRepo) GetByID(_ context.Context, id int64) (*applicant.Applicant, error) {
	for _, a := range r.applicants {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, shared.ErrApplicantNotFound
}

func (r *stubApplicantRepo) GetByReferralCode(context.Context, string) (*applicant.Applicant, error) {
	return nil, shared.ErrReferralCodeNotFound
}

func (r *stubApplicantRepo) UpdateEmail(context.Context, string, string) (*applicant.Applicant, error) {
	return nil, errors.New("not implemented")
}

func (r *stubApplicantRepo) Count(context.Context) (int64, error) {
	return r.count, nil
}

func (r *stubApplicantRepo) CountReferrals(_ context.Context, id int64) (int, error) {
	return r.referrals[id], nil
}

func (r *stubApplicantRepo) ListPublicKeys(context.Context) ([]string, error) {
	return nil, nil
}

type stubRecorder struct {
	counters map[string]map[progression.EventType]int
}

func newStubRecorder() *stubRecorder {
	return &stubRecorder{counters: make(map[string]map[progression.EventType]int)}
}

func (r *stubRecorder) RecordEvent(context.Context, string, progression.EventType, int) error {
	return errors.New("not implemented")
}

func (r *stubRecorder) ReadUserProgressions(_ context.Context, publicKey string) ([]progression.Counter, error) {
	var out []progression.Counter
	for _, et := range progression.AllEventTypes() {
		out = append(out, progression.Counter{
			EventType: et,
			EventName: et.String(),
			Progress:  r.counters[publicKey][et],
		})
	}
	return out, nil
}

func (r *stubRecorder) GetUserProgression(_ context.Context, publicKey string, eventType progression.EventType) (int, error) {
	return r.counters[publicKey][eventType], nil
}

type stubBadgeRepo struct {
	badges []badge.Badge
	groups []badge.Group
}

func (r *stubBadgeRepo) ReadBadges(context.Context, int64) ([]badge.Badge, error) {
	return r.badges, nil
}

func (r *stubBadgeRepo) ReadGroups(context.Context) ([]badge.Group, error) {
	return r.groups, nil
}

func (r *stubBadgeRepo) ReadRequirements(context.Context, progression.EventType) ([]badge.Requirement, error) {
	return nil, nil
}

func (r *stubBadgeRepo) AwardIfEligible(context.Context, int64, progression.EventType, int) error {
	return errors.New("not implemented")
}

func (r *stubBadgeRepo) ReadAwards(context.Context, int64) ([]badge.Award, error) {
	return nil, nil
}

type stubLeaderboardRepo struct {
	pages    map[int][]leaderboard.Entry
	cached   map[int64]*leaderboard.Entry
	realtime map[int64]*leaderboard.Entry
	total    int64

	pageReads int
}

func newStubLeaderboardRepo() *stubLeaderboardRepo {
	return &stubLeaderboardRepo{
		pages:    make(map[int][]leaderboard.Entry),
		cached:   make(map[int64]*leaderboard.Entry),
		realtime: make(map[int64]*leaderboard.Entry),
	}
}

func (r *stubLeaderboardRepo) AddUser(context.Context, int64) error {
	return errors.New("not implemented")
}

func (r *stubLeaderboardRepo) GetPage(_ context.Context, page, _ int) ([]leaderboard.Entry, error) {
	r.pageReads++
	return r.pages[page], nil
}

func (r *stubLeaderboardRepo) GetUserEntry(_ context.Context, applicantID int64) (*leaderboard.Entry, error) {
	if e, ok := r.cached[applicantID]; ok {
		return e, nil
	}
	return nil, shared.ErrEntryNotFound
}

func (r *stubLeaderboardRepo) GetRealtimeEntry(_ context.Context, applicantID int64) (*leaderboard.Entry, error) {
	if e, ok := r.realtime[applicantID]; ok {
		return e, nil
	}
	return nil, shared.ErrEntryNotFound
}

func (r *stubLeaderboardRepo) Rebuild(context.Context) error {
	return errors.New("not implemented")
}

func (r *stubLeaderboardRepo) Count(context.Context) (int64, error) {
	return r.total, nil
}

type stubPageCache struct {
	pages      map[string][]leaderboard.Entry
	count      int64
	hasCount   bool
	setPages   int
	setCounts  int
	missAlways bool
}

func newStubPageCache() *stubPageCache {
	return &stubPageCache{pages: make(map[string][]leaderboard.Entry)}
}

func cacheKey(page, limit int) string {
	return fmt.Sprintf("%d:%d", page, limit)
}

func (c *stubPageCache) GetPage(_ context.Context, page, limit int) ([]leaderboard.Entry, error) {
	if c.missAlways {
		return nil, errors.New("cache miss")
	}
	if entries, ok := c.pages[cacheKey(page, limit)]; ok {
		return entries, nil
	}
	return nil, errors.New("cache miss")
}

func (c *stubPageCache) SetPage(_ context.Context, page, limit int, entries []leaderboard.Entry) error {
	c.setPages++
	c.pages[cacheKey(page, limit)] = entries
	return nil
}

func (c *stubPageCache) GetApplicantCount(context.Context) (int64, error) {
	if !c.hasCount {
		return 0, errors.New("cache miss")
	}
	return c.count, nil
}

func (c *stubPageCache) SetApplicantCount(_ context.Context, count int64) error {
	c.setCounts++
	c.count = count
	c.hasCount = true
	return nil
}

func seedApplicant(repo *stubApplicantRepo, id int64, publicKey string) *applicant.Applicant {
	a := &applicant.Applicant{
		ID:           id,
		PublicKey:    publicKey,
		ReferralCode: "ABC123",
		CreatedAt:    time.Now().UTC(),
	}
	repo.applicants[publicKey] = a
	return a
}
