package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/badge"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory fakes mirroring the persistence contracts. They reproduce the
// storage-level guarantees the handlers rely on: insert-or-re-read on
// conflict, upsert counters, and conflict-ignoring awards.
// ─────────────────────────────────────────────────────────────────────────────

type fakeApplicantRepo struct {
	mu     sync.Mutex
	byKey  map[string]*applicant.Applicant
	nextID int64
}

func newFakeApplicantRepo() *fakeApplicantRepo {
	return &fakeApplicantRepo{byKey: make(map[string]*applicant.Applicant), nextID: 1}
}

func (r *fakeApplicantRepo) CreateOrFetch(_ context.Context, a *applicant.Applicant) (*applicant.Applicant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byKey[a.PublicKey]; ok {
		cp := *existing
		return &cp, nil
	}

	stored := *a
	stored.ID = r.nextID
	r.nextID++
	r.byKey[stored.PublicKey] = &stored

	cp := stored
	return &cp, nil
}

func (r *fakeApplicantRepo) GetByPublicKey(_ context.Context, publicKey string) (*applicant.Applicant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.byKey[publicKey]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, shared.ErrApplicantNotFound
}

func (r *fakeApplicantRepo) GetByID(_ context.Context, id int64) (*applicant.Applicant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.byKey {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, shared.ErrApplicantNotFound
}

func (r *fakeApplicantRepo) GetByReferralCode(_ context.Context, code string) (*applicant.Applicant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.byKey {
		if a.ReferralCode == code {
			cp := *a
			return &cp, nil
		}
	}
	return nil, shared.ErrReferralCodeNotFound
}

func (r *fakeApplicantRepo) UpdateEmail(_ context.Context, publicKey, email string) (*applicant.Applicant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byKey[publicKey]
	if !ok {
		return nil, shared.ErrApplicantNotFound
	}
	a.Email = email

	cp := *a
	return &cp, nil
}

func (r *fakeApplicantRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byKey)), nil
}

func (r *fakeApplicantRepo) CountReferrals(_ context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.byKey {
		if a.ReferredByID == id {
			count++
		}
	}
	return count, nil
}

func (r *fakeApplicantRepo) all() []applicant.Applicant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]applicant.Applicant, 0, len(r.byKey))
	for _, a := range r.byKey {
		out = append(out, *a)
	}
	return out
}

func (r *fakeApplicantRepo) ListPublicKeys(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeRecorder struct {
	mu       sync.Mutex
	counters map[string]map[progression.EventType]int
	failOn   progression.EventType
	failErr  error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{counters: make(map[string]map[progression.EventType]int)}
}

func (r *fakeRecorder) RecordEvent(_ context.Context, publicKey string, eventType progression.EventType, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil && eventType == r.failOn {
		return r.failErr
	}

	if r.counters[publicKey] == nil {
		r.counters[publicKey] = make(map[progression.EventType]int)
	}
	r.counters[publicKey][eventType] = progress
	return nil
}

func (r *fakeRecorder) ReadUserProgressions(_ context.Context, publicKey string) ([]progression.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

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

func (r *fakeRecorder) GetUserProgression(_ context.Context, publicKey string, eventType progression.EventType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[publicKey][eventType], nil
}

func (r *fakeRecorder) progress(publicKey string, eventType progression.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[publicKey][eventType]
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeBadgeRepo struct {
	mu           sync.Mutex
	scores       map[int64]int // badgeID -> score
	requirements []badge.Requirement
	awards       map[int64]map[int64]time.Time // applicantID -> badgeID -> awarded at
}

func newFakeBadgeRepo() *fakeBadgeRepo {
	return &fakeBadgeRepo{
		scores: make(map[int64]int),
		awards: make(map[int64]map[int64]time.Time),
	}
}

func (r *fakeBadgeRepo) addBadge(id int64, score int, req badge.Requirement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[id] = score
	req.BadgeID = id
	r.requirements = append(r.requirements, req)
}

func (r *fakeBadgeRepo) ReadBadges(_ context.Context, applicantID int64) ([]badge.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []badge.Badge
	for id, score := range r.scores {
		b := badge.Badge{ID: id, Score: score}
		if at, ok := r.awards[applicantID][id]; ok {
			b.IsUnlocked = true
			t := at
			b.UnlockedAt = &t
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeBadgeRepo) ReadGroups(_ context.Context) ([]badge.Group, error) {
	return nil, nil
}

func (r *fakeBadgeRepo) ReadRequirements(_ context.Context, eventType progression.EventType) ([]badge.Requirement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []badge.Requirement
	for _, req := range r.requirements {
		if req.EventType == eventType {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *fakeBadgeRepo) AwardIfEligible(_ context.Context, applicantID int64, eventType progression.EventType, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.requirements {
		if req.EventType != eventType || !req.Satisfied(progress) {
			continue
		}
		if r.awards[applicantID] == nil {
			r.awards[applicantID] = make(map[int64]time.Time)
		}
		if _, exists := r.awards[applicantID][req.BadgeID]; exists {
			continue // existing award keeps its timestamp
		}
		r.awards[applicantID][req.BadgeID] = time.Now().UTC()
	}
	return nil
}

func (r *fakeBadgeRepo) ReadAwards(_ context.Context, applicantID int64) ([]badge.Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []badge.Award
	for badgeID, at := range r.awards[applicantID] {
		out = append(out, badge.Award{ApplicantID: applicantID, BadgeID: badgeID, CreatedAt: at})
	}
	return out, nil
}

func (r *fakeBadgeRepo) totalScore(applicantID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for badgeID := range r.awards[applicantID] {
		total += r.scores[badgeID]
	}
	return total
}

func (r *fakeBadgeRepo) awardCount(applicantID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.awards[applicantID])
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeLeaderboardRepo struct {
	mu         sync.Mutex
	entries    map[int64]*leaderboard.Entry
	badges     *fakeBadgeRepo
	applicants *fakeApplicantRepo
	createdAt  map[int64]time.Time
	rebuilds   int
}

func newFakeLeaderboardRepo(badges *fakeBadgeRepo, applicants *fakeApplicantRepo) *fakeLeaderboardRepo {
	return &fakeLeaderboardRepo{
		entries:    make(map[int64]*leaderboard.Entry),
		badges:     badges,
		applicants: applicants,
		createdAt:  make(map[int64]time.Time),
	}
}

func (r *fakeLeaderboardRepo) AddUser(_ context.Context, applicantID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[applicantID]; ok {
		return nil
	}

	maxRank := 0
	for _, e := range r.entries {
		if e.Rank > maxRank {
			maxRank = e.Rank
		}
	}

	r.entries[applicantID] = &leaderboard.Entry{
		ApplicantID: applicantID,
		Rank:        maxRank + 1,
	}
	r.createdAt[applicantID] = time.Now().UTC()
	return nil
}

func (r *fakeLeaderboardRepo) GetPage(_ context.Context, page, limit int) ([]leaderboard.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []leaderboard.Entry
	for _, e := range r.entries {
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Rank < all[j].Rank })

	start := (page - 1) * limit
	if start >= len(all) {
		return nil, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *fakeLeaderboardRepo) GetUserEntry(_ context.Context, applicantID int64) (*leaderboard.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[applicantID]
	if !ok {
		return nil, shared.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeLeaderboardRepo) GetRealtimeEntry(_ context.Context, applicantID int64) (*leaderboard.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[applicantID]
	if !ok {
		return nil, shared.ErrEntryNotFound
	}

	score := r.badges.totalScore(applicantID)
	rank := 1
	for otherID := range r.entries {
		if otherID == applicantID {
			continue
		}
		otherScore := r.badges.totalScore(otherID)
		if otherScore > score ||
			(otherScore == score && r.createdAt[otherID].Before(r.createdAt[applicantID])) {
			rank++
		}
	}

	cp := *e
	cp.TotalScore = score
	cp.Rank = rank
	return &cp, nil
}

// Rebuild mirrors the SQL implementation: applicants missing an entry get one
// inserted, every score is set from the awards (replaced, not incremented),
// and ranks are reassigned.
func (r *fakeLeaderboardRepo) Rebuild(_ context.Context) error {
	applicants := r.applicants.all()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rebuilds++

	for _, a := range applicants {
		if _, ok := r.entries[a.ID]; ok {
			continue
		}
		r.entries[a.ID] = &leaderboard.Entry{ApplicantID: a.ID, PublicKey: a.PublicKey}
		created := a.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		r.createdAt[a.ID] = created
	}

	var ids []int64
	for id, e := range r.entries {
		e.TotalScore = r.badges.totalScore(id)
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		a, b := r.entries[ids[i]], r.entries[ids[j]]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return r.createdAt[ids[i]].Before(r.createdAt[ids[j]])
	})

	for pos, id := range ids {
		e := r.entries[id]
		e.PreviousRank = e.Rank
		e.Rank = pos + 1
	}
	return nil
}

func (r *fakeLeaderboardRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeBalanceSource struct {
	mu            sync.Mutex
	tokenBalance  float64
	tokenErr      error
	stakedBalance float64
	stakedErr     error
	tokenCalls    int
}

func (s *fakeBalanceSource) GetTokenBalance(_ context.Context, _, _ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenCalls++
	return s.tokenBalance, s.tokenErr
}

func (s *fakeBalanceSource) GetStakedTokenBalance(_ context.Context, _ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stakedBalance, s.stakedErr
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeCache struct {
	mu                 sync.Mutex
	pageInvalidations  int
	countInvalidations int
}

func (c *fakeCache) InvalidatePages(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageInvalidations++
	return nil
}

func (c *fakeCache) InvalidateApplicantCount(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.countInvalidations++
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeMailingList struct {
	mu      sync.Mutex
	upserts []string
	err     error
}

func (m *fakeMailingList) UpsertMember(_ context.Context, email string, _ int64, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.upserts = append(m.upserts, email)
	return nil
}
