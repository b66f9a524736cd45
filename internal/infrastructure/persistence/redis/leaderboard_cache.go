package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Key patterns for the leaderboard cache.
const (
	// keyLeaderboardPage caches one page of the cached standings.
	// Full key: leaderboard:page:{page}:{limit}
	keyLeaderboardPage = "leaderboard:page:"

	// keyApplicantCount caches the total applicant count shown on the
	// landing page.
	keyApplicantCount = "applicants:count"
)

// LeaderboardCache caches leaderboard pages and the applicant count. Pages
// are short-lived read-through copies of the Postgres standings; a rebuild
// invalidates all of them.
type LeaderboardCache struct {
	cache *Cache

	pageTTL  time.Duration
	countTTL time.Duration
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache, pageTTL, countTTL time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		cache:    cache,
		pageTTL:  pageTTL,
		countTTL: countTTL,
	}
}

func pageKey(page, limit int) string {
	return fmt.Sprintf("%s%d:%d", keyLeaderboardPage, page, limit)
}

// GetPage returns a cached page, or ErrCacheMiss.
func (l *LeaderboardCache) GetPage(ctx context.Context, page, limit int) ([]leaderboard.Entry, error) {
	var entries []leaderboard.Entry
	if err := l.cache.Get(ctx, pageKey(page, limit), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SetPage stores a page of entries.
func (l *LeaderboardCache) SetPage(ctx context.Context, page, limit int, entries []leaderboard.Entry) error {
	return l.cache.Set(ctx, pageKey(page, limit), entries, l.pageTTL)
}

// InvalidatePages drops every cached page. Called after a rebuild so stale
// ranks don't outlive the standings they came from.
func (l *LeaderboardCache) InvalidatePages(ctx context.Context) error {
	return l.cache.DeleteByPattern(ctx, keyLeaderboardPage+"*")
}

// GetApplicantCount returns the cached applicant count, or ErrCacheMiss.
func (l *LeaderboardCache) GetApplicantCount(ctx context.Context) (int64, error) {
	var count int64
	if err := l.cache.Get(ctx, keyApplicantCount, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// SetApplicantCount stores the applicant count.
func (l *LeaderboardCache) SetApplicantCount(ctx context.Context, count int64) error {
	return l.cache.Set(ctx, keyApplicantCount, count, l.countTTL)
}

// InvalidateApplicantCount drops the cached count, typically after a new
// registration.
func (l *LeaderboardCache) InvalidateApplicantCount(ctx context.Context) error {
	return l.cache.Delete(ctx, keyApplicantCount)
}
