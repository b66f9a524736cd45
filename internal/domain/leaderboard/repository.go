package leaderboard

import "context"

// Repository is the persistence contract for the leaderboard.
//
// Two rank views coexist. The cached view (GetPage, GetUserEntry) serves the
// standings written by the last Rebuild and is what the public list shows.
// The realtime view (GetRealtimeEntry) counts rows with a strictly better
// (score, created_at) position at read time and reflects score changes
// immediately. The two may disagree between rebuilds; that is expected.
type Repository interface {
	// AddUser inserts a zero-score entry for a new applicant at the bottom
	// of the cached standings (rank = current max + 1).
	AddUser(ctx context.Context, applicantID int64) error

	// GetPage returns one page of the cached standings ordered by rank.
	GetPage(ctx context.Context, page, limit int) ([]Entry, error)

	// GetUserEntry returns the applicant's cached entry, or
	// shared.ErrEntryNotFound.
	GetUserEntry(ctx context.Context, applicantID int64) (*Entry, error)

	// GetRealtimeEntry returns the applicant's entry with Rank computed from
	// current scores instead of the cached standings.
	GetRealtimeEntry(ctx context.Context, applicantID int64) (*Entry, error)

	// Rebuild recomputes every entry: total score is set to the sum of the
	// applicant's badge scores, the current rank is archived as the previous
	// rank, and ranks are reassigned by score descending, registration time
	// ascending.
	Rebuild(ctx context.Context) error

	// Count returns the number of leaderboard entries.
	Count(ctx context.Context) (int64, error)
}
