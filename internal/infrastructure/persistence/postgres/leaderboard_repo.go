package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
//
// The public list always serves the cached ranks written by the last Rebuild.
// GetRealtimeEntry computes rank on the fly; between rebuilds the two views
// legitimately disagree.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

const entryColumns = `
	e.applicant_id, a.public_key, e.total_score, e.rank, e.previous_rank, a.created_at`

// AddUser inserts a zero-score entry at the bottom of the cached standings.
func (r *LeaderboardRepository) AddUser(ctx context.Context, applicantID int64) error {
	query := `
		INSERT INTO leaderboard_entries (applicant_id, total_score, rank, previous_rank, updated_at)
		VALUES ($1, 0, (SELECT COALESCE(MAX(rank), 0) + 1 FROM leaderboard_entries), 0, $2)
		ON CONFLICT (applicant_id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query, applicantID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add leaderboard entry: %w", err)
	}

	return nil
}

// GetPage returns one page of the cached standings ordered by rank.
func (r *LeaderboardRepository) GetPage(ctx context.Context, page, limit int) ([]leaderboard.Entry, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}

	query := `
		SELECT` + entryColumns + `
		FROM leaderboard_entries e
		JOIN applicants a ON a.id = e.applicant_id
		ORDER BY e.rank ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard page: %w", err)
	}
	defer rows.Close()

	var entries []leaderboard.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	return entries, rows.Err()
}

// GetUserEntry returns the applicant's cached entry.
func (r *LeaderboardRepository) GetUserEntry(ctx context.Context, applicantID int64) (*leaderboard.Entry, error) {
	query := `
		SELECT` + entryColumns + `
		FROM leaderboard_entries e
		JOIN applicants a ON a.id = e.applicant_id
		WHERE e.applicant_id = $1
	`

	return scanEntryRow(r.conn.QueryRow(ctx, query, applicantID))
}

// GetRealtimeEntry computes the applicant's standing live from the badge
// awards, not from the cached total_score column: score is the sum of awarded
// badge scores, rank is one plus the number of applicants strictly ahead,
// where ahead means a higher live score or the same score with earlier
// registration. A badge awarded a moment ago is reflected here before any
// rebuild runs.
func (r *LeaderboardRepository) GetRealtimeEntry(ctx context.Context, applicantID int64) (*leaderboard.Entry, error) {
	query := `
		WITH live AS (
			SELECT a.id AS applicant_id, a.public_key, a.created_at,
				COALESCE(SUM(b.score), 0) AS score
			FROM applicants a
			LEFT JOIN applicant_badges ab ON ab.applicant_id = a.id
			LEFT JOIN badges b ON b.id = ab.badge_id
			GROUP BY a.id
		)
		SELECT l.applicant_id, l.public_key, l.score,
			(SELECT COUNT(*) + 1
			 FROM live o
			 WHERE o.score > l.score
				OR (o.score = l.score AND o.created_at < l.created_at)
			) AS realtime_rank,
			e.previous_rank, l.created_at
		FROM live l
		JOIN leaderboard_entries e ON e.applicant_id = l.applicant_id
		WHERE l.applicant_id = $1
	`

	return scanEntryRow(r.conn.QueryRow(ctx, query, applicantID))
}

// Rebuild recomputes every entry inside one transaction: applicants missing
// an entry get one inserted (healing a registration whose AddUser never
// landed), total scores are set from the badge awards (not incremented, so
// repeated rebuilds are idempotent), the current ranks are archived as
// previous ranks, and new ranks are assigned by score descending with earlier
// registration breaking ties.
func (r *LeaderboardRepository) Rebuild(ctx context.Context) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		healMissing := `
			INSERT INTO leaderboard_entries (applicant_id, total_score, rank, previous_rank, updated_at)
			SELECT a.id, 0, 0, 0, NOW()
			FROM applicants a
			WHERE NOT EXISTS (
				SELECT 1 FROM leaderboard_entries e WHERE e.applicant_id = a.id
			)
		`
		if _, err := tx.Exec(ctx, healMissing); err != nil {
			return fmt.Errorf("failed to insert missing entries: %w", err)
		}

		setScores := `
			UPDATE leaderboard_entries e
			SET total_score = COALESCE(s.score, 0),
				updated_at = NOW()
			FROM (
				SELECT a.id AS applicant_id, COALESCE(SUM(b.score), 0) AS score
				FROM applicants a
				LEFT JOIN applicant_badges ab ON ab.applicant_id = a.id
				LEFT JOIN badges b ON b.id = ab.badge_id
				GROUP BY a.id
			) s
			WHERE s.applicant_id = e.applicant_id
		`
		if _, err := tx.Exec(ctx, setScores); err != nil {
			return fmt.Errorf("failed to recompute scores: %w", err)
		}

		reassignRanks := `
			UPDATE leaderboard_entries e
			SET previous_rank = e.rank,
				rank = ranked.new_rank
			FROM (
				SELECT e2.applicant_id,
					ROW_NUMBER() OVER (
						ORDER BY e2.total_score DESC, a.created_at ASC
					) AS new_rank
				FROM leaderboard_entries e2
				JOIN applicants a ON a.id = e2.applicant_id
			) ranked
			WHERE ranked.applicant_id = e.applicant_id
		`
		if _, err := tx.Exec(ctx, reassignRanks); err != nil {
			return fmt.Errorf("failed to reassign ranks: %w", err)
		}

		return nil
	})
}

// Count returns the number of leaderboard entries.
func (r *LeaderboardRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM leaderboard_entries`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count leaderboard entries: %w", err)
	}
	return count, nil
}

// scanEntry scans an entry from a multi-row result.
func scanEntry(rows pgx.Rows) (*leaderboard.Entry, error) {
	var e leaderboard.Entry
	err := rows.Scan(&e.ApplicantID, &e.PublicKey, &e.TotalScore,
		&e.Rank, &e.PreviousRank, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
	}
	return &e, nil
}

// scanEntryRow scans a single entry row.
func scanEntryRow(row pgx.Row) (*leaderboard.Entry, error) {
	var e leaderboard.Entry
	err := row.Scan(&e.ApplicantID, &e.PublicKey, &e.TotalScore,
		&e.Rank, &e.PreviousRank, &e.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
	}
	return &e, nil
}
