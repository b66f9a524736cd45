package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/badge"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// ReadBadges returns the full catalogue annotated with the applicant's
// unlock state.
func (r *BadgeRepository) ReadBadges(ctx context.Context, applicantID int64) ([]badge.Badge, error) {
	query := `
		SELECT b.id, b.title, b.description, b.score, b.group_id, b.created_at,
			   ab.created_at AS unlocked_at
		FROM badges b
		LEFT JOIN applicant_badges ab
			ON ab.badge_id = b.id AND ab.applicant_id = $1
		ORDER BY b.id
	`

	rows, err := r.conn.Query(ctx, query, applicantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read badges: %w", err)
	}
	defer rows.Close()

	var badges []badge.Badge
	for rows.Next() {
		var (
			b          badge.Badge
			groupID    sql.NullInt64
			unlockedAt sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.Score,
			&groupID, &b.CreatedAt, &unlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge row: %w", err)
		}

		b.GroupID = groupID.Int64
		if unlockedAt.Valid {
			b.IsUnlocked = true
			t := unlockedAt.Time
			b.UnlockedAt = &t
		}

		badges = append(badges, b)
	}

	return badges, rows.Err()
}

// ReadGroups returns all badge groups.
func (r *BadgeRepository) ReadGroups(ctx context.Context) ([]badge.Group, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT id, title, description, created_at FROM badge_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read badge groups: %w", err)
	}
	defer rows.Close()

	var groups []badge.Group
	for rows.Next() {
		var g badge.Group
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge group row: %w", err)
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// ReadRequirements returns the requirements attached to badges for the
// given event type.
func (r *BadgeRepository) ReadRequirements(ctx context.Context, eventType progression.EventType) ([]badge.Requirement, error) {
	if !eventType.IsValid() {
		return nil, shared.ErrUnknownEventType
	}

	query := `
		SELECT badge_id, event_type_id, operation, required_count
		FROM badge_requirements
		WHERE event_type_id = $1
		ORDER BY badge_id
	`

	rows, err := r.conn.Query(ctx, query, eventType.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to read badge requirements: %w", err)
	}
	defer rows.Close()

	var reqs []badge.Requirement
	for rows.Next() {
		var (
			req badge.Requirement
			id  int
			op  string
		)
		if err := rows.Scan(&req.BadgeID, &id, &op, &req.RequiredCount); err != nil {
			return nil, fmt.Errorf("failed to scan requirement row: %w", err)
		}

		req.EventType = progression.EventType(id)
		req.Operation = badge.Operation(op)
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// AwardIfEligible grants every badge whose requirement on eventType is
// satisfied by the given progress, in a single statement. The eligibility
// comparison lives in SQL so a fleet of workers evaluating concurrently
// still produces at most one award per (applicant, badge): ON CONFLICT DO
// NOTHING makes re-evaluation a no-op and preserves the original award time.
func (r *BadgeRepository) AwardIfEligible(ctx context.Context, applicantID int64, eventType progression.EventType, progress int) error {
	if !eventType.IsValid() {
		return shared.ErrUnknownEventType
	}

	query := `
		INSERT INTO applicant_badges (applicant_id, badge_id)
		SELECT $1, br.badge_id
		FROM badge_requirements br
		WHERE br.event_type_id = $2
		  AND (
			(br.operation = 'eq'  AND $3 = br.required_count) OR
			(br.operation = 'gte' AND $3 >= br.required_count)
		  )
		ON CONFLICT (applicant_id, badge_id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query, applicantID, eventType.ID(), progress)
	if err != nil {
		return fmt.Errorf("failed to award badges: %w", err)
	}

	return nil
}

// ReadAwards returns the applicant's awards, newest first.
func (r *BadgeRepository) ReadAwards(ctx context.Context, applicantID int64) ([]badge.Award, error) {
	query := `
		SELECT applicant_id, badge_id, created_at
		FROM applicant_badges
		WHERE applicant_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, applicantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read awards: %w", err)
	}
	defer rows.Close()

	var awards []badge.Award
	for rows.Next() {
		var a badge.Award
		if err := rows.Scan(&a.ApplicantID, &a.BadgeID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan award row: %w", err)
		}
		awards = append(awards, a)
	}

	return awards, rows.Err()
}
