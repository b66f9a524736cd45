package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionRepository implements progression.Recorder for PostgreSQL.
type ProgressionRepository struct {
	conn *Connection
}

// NewProgressionRepository creates a new ProgressionRepository.
func NewProgressionRepository(conn *Connection) *ProgressionRepository {
	return &ProgressionRepository{conn: conn}
}

// RecordEvent upserts the counter for (publicKey, eventType). The new value
// replaces the stored one; sources report current state, so a lower value is
// a legitimate update, not an error.
func (r *ProgressionRepository) RecordEvent(ctx context.Context, publicKey string, eventType progression.EventType, progress int) error {
	if !eventType.IsValid() {
		return shared.ErrUnknownEventType
	}

	query := `
		INSERT INTO applicant_progressions (applicant_id, event_type_id, progress, updated_at)
		SELECT a.id, $2, $3, $4
		FROM applicants a
		WHERE a.public_key = $1
		ON CONFLICT (applicant_id, event_type_id)
		DO UPDATE SET progress = EXCLUDED.progress, updated_at = EXCLUDED.updated_at
	`

	tag, err := r.conn.Exec(ctx, query, publicKey, eventType.ID(), progress, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record progression event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return shared.ErrApplicantNotFound
	}

	return nil
}

// ReadUserProgressions returns one counter per known event type. Event types
// the applicant has never progressed in come back with Progress 0.
func (r *ProgressionRepository) ReadUserProgressions(ctx context.Context, publicKey string) ([]progression.Counter, error) {
	query := `
		SELECT t.id, t.name, COALESCE(p.progress, 0)
		FROM progression_event_types t
		LEFT JOIN applicant_progressions p
			ON p.event_type_id = t.id
			AND p.applicant_id = (SELECT id FROM applicants WHERE public_key = $1)
		ORDER BY t.id
	`

	rows, err := r.conn.Query(ctx, query, publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read progressions: %w", err)
	}
	defer rows.Close()

	var counters []progression.Counter
	for rows.Next() {
		var (
			id       int
			name     string
			progress int
		)
		if err := rows.Scan(&id, &name, &progress); err != nil {
			return nil, fmt.Errorf("failed to scan progression row: %w", err)
		}

		eventType, err := progression.ParseEventType(id)
		if err != nil {
			return nil, err
		}

		counters = append(counters, progression.Counter{
			EventType: eventType,
			EventName: name,
			Progress:  progress,
		})
	}

	return counters, rows.Err()
}

// GetUserProgression returns the stored progress for a single event type,
// 0 when the applicant has no counter yet.
func (r *ProgressionRepository) GetUserProgression(ctx context.Context, publicKey string, eventType progression.EventType) (int, error) {
	if !eventType.IsValid() {
		return 0, shared.ErrUnknownEventType
	}

	query := `
		SELECT COALESCE((
			SELECT p.progress
			FROM applicant_progressions p
			JOIN applicants a ON a.id = p.applicant_id
			WHERE a.public_key = $1 AND p.event_type_id = $2
		), 0)
	`

	var progress int
	if err := r.conn.QueryRow(ctx, query, publicKey, eventType.ID()).Scan(&progress); err != nil {
		return 0, fmt.Errorf("failed to get progression: %w", err)
	}

	return progress, nil
}
