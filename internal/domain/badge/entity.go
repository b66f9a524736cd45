// Package badge defines badges, their requirements, and the eligibility
// rules that turn progression counters into awards.
package badge

import (
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// Operation is the comparison applied between a progression counter and a
// requirement's threshold. The string values are stored in the database.
type Operation string

const (
	// OpEquals awards only on an exact match.
	OpEquals Operation = "eq"

	// OpGreaterOrEqual awards once the counter reaches the threshold.
	OpGreaterOrEqual Operation = "gte"
)

// IsValid reports whether the operation is one of the known comparisons.
func (o Operation) IsValid() bool {
	return o == OpEquals || o == OpGreaterOrEqual
}

// Badge is a catalogue entry. Score feeds the leaderboard total once the
// badge is awarded.
type Badge struct {
	ID          int64
	Title       string
	Description string
	Score       int
	GroupID     int64
	CreatedAt   time.Time

	// IsUnlocked and UnlockedAt describe the badge from one applicant's
	// perspective when read through ReadBadges.
	IsUnlocked bool
	UnlockedAt *time.Time
}

// Group is a display grouping of badges.
type Group struct {
	ID          int64
	Title       string
	Description string
	CreatedAt   time.Time
}

// Requirement maps an event type and threshold to a badge. A badge may have
// zero or more requirements; with zero it is never auto-awarded.
type Requirement struct {
	BadgeID       int64
	EventType     progression.EventType
	Operation     Operation
	RequiredCount int
}

// Satisfied reports whether the given progress meets this requirement.
//
// Awards are monotonic: a later, lower progress value never revokes an
// existing award. That property is enforced at the storage layer (awards are
// never deleted), not here.
func (r Requirement) Satisfied(progress int) bool {
	switch r.Operation {
	case OpEquals:
		return progress == r.RequiredCount
	case OpGreaterOrEqual:
		return progress >= r.RequiredCount
	default:
		return false
	}
}

// Validate checks the requirement's invariants.
func (r Requirement) Validate() error {
	if !r.Operation.IsValid() {
		return shared.ErrInvalidOperation
	}
	if !r.EventType.IsValid() {
		return shared.ErrUnknownEventType
	}
	return nil
}

// Award records that an applicant unlocked a badge. At most one award exists
// per (applicant, badge); once granted it is never revoked and the original
// timestamp is never overwritten.
type Award struct {
	ApplicantID int64
	BadgeID     int64
	CreatedAt   time.Time
}
