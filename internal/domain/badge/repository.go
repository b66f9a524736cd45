package badge

import (
	"context"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
)

// Repository is the persistence contract for the badge catalogue and awards.
type Repository interface {
	// ReadBadges returns the full catalogue annotated with the applicant's
	// unlock state. Badges the applicant has not earned come back with
	// IsUnlocked false and a nil UnlockedAt.
	ReadBadges(ctx context.Context, applicantID int64) ([]Badge, error)

	// ReadGroups returns all badge groups.
	ReadGroups(ctx context.Context) ([]Group, error)

	// ReadRequirements returns the requirements attached to badges for the
	// given event type.
	ReadRequirements(ctx context.Context, eventType progression.EventType) ([]Requirement, error)

	// AwardIfEligible grants, in one statement, every badge whose requirement
	// on eventType is satisfied by progress and that the applicant does not
	// already hold. Re-running with the same inputs is a no-op; existing
	// awards keep their original timestamp.
	AwardIfEligible(ctx context.Context, applicantID int64, eventType progression.EventType, progress int) error

	// ReadAwards returns the applicant's awards, newest first.
	ReadAwards(ctx context.Context, applicantID int64) ([]Award, error)
}
