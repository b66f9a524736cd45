// Package progression defines the progression counters that feed badge
// evaluation. A counter stores the latest known progress per applicant and
// event type; updates replace the previous value rather than accumulating,
// because most sources report current state (a balance), not history.
package progression

import "github.com/catalyst-hub/waitlist-backend/internal/domain/shared"

// EventType identifies one progression source.
//
// The integer values are part of the external contract: they are stored in
// the database and consumed by clients. The enumeration is append-only and
// identifiers must never be reassigned.
type EventType int

const (
	// EventRegistrationCompleted fires once when the applicant registers.
	EventRegistrationCompleted EventType = 1

	// EventTokenBalanceCheck tracks the applicant's wallet balance of the
	// campaign token.
	EventTokenBalanceCheck EventType = 2

	// EventMiningSeason tracks season mining progress.
	EventMiningSeason EventType = 3

	// EventLevelUp tracks companion level-up progress.
	EventLevelUp EventType = 4

	// EventStakedBalanceCheck tracks the applicant's staked token balance.
	EventStakedBalanceCheck EventType = 5

	// EventReferralCreated tracks how many applicants registered with this
	// applicant's referral code. Recomputed from the referral graph on sync.
	EventReferralCreated EventType = 6
)

// ID returns the stable integer identifier.
func (t EventType) ID() int {
	return int(t)
}

// String returns the canonical name as seeded in progression_event_types.
func (t EventType) String() string {
	switch t {
	case EventRegistrationCompleted:
		return "registration_completed"
	case EventTokenBalanceCheck:
		return "token_balance_check"
	case EventMiningSeason:
		return "mining_season"
	case EventLevelUp:
		return "level_up"
	case EventStakedBalanceCheck:
		return "staked_balance_check"
	case EventReferralCreated:
		return "referral_created"
	default:
		return "unknown"
	}
}

// IsValid reports whether the event type is one of the known identifiers.
func (t EventType) IsValid() bool {
	return t >= EventRegistrationCompleted && t <= EventReferralCreated
}

// ParseEventType converts a stored identifier back to an EventType.
func ParseEventType(id int) (EventType, error) {
	t := EventType(id)
	if !t.IsValid() {
		return 0, shared.ErrUnknownEventType
	}
	return t, nil
}

// AllEventTypes returns every known event type in identifier order.
func AllEventTypes() []EventType {
	return []EventType{
		EventRegistrationCompleted,
		EventTokenBalanceCheck,
		EventMiningSeason,
		EventLevelUp,
		EventStakedBalanceCheck,
		EventReferralCreated,
	}
}
