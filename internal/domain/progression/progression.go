package progression

import "context"

// Counter is the stored progress for one (applicant, event type) pair.
type Counter struct {
	// EventType is the progression source this counter belongs to.
	EventType EventType

	// EventName is the seeded name of the event type.
	EventName string

	// Progress is the latest known value. It may decrease between syncs
	// when the source reports current state (e.g. a balance that dropped).
	Progress int
}

// Recorder persists progression counters.
//
// RecordEvent uses replace semantics: the new value overwrites whatever was
// stored for the pair. There is deliberately no direction validation and no
// retry; persistence errors propagate to the caller.
type Recorder interface {
	// RecordEvent upserts the counter for (publicKey, eventType).
	RecordEvent(ctx context.Context, publicKey string, eventType EventType, progress int) error

	// ReadUserProgressions returns one Counter per known event type, with
	// Progress 0 where the applicant has no stored counter yet.
	ReadUserProgressions(ctx context.Context, publicKey string) ([]Counter, error)

	// GetUserProgression returns the stored progress for a single event
	// type, 0 when absent.
	GetUserProgression(ctx context.Context, publicKey string, eventType EventType) (int, error)
}
