// Package leaderboard defines the ranked standings derived from badge
// scores. An applicant's total score is the sum of the scores of their
// awarded badges; rank orders by score descending with earlier registration
// breaking ties.
package leaderboard

import (
	"fmt"
	"time"
)

// maskVisibleChars is how many characters survive on each side of a masked
// public key.
const maskVisibleChars = 4

// Entry is one leaderboard row.
//
// Rank and PreviousRank are the cached standings written by the last rebuild;
// they can lag behind TotalScore until the next rebuild runs. Realtime rank
// is computed on read, see Repository.GetRealtimeEntry.
type Entry struct {
	ApplicantID  int64
	PublicKey    string
	TotalScore   int
	Rank         int
	PreviousRank int
	CreatedAt    time.Time
}

// RankDelta returns how many positions the applicant moved since the
// previous rebuild. Positive means the applicant climbed.
func (e Entry) RankDelta() int {
	if e.PreviousRank == 0 {
		return 0
	}
	return e.PreviousRank - e.Rank
}

// MaskPublicKey abbreviates a public key for public display: the first and
// last four characters joined by an ellipsis. Keys of eight characters or
// fewer are returned unchanged.
func MaskPublicKey(publicKey string) string {
	if len(publicKey) <= 2*maskVisibleChars {
		return publicKey
	}
	return fmt.Sprintf("%s...%s",
		publicKey[:maskVisibleChars],
		publicKey[len(publicKey)-maskVisibleChars:])
}
