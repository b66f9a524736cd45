package applicant

import "context"

// Repository is the persistence contract for applicants.
//
// CreateOrFetch is the idempotent creation primitive: an insert that hits the
// unique constraint (duplicate public key, or a referral code collision) does
// not fail. The implementation re-reads and returns the existing row keyed
// by public key. Concurrent duplicate creation calls therefore converge on
// the same applicant.
type Repository interface {
	// CreateOrFetch inserts the applicant, or returns the existing row for
	// the same public key when the insert conflicts. The returned applicant
	// always carries the persisted ID and CreatedAt.
	CreateOrFetch(ctx context.Context, a *Applicant) (*Applicant, error)

	// GetByPublicKey returns the applicant, or shared.ErrNotFound.
	GetByPublicKey(ctx context.Context, publicKey string) (*Applicant, error)

	// GetByID returns the applicant, or shared.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Applicant, error)

	// GetByReferralCode resolves a referral code to its owner, or
	// shared.ErrNotFound. Referral codes are user input and untrusted.
	GetByReferralCode(ctx context.Context, code string) (*Applicant, error)

	// UpdateEmail sets the applicant's email.
	UpdateEmail(ctx context.Context, publicKey, email string) (*Applicant, error)

	// Count returns the total number of applicants.
	Count(ctx context.Context) (int64, error)

	// CountReferrals returns how many applicants were referred by the
	// applicant with the given internal ID.
	CountReferrals(ctx context.Context, id int64) (int, error)

	// ListPublicKeys returns every applicant public key, used by the
	// worker to drive the full-population badge sync.
	ListPublicKeys(ctx context.Context) ([]string, error)
}
