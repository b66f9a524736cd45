// Package applicant contains the waitlist applicant aggregate and the
// referral code machinery. An applicant is identified by the wallet public
// key used to sign requests; the numeric ID is internal to persistence.
package applicant

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// ReferralCodeLength is the length of generated referral codes.
const ReferralCodeLength = 6

// referralCodeAlphabet contains the characters used in referral codes.
const referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Applicant is a registered waitlist member.
type Applicant struct {
	// ID is the internal persistence identifier.
	ID int64

	// PublicKey is the wallet public key (base58) the applicant signed up
	// with. Unique across applicants.
	PublicKey string

	// Email is optional and only set once the applicant shares it.
	Email string

	// ReferralCode is this applicant's own code, handed out to others.
	ReferralCode string

	// ReferredByID is the internal ID of the applicant whose code was used
	// at registration, zero when the applicant registered without one.
	ReferredByID int64

	// CreatedAt is the registration time. It doubles as the leaderboard
	// tiebreaker: earlier registration wins on equal score.
	CreatedAt time.Time
}

// WasReferred reports whether the applicant registered with a referral code.
func (a *Applicant) WasReferred() bool {
	return a.ReferredByID != 0
}

// Validate checks the applicant's invariants.
func (a *Applicant) Validate() error {
	if strings.TrimSpace(a.PublicKey) == "" {
		return shared.ErrInvalidPublicKey
	}
	if len(a.ReferralCode) != ReferralCodeLength {
		return shared.NewDomainError("applicant", "Validate", shared.ErrInvalidInput,
			fmt.Sprintf("referral code must be %d characters", ReferralCodeLength))
	}
	return nil
}

// ValidateEmail performs the minimal structural check used before an email
// update is persisted or pushed to the mailing list.
func ValidateEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return shared.ErrInvalidEmail
	}
	return nil
}

// New constructs an applicant with a freshly generated referral code.
func New(publicKey string, referredByID int64) (*Applicant, error) {
	if strings.TrimSpace(publicKey) == "" {
		return nil, shared.ErrInvalidPublicKey
	}

	code, err := GenerateReferralCode()
	if err != nil {
		return nil, err
	}

	return &Applicant{
		PublicKey:    publicKey,
		ReferralCode: code,
		ReferredByID: referredByID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// GenerateReferralCode returns a 6 character random alphanumeric code.
//
// Codes are not checked against existing ones before insertion; the unique
// constraint on applicants.referral_code catches the (vanishingly rare)
// collision, which surfaces through the same conflict path as a duplicate
// public key.
func GenerateReferralCode() (string, error) {
	buf := make([]byte, ReferralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate referral code: %w", err)
	}

	code := make([]byte, ReferralCodeLength)
	for i, b := range buf {
		code[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return string(code), nil
}
