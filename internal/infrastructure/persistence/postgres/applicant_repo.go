package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICANT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ApplicantRepository implements applicant.Repository for PostgreSQL.
type ApplicantRepository struct {
	conn *Connection
}

// NewApplicantRepository creates a new ApplicantRepository.
func NewApplicantRepository(conn *Connection) *ApplicantRepository {
	return &ApplicantRepository{conn: conn}
}

const applicantColumns = `id, public_key, email, referral_code, referred_by_id, created_at`

// CreateOrFetch inserts the applicant, or returns the existing row when the
// insert hits a unique constraint. Both the public key and the referral code
// are unique; either conflict resolves to a re-read by public key, so
// concurrent registrations for the same wallet converge on one row.
func (r *ApplicantRepository) CreateOrFetch(ctx context.Context, a *applicant.Applicant) (*applicant.Applicant, error) {
	query := `
		INSERT INTO applicants (public_key, email, referral_code, referred_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + applicantColumns

	var referredBy sql.NullInt64
	if a.ReferredByID != 0 {
		referredBy = sql.NullInt64{Int64: a.ReferredByID, Valid: true}
	}

	var email sql.NullString
	if a.Email != "" {
		email = sql.NullString{String: a.Email, Valid: true}
	}

	row := r.conn.QueryRow(ctx, query,
		a.PublicKey, email, a.ReferralCode, referredBy, a.CreatedAt)

	created, err := scanApplicant(row)
	if err == nil {
		return created, nil
	}

	if IsUniqueViolation(err) {
		existing, getErr := r.GetByPublicKey(ctx, a.PublicKey)
		if getErr != nil {
			return nil, fmt.Errorf("failed to fetch applicant after conflict: %w", getErr)
		}
		return existing, nil
	}

	return nil, fmt.Errorf("failed to create applicant: %w", err)
}

// GetByPublicKey returns an applicant by wallet public key.
func (r *ApplicantRepository) GetByPublicKey(ctx context.Context, publicKey string) (*applicant.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE public_key = $1`

	row := r.conn.QueryRow(ctx, query, publicKey)
	return scanApplicant(row)
}

// GetByID returns an applicant by internal ID.
func (r *ApplicantRepository) GetByID(ctx context.Context, id int64) (*applicant.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return scanApplicant(row)
}

// GetByReferralCode resolves a referral code to its owner.
func (r *ApplicantRepository) GetByReferralCode(ctx context.Context, code string) (*applicant.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE referral_code = $1`

	row := r.conn.QueryRow(ctx, query, code)

	a, err := scanApplicant(row)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrReferralCodeNotFound
		}
		return nil, err
	}
	return a, nil
}

// UpdateEmail sets the applicant's email and returns the updated row.
func (r *ApplicantRepository) UpdateEmail(ctx context.Context, publicKey, email string) (*applicant.Applicant, error) {
	query := `
		UPDATE applicants SET email = $2
		WHERE public_key = $1
		RETURNING ` + applicantColumns

	row := r.conn.QueryRow(ctx, query, publicKey, email)
	return scanApplicant(row)
}

// Count returns the total number of applicants.
func (r *ApplicantRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM applicants`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count applicants: %w", err)
	}
	return count, nil
}

// CountReferrals returns how many applicants were referred by the given one.
func (r *ApplicantRepository) CountReferrals(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM applicants WHERE referred_by_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

// ListPublicKeys returns every applicant public key in registration order.
func (r *ApplicantRepository) ListPublicKeys(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT public_key FROM applicants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list public keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan public key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// scanApplicant scans a single applicant row.
func scanApplicant(row pgx.Row) (*applicant.Applicant, error) {
	var (
		a          applicant.Applicant
		email      sql.NullString
		referredBy sql.NullInt64
	)

	err := row.Scan(&a.ID, &a.PublicKey, &email, &a.ReferralCode, &referredBy, &a.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrApplicantNotFound
		}
		return nil, fmt.Errorf("failed to scan applicant: %w", err)
	}

	a.Email = email.String
	a.ReferredByID = referredBy.Int64

	return &a, nil
}
