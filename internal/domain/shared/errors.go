// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyValue   = errors.New("value cannot be empty")

	// Persistence errors
	ErrPersistence = errors.New("persistence failure")

	// External service errors
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrTimeout             = errors.New("operation timeout")

	// Configuration errors
	ErrConfigurationMissing = errors.New("required configuration missing")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "applicant", "badge", "leaderboard"
	Op      string // Operation that failed, e.g., "Create", "Sync"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Applicant domain errors
var (
	ErrApplicantNotFound      = NewDomainError("applicant", "Find", ErrNotFound, "applicant not found")
	ErrApplicantAlreadyExists = NewDomainError("applicant", "Create", ErrAlreadyExists, "applicant already exists")
	ErrReferralCodeNotFound   = NewDomainError("applicant", "ResolveReferral", ErrNotFound, "referral code not found")
	ErrInvalidPublicKey       = NewDomainError("applicant", "Validate", ErrInvalidInput, "invalid public key")
	ErrInvalidEmail           = NewDomainError("applicant", "Validate", ErrInvalidInput, "invalid email address")
)

// Progression domain errors
var (
	ErrUnknownEventType = NewDomainError("progression", "Validate", ErrInvalidInput, "unknown progression event type")
)

// Badge domain errors
var (
	ErrBadgeNotFound    = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrInvalidOperation = NewDomainError("badge", "Validate", ErrInvalidInput, "invalid requirement operation")
)

// Leaderboard domain errors
var (
	ErrEntryNotFound = NewDomainError("leaderboard", "Find", ErrNotFound, "leaderboard entry not found")
)

// External service errors
var (
	ErrBalanceSourceUnavailable = NewDomainError("holdings", "Request", ErrUpstreamUnavailable, "balance source is unavailable")
	ErrMailerUnavailable        = NewDomainError("mailer", "Request", ErrUpstreamUnavailable, "mailing list service is unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue)
}

// IsUpstreamUnavailable checks if the error came from an external source.
func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrTimeout)
}
