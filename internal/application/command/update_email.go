package command

import (
	"context"
	"fmt"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE EMAIL COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateEmailCommand sets or replaces an applicant's email.
type UpdateEmailCommand struct {
	PublicKey string
	Email     string
}

// Validate validates the command.
func (c UpdateEmailCommand) Validate() error {
	if c.PublicKey == "" {
		return fmt.Errorf("update_email: public_key must be provided")
	}
	return applicant.ValidateEmail(c.Email)
}

// MailingList is the outbound mailing list dependency. May be nil when the
// mailer is disabled.
type MailingList interface {
	UpsertMember(ctx context.Context, email string, applicantID int64, publicKey, referralCode string) error
}

// UpdateEmailHandler handles the UpdateEmailCommand.
type UpdateEmailHandler struct {
	applicantRepo applicant.Repository
	mailingList   MailingList
	log           *logger.Logger
}

// NewUpdateEmailHandler creates a new UpdateEmailHandler.
func NewUpdateEmailHandler(
	applicantRepo applicant.Repository,
	mailingList MailingList,
	log *logger.Logger,
) *UpdateEmailHandler {
	if log == nil {
		log = logger.Default()
	}

	return &UpdateEmailHandler{
		applicantRepo: applicantRepo,
		mailingList:   mailingList,
		log:           log.With(logger.Component("update_email")),
	}
}

// Handle persists the email and pushes the applicant to the mailing list.
// The mailing list push is best-effort: a provider failure is logged and the
// update still succeeds, since the stored email is the source of truth.
func (h *UpdateEmailHandler) Handle(ctx context.Context, cmd UpdateEmailCommand) (*applicant.Applicant, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	updated, err := h.applicantRepo.UpdateEmail(ctx, cmd.PublicKey, cmd.Email)
	if err != nil {
		return nil, fmt.Errorf("update_email: persist: %w", err)
	}

	if h.mailingList != nil {
		if err := h.mailingList.UpsertMember(ctx, updated.Email, updated.ID,
			updated.PublicKey, updated.ReferralCode); err != nil {
			h.log.Warn("mailing list upsert failed",
				logger.PublicKey(updated.PublicKey),
				logger.Err(err))
		}
	}

	return updated, nil
}
