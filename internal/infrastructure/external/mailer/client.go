// Package mailer implements the mailing list client. Applicants who share an
// email are upserted as subscribed members of the campaign list; the member
// URL is keyed by the MD5 of the lowercased email, per the provider's API.
package mailer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/leaderboard"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
	"github.com/catalyst-hub/waitlist-backend/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the mailing list client.
type ClientConfig struct {
	// BaseURL of the provider's API, e.g. https://us1.api.mailchimp.com/3.0
	BaseURL string

	// APIKey authenticates via basic auth (any username, key as password).
	APIKey string

	// ListID is the audience the members belong to.
	ListID string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int

	// Logger for structured logging.
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// memberRequest is the upsert payload. The merge field tags are fixed by the
// list's configuration: MMERGE1 = applicant ID, MMERGE2 = masked public key,
// MMERGE3 = referral code.
type memberRequest struct {
	EmailAddress string                 `json:"email_address"`
	Status       string                 `json:"status"`
	MergeFields  map[string]interface{} `json:"merge_fields"`
}

type errorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// Client talks to the mailing list provider. Transient failures are retried
// with backoff; callers treat any residual error as best-effort and never
// fail the originating request over it.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	log        *logger.Logger
}

// NewClient creates a new mailing list client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	retrier := retry.New(
		retry.WithMaxAttempts(max(config.MaxRetries, 1)),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithMaxDelay(10*time.Second),
		retry.WithJitter(0.2),
	)

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retrier:    retrier,
		log:        config.Logger.With(logger.Component("mailer_client")),
	}
}

// memberURL builds the member resource URL from the email's MD5 hash.
func (c *Client) memberURL(email string) string {
	hash := md5.Sum([]byte(strings.ToLower(email)))
	return fmt.Sprintf("%s/lists/%s/members/%x", c.config.BaseURL, c.config.ListID, hash)
}

// UpsertMember subscribes or updates the applicant on the mailing list.
func (c *Client) UpsertMember(ctx context.Context, email string, applicantID int64, publicKey, referralCode string) error {
	body := memberRequest{
		EmailAddress: email,
		Status:       "subscribed",
		MergeFields: map[string]interface{}{
			"MMERGE1": applicantID,
			"MMERGE2": leaderboard.MaskPublicKey(publicKey),
			"MMERGE3": referralCode,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("mailer: marshal member request: %w", err)
	}

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPut, c.memberURL(email), payload, nil)
	})
}

// DeleteMember removes the member from the list. A missing member counts as
// success.
func (c *Client) DeleteMember(ctx context.Context, email string) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodDelete, c.memberURL(email), nil, func(status int) bool {
			return status == http.StatusNotFound
		})
	})
}

// do executes one request. okAnyway, when set, lets a non-2xx status pass.
// 5xx responses and network errors are marked retryable; 4xx are permanent.
func (c *Client) do(ctx context.Context, method, url string, payload []byte, okAnyway func(int) bool) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("mailer: create request: %w", err))
	}
	req.SetBasicAuth("anystring", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(shared.WrapError("mailer", "Request",
			shared.ErrUpstreamUnavailable, "request failed", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if okAnyway != nil && okAnyway(resp.StatusCode) {
		return nil
	}

	detail := fmt.Sprintf("HTTP %d", resp.StatusCode)
	var errResp errorResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Detail != "" {
		detail = errResp.Detail
	}

	c.log.Warn("mailer request failed",
		logger.String("method", method),
		logger.Int("status", resp.StatusCode),
		logger.String("detail", detail))

	apiErr := shared.NewDomainError("mailer", "Request", shared.ErrUpstreamUnavailable, detail)
	if resp.StatusCode >= 500 {
		return retry.Retryable(apiErr)
	}
	return retry.Permanent(apiErr)
}
