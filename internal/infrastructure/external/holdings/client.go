// Package holdings implements the on-chain balance source client. It queries
// a wallet's token holdings and governance-staked balance, which feed the
// token_balance_check and staked_balance_check progression counters.
package holdings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
	"github.com/catalyst-hub/waitlist-backend/pkg/circuitbreaker"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the holdings client.
type ClientConfig struct {
	// BaseURL of the wallet holdings API.
	BaseURL string

	// StakedBaseURL of the staking stats API. Falls back to BaseURL when empty.
	StakedBaseURL string

	// APIKey is sent as the x-api-key header on holdings requests.
	APIKey string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// RateLimit is the sustained request rate (requests per second).
	RateLimit float64

	// RateLimitBurst is the burst size.
	RateLimitBurst int

	// BreakerThreshold is the consecutive failures before the circuit opens.
	BreakerThreshold int

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:          baseURL,
		Timeout:          10 * time.Second,
		RateLimit:        5,
		RateLimitBurst:   2,
		BreakerThreshold: 3,
		BreakerTimeout:   60 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// WalletHoldings is one wallet's balances keyed by token mint address.
type WalletHoldings struct {
	PublicKey     string
	TokenHoldings map[string]float64
	StakedJup     float64
}

// Client is the holdings API client. Requests pass through a token-bucket
// rate limiter and a circuit breaker; once the breaker opens, calls fail
// fast with shared.ErrBalanceSourceUnavailable until the source recovers.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger
}

// NewClient creates a new holdings API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.StakedBaseURL == "" {
		config.StakedBaseURL = config.BaseURL
	}

	log := config.Logger.With(logger.Component("holdings_client"))

	breaker := circuitbreaker.New("holdings-api",
		circuitbreaker.WithFailureThreshold(config.BreakerThreshold),
		circuitbreaker.WithTimeout(config.BreakerTimeout),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		}),
	)

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimitBurst),
		breaker: breaker,
		log:     log,
	}
}

// GetWalletHoldings fetches the wallet's token holdings and staked balance.
func (c *Client) GetWalletHoldings(ctx context.Context, publicKey string) (*WalletHoldings, error) {
	var holdingsResp holdingsResponse
	endpoint := c.config.BaseURL + "/ultra/v1/holdings/" + publicKey
	if err := c.get(ctx, endpoint, true, &holdingsResp); err != nil {
		return nil, err
	}

	var stakedResp stakedResponse
	endpoint = c.config.StakedBaseURL + "/v2/solana/jup/governance/staked/" + publicKey
	if err := c.get(ctx, endpoint, false, &stakedResp); err != nil {
		return nil, err
	}

	tokenHoldings := make(map[string]float64)
	for mint, accounts := range holdingsResp.Tokens {
		var total float64
		for _, acct := range accounts {
			total += acct.UIAmount
		}
		if total > 0 {
			tokenHoldings[mint] = total
		}
	}

	return &WalletHoldings{
		PublicKey:     publicKey,
		TokenHoldings: tokenHoldings,
		StakedJup:     stakedResp.StakedJup,
	}, nil
}

// GetTokenBalance returns the wallet's balance of one token mint, 0 when the
// wallet holds none.
func (c *Client) GetTokenBalance(ctx context.Context, publicKey, tokenAddress string) (float64, error) {
	wh, err := c.GetWalletHoldings(ctx, publicKey)
	if err != nil {
		return 0, err
	}
	return wh.TokenHoldings[tokenAddress], nil
}

// GetStakedTokenBalance returns the wallet's governance-staked balance.
func (c *Client) GetStakedTokenBalance(ctx context.Context, publicKey string) (float64, error) {
	var stakedResp stakedResponse
	endpoint := c.config.StakedBaseURL + "/v2/solana/jup/governance/staked/" + publicKey
	if err := c.get(ctx, endpoint, false, &stakedResp); err != nil {
		return 0, err
	}
	return stakedResp.StakedJup, nil
}

// get performs a rate-limited, breaker-guarded GET and decodes the JSON body.
func (c *Client) get(ctx context.Context, url string, withAPIKey bool, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("holdings: rate limiter: %w", err)
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if withAPIKey && c.config.APIKey != "" {
			req.Header.Set("x-api-key", c.config.APIKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return shared.WrapError("holdings", "Request", shared.ErrUpstreamUnavailable,
				"request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		c.log.Debug("holdings request",
			logger.String("url", url),
			logger.Int("status", resp.StatusCode),
			logger.Latency(time.Since(start)))

		if resp.StatusCode != http.StatusOK {
			return shared.NewDomainError("holdings", "Request", shared.ErrUpstreamUnavailable,
				fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256)))
		}

		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}

		return nil
	})

	if err == circuitbreaker.ErrCircuitOpen || err == circuitbreaker.ErrTooManyRequests {
		return shared.ErrBalanceSourceUnavailable
	}

	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
