package http

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// WALLET SIGNATURE AUTHENTICATION
// Applicant endpoints are authenticated by the wallet itself: the caller signs
// a timestamped message with the wallet's private key and sends
//
//	Authorization: Wallet <base58 public key>:<base64 signature>
//	X-Signed-Message: waitlist:<unix seconds>
//
// The middleware verifies the ed25519 signature against the public key and
// rejects stale timestamps. The verified public key becomes the caller
// identity for the request; there are no accounts or sessions.
// ══════════════════════════════════════════════════════════════════════════════

const (
	authScheme          = "Wallet"
	signedMessageHeader = "X-Signed-Message"
	signedMessagePrefix = "waitlist:"
)

type contextKey string

const (
	contextKeyPublicKey contextKey = "public_key"
	contextKeyRequestID contextKey = "request_id"
)

// requestIDFromContext returns the correlation ID assigned by the request ID
// middleware.
func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// PublicKeyFromContext returns the authenticated wallet public key, empty when
// the request did not pass wallet auth.
func PublicKeyFromContext(ctx context.Context) string {
	if pk, ok := ctx.Value(contextKeyPublicKey).(string); ok {
		return pk
	}
	return ""
}

// WalletAuth verifies wallet signatures on applicant endpoints.
type WalletAuth struct {
	// required toggles enforcement. When false the middleware still parses
	// the header when present, so local development works unsigned.
	required bool

	// maxAge bounds how old a signed timestamp may be.
	maxAge time.Duration
}

// NewWalletAuth creates a new WalletAuth middleware.
func NewWalletAuth(required bool, maxAge time.Duration) *WalletAuth {
	if maxAge == 0 {
		maxAge = 5 * time.Minute
	}
	return &WalletAuth{required: required, maxAge: maxAge}
}

// Middleware authenticates the request and injects the public key into the
// request context.
func (a *WalletAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		publicKey, status, err := a.authenticate(r)
		if err != nil {
			if !a.required && status == http.StatusUnauthorized {
				// Unsigned request in permissive mode: fall back to the
				// publicKey query parameter.
				publicKey = r.URL.Query().Get("publicKey")
			} else {
				writeError(w, status, err.Error())
				return
			}
		}

		ctx := context.WithValue(r.Context(), contextKeyPublicKey, publicKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate parses and verifies the auth headers. It returns the wallet
// public key, or the HTTP status and error to respond with.
func (a *WalletAuth) authenticate(r *http.Request) (string, int, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", http.StatusUnauthorized, fmt.Errorf("missing authorization header")
	}

	scheme, credentials, found := strings.Cut(header, " ")
	if !found || scheme != authScheme {
		return "", http.StatusBadRequest, fmt.Errorf("authorization scheme must be %q", authScheme)
	}

	publicKey, signature, found := strings.Cut(credentials, ":")
	if !found || publicKey == "" || signature == "" {
		return "", http.StatusBadRequest, fmt.Errorf("credentials must be <publicKey>:<signature>")
	}

	message := r.Header.Get(signedMessageHeader)
	if err := a.checkMessageAge(message); err != nil {
		return "", http.StatusUnauthorized, err
	}

	keyBytes, err := base58.Decode(publicKey)
	if err != nil || len(keyBytes) != ed25519.PublicKeySize {
		return "", http.StatusBadRequest, fmt.Errorf("malformed public key")
	}

	sigBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return "", http.StatusBadRequest, fmt.Errorf("malformed signature")
	}

	if !ed25519.Verify(ed25519.PublicKey(keyBytes), []byte(message), sigBytes) {
		return "", http.StatusUnauthorized, fmt.Errorf("signature verification failed")
	}

	return publicKey, 0, nil
}

// checkMessageAge validates the signed message format and timestamp.
func (a *WalletAuth) checkMessageAge(message string) error {
	raw, found := strings.CutPrefix(message, signedMessagePrefix)
	if !found {
		return fmt.Errorf("signed message must start with %q", signedMessagePrefix)
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("signed message timestamp is not a unix time")
	}

	age := time.Since(time.Unix(unix, 0))
	if age > a.maxAge || age < -a.maxAge {
		return fmt.Errorf("signed message expired")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// API KEY AUTHENTICATION
// Worker and admin endpoints present a shared API key in X-API-Key. Only the
// bcrypt hash of the key is configured on the server.
// ══════════════════════════════════════════════════════════════════════════════

const apiKeyHeader = "X-API-Key"

// APIKeyAuth verifies the worker/admin API key against its bcrypt hash.
type APIKeyAuth struct {
	keyHash []byte
}

// NewAPIKeyAuth creates a new APIKeyAuth middleware. An empty hash disables
// the protected endpoints entirely.
func NewAPIKeyAuth(keyHash string) *APIKeyAuth {
	return &APIKeyAuth{keyHash: []byte(keyHash)}
}

// Middleware rejects requests without a valid API key.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.keyHash) == 0 {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		if err := bcrypt.CompareHashAndPassword(a.keyHash, []byte(key)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PER-IP RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// Middleware rejects requests over the per-IP budget.
func (l *ipRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP, honoring forwarding headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
