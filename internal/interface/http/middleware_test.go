package http

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

// signedRequest builds a request carrying a valid wallet signature for the
// given key pair.
func signedRequest(t *testing.T, pub ed25519.PublicKey, priv ed25519.PrivateKey, at time.Time) *http.Request {
	t.Helper()

	message := fmt.Sprintf("%s%d", signedMessagePrefix, at.Unix())
	signature := ed25519.Sign(priv, []byte(message))

	r := httptest.NewRequest(http.MethodGet, "/api/applicants", nil)
	r.Header.Set("Authorization", fmt.Sprintf("%s %s:%s",
		authScheme, base58.Encode(pub), base64.StdEncoding.EncodeToString(signature)))
	r.Header.Set(signedMessageHeader, message)
	return r
}

func capturePublicKey(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = PublicKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestWalletAuthAcceptsValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := NewWalletAuth(true, 5*time.Minute)
	var captured string
	handler := auth.Middleware(capturePublicKey(&captured))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, pub, priv, time.Now()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, base58.Encode(pub), captured)
}

func TestWalletAuthRejectsStaleTimestamp(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := NewWalletAuth(true, 5*time.Minute)
	handler := auth.Middleware(capturePublicKey(new(string)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, pub, priv, time.Now().Add(-time.Hour)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWalletAuthRejectsForeignSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := NewWalletAuth(true, 5*time.Minute)
	handler := auth.Middleware(capturePublicKey(new(string)))

	// Signed by a different key than the one presented.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, pub, otherPriv, time.Now()))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWalletAuthMalformedRequests(t *testing.T) {
	auth := NewWalletAuth(true, 5*time.Minute)
	handler := auth.Middleware(capturePublicKey(new(string)))

	cases := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
	}{
		{"missing header", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong scheme", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer abc")
		}, http.StatusBadRequest},
		{"missing signature part", func(r *http.Request) {
			r.Header.Set("Authorization", "Wallet onlykey")
		}, http.StatusBadRequest},
		{"bad base58 key", func(r *http.Request) {
			r.Header.Set("Authorization", "Wallet 0OIl:c2ln")
			r.Header.Set(signedMessageHeader, fmt.Sprintf("waitlist:%d", time.Now().Unix()))
		}, http.StatusBadRequest},
		{"bad message prefix", func(r *http.Request) {
			r.Header.Set("Authorization", "Wallet key:sig")
			r.Header.Set(signedMessageHeader, "hello:123")
		}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/applicants", nil)
			tc.setup(r)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestWalletAuthPermissiveModeFallsBackToQueryParam(t *testing.T) {
	auth := NewWalletAuth(false, 5*time.Minute)
	var captured string
	handler := auth.Middleware(capturePublicKey(&captured))

	r := httptest.NewRequest(http.MethodGet, "/api/applicants?publicKey=wallet-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wallet-1", captured)
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := NewAPIKeyAuth(string(hash))
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/leaderboard/rebuild", nil)
		r.Header.Set(apiKeyHeader, "secret-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/leaderboard/rebuild", nil)
		r.Header.Set(apiKeyHeader, "guess")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/leaderboard/rebuild", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no hash configured hides the endpoint", func(t *testing.T) {
		disabled := NewAPIKeyAuth("")
		h := disabled.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		r := httptest.NewRequest(http.MethodPost, "/api/leaderboard/rebuild", nil)
		r.Header.Set(apiKeyHeader, "anything")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	assert.Equal(t, "203.0.113.7", clientIP(r))
}

func TestDomainErrorMapping(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{})

	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", shared.ErrApplicantNotFound, http.StatusNotFound},
		{"validation", shared.ErrInvalidEmail, http.StatusBadRequest},
		{"unauthorized", shared.ErrUnauthorized, http.StatusUnauthorized},
		{"upstream", shared.ErrBalanceSourceUnavailable, http.StatusBadGateway},
		{"internal detail hidden", errors.New("pq: column does not exist"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/applicants", nil)
			s.writeDomainError(rec, r, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)

			var body errorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.wantStatus, body.Status)
			if tc.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Message)
			}
		})
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := newIPRateLimiter(1, 2)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
