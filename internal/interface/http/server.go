// Package http implements the REST API for the waitlist backend: applicant
// registration and profile, the leaderboard, badges, and the worker/admin
// sync endpoints.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catalyst-hub/waitlist-backend/internal/application/command"
	"github.com/catalyst-hub/waitlist-backend/internal/application/query"
	"github.com/catalyst-hub/waitlist-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host is the address to bind (default "0.0.0.0").
	Host string

	// Port is the port to listen on (default 8080).
	Port int

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration for idle connections.
	IdleTimeout time.Duration

	// MaxHeaderBytes is the maximum size of request headers.
	MaxHeaderBytes int

	// RequireSignature enforces wallet signature auth on applicant
	// endpoints. Disabled in development.
	RequireSignature bool

	// MaxSignatureAge rejects signed timestamps older than this.
	MaxSignatureAge time.Duration

	// APIKeyHash is the bcrypt hash of the worker/admin API key.
	APIKeyHash string

	// RateLimitPerSecond is the per-IP request budget (0 disables).
	RateLimitPerSecond float64

	// RateLimitBurst is the per-IP burst size.
	RateLimitBurst int
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxSignatureAge:    5 * time.Minute,
		RateLimitPerSecond: 10,
		RateLimitBurst:     20,
	}
}

// Address returns the host:port the server binds to.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies contains everything the HTTP handlers call into.
type Dependencies struct {
	// Commands (CQRS write side)
	CreateApplicant    *command.CreateApplicantHandler
	UpdateEmail        *command.UpdateEmailHandler
	SyncProgressions   *command.SyncProgressionsHandler
	RebuildLeaderboard *command.RebuildLeaderboardHandler

	// Queries (CQRS read side)
	GetApplicant      *query.GetApplicantHandler
	GetApplicantCount *query.GetApplicantCountHandler
	GetUserRank       *query.GetUserRankHandler
	GetLeaderboard    *query.GetLeaderboardHandler
	GetBadges         *query.GetBadgesHandler

	// Health check targets. Nil entries are skipped.
	Database Pinger
	Cache    Pinger

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	log        *logger.Logger

	walletAuth  *WalletAuth
	apiKeyAuth  *APIKeyAuth
	rateLimiter *ipRateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config:     config,
		deps:       deps,
		router:     http.NewServeMux(),
		log:        deps.Logger,
		walletAuth: NewWalletAuth(config.RequireSignature, config.MaxSignatureAge),
		apiKeyAuth: NewAPIKeyAuth(config.APIKeyHash),
	}

	if s.log == nil {
		s.log = logger.Default()
	}
	s.log = s.log.With(logger.Component("http"))

	if config.RateLimitPerSecond > 0 {
		burst := config.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.rateLimiter = newIPRateLimiter(config.RateLimitPerSecond, burst)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.buildMiddlewareChain(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	wallet := s.walletAuth.Middleware
	apiKey := s.apiKeyAuth.Middleware

	// Public
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /api/applicants/count", s.handleGetApplicantCount)
	s.router.HandleFunc("GET /api/badges/groups", s.handleGetBadgeGroups)

	// Wallet-authenticated applicant endpoints
	s.router.Handle("POST /api/applicants", wallet(http.HandlerFunc(s.handleCreateApplicant)))
	s.router.Handle("GET /api/applicants", wallet(http.HandlerFunc(s.handleGetApplicant)))
	s.router.Handle("PATCH /api/applicants", wallet(http.HandlerFunc(s.handleUpdateEmail)))
	s.router.Handle("GET /api/leaderboard", wallet(http.HandlerFunc(s.handleGetUserRank)))
	s.router.Handle("GET /api/leaderboard/list", wallet(http.HandlerFunc(s.handleGetLeaderboardList)))
	s.router.Handle("GET /api/badges", wallet(http.HandlerFunc(s.handleGetBadges)))

	// Worker/admin endpoints
	s.router.Handle("GET /api/badges/sync", apiKey(http.HandlerFunc(s.handleSync)))
	s.router.Handle("POST /api/badges/sync", apiKey(http.HandlerFunc(s.handleSync)))
	s.router.Handle("POST /api/leaderboard/rebuild", apiKey(http.HandlerFunc(s.handleRebuildLeaderboard)))
}

// buildMiddlewareChain wraps the router with the outer middleware.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	h := handler
	h = s.loggingMiddleware(h)
	h = s.requestIDMiddleware(h)
	h = s.recoveryMiddleware(h)
	if s.rateLimiter != nil {
		h = s.rateLimiter.Middleware(h)
	}
	return h
}

// requestIDMiddleware assigns each request a correlation ID.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		ctx = logger.WithContext(ctx, s.log.WithRequestID(requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs every request with its status and latency.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.log.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.status),
			logger.Latency(time.Since(start)),
			logger.String("ip", clientIP(r)))
	})
}

// recoveryMiddleware turns panics into 500 responses.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic recovered",
					logger.Any("panic", rec),
					logger.String("path", r.URL.Path),
					logger.String("stack", string(debug.Stack())))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine and returns its error channel.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wired handler, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// errorBody is the JSON error shape every endpoint uses.
type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Status: status, Message: message})
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
