package service

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rehash-labs/erc7739-go/pkg/registry"
)

/*
Server exposes the defensive-rehashing engine over HTTP.

Verification Flow:
  POST /v1/verify:
    - Request: { accountId | account, hash, signature }
    - Resolves the account's owner, domain, and rehash policy (stored record
      or inline material), builds a per-call engine, and classifies the
      signature into a verdict
    - Response: { verdict, workflow, magicValue, digest, requestId }

  POST /v1/probe:
    - Runs the static support probe (sentinel hash, empty signature)
    - Response: { supported, magicValue, requestId }

Account Management:
  POST /v1/accounts:
    - Creates or replaces a stored account record; the service owns the
      created/updated timestamps
  GET /v1/accounts?accountId=...:
    - Fetches one record; without accountId, lists all records
  DELETE /v1/accounts?accountId=...:
    - Removes a record; idempotent

Operations:
  GET /healthz:
    - Liveness plus a registry backend ping; exempt from rate limiting

Every call is tagged with a fresh request id that is echoed in the response
body and in the structured logs. A shared token bucket guards all /v1
endpoints and answers 429 when exhausted.
*/

// Config holds the HTTP-facing settings of the verification service.
type Config struct {
	Port int
	// RateLimit is the sustained request budget per second across all /v1
	// endpoints; RateBurst is the momentary burst allowance.
	RateLimit float64
	RateBurst int
	// Backend names the registry backend for /healthz reporting.
	Backend string
}

// Server handles HTTP requests for the verification service.
type Server struct {
	config     Config
	store      registry.Store
	logger     *zap.Logger
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates a server over the given registry backend.
func NewServer(cfg Config, store registry.Store, logger *zap.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("registry store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %f", cfg.RateLimit)
	}
	if cfg.RateBurst < 1 {
		return nil, fmt.Errorf("rate burst must be at least 1, got %d", cfg.RateBurst)
	}

	s := &Server{
		config:  cfg,
		store:   store,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/verify", s.handleVerify)
	mux.HandleFunc("/v1/probe", s.handleProbe)
	mux.HandleFunc("/v1/accounts", s.handleAccounts)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.rateLimit(mux),
	}

	return s, nil
}

// Start starts the HTTP server in the background.
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.config.Port, "backend", s.config.Backend)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the HTTP handler (for testing).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// rateLimit applies the shared token bucket. The liveness endpoint is
// exempt so that orchestration probes keep passing under load.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" && !s.limiter.Allow() {
			s.logger.Sugar().Warnw("Rate limit exceeded", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Note: Handler implementations live in handlers.go
