// Package server exposes the evaluation API over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/server/handler"
	"github.com/alanyoungcy/polyprop/internal/server/middleware"
	"github.com/alanyoungcy/polyprop/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKeyHashes are bcrypt hashes of accepted keys. Empty disables auth.
	APIKeyHashes []string
	// RateLimit is requests per RateWindow per client IP. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Tiers    *handler.TiersHandler
	Quotes   *handler.QuoteHandler
	Accounts *handler.AccountHandler
	Payouts  *handler.PayoutHandler
	Admin    *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes and middleware registered.
// limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/ready", handlers.Health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/tiers", handlers.Tiers.List)

	// Liquidity Guard.
	mux.HandleFunc("POST /api/quotes", handlers.Quotes.Quote)
	mux.HandleFunc("GET /api/depth/{instrument}", handlers.Quotes.Depth)

	// Accounts.
	mux.HandleFunc("POST /api/accounts", handlers.Accounts.Open)
	mux.HandleFunc("GET /api/accounts/{id}", handlers.Accounts.Get)
	mux.HandleFunc("GET /api/accounts/{id}/consistency", handlers.Accounts.Consistency)
	mux.HandleFunc("POST /api/accounts/{id}/trades", handlers.Accounts.Settle)
	mux.HandleFunc("GET /api/accounts/{id}/trades", handlers.Accounts.Trades)
	mux.HandleFunc("GET /api/accounts/{id}/snapshots", handlers.Accounts.Snapshots)
	mux.HandleFunc("GET /api/accounts/{id}/violations", handlers.Accounts.Violations)
	mux.HandleFunc("POST /api/accounts/{id}/stage2", handlers.Accounts.BeginStage2)
	mux.HandleFunc("POST /api/accounts/{id}/partner", handlers.Accounts.PromotePartner)

	// Payouts.
	mux.HandleFunc("GET /api/accounts/{id}/payouts/preview", handlers.Payouts.Preview)
	mux.HandleFunc("POST /api/accounts/{id}/payouts", handlers.Payouts.Request)
	mux.HandleFunc("GET /api/accounts/{id}/payouts", handlers.Payouts.List)

	// Admin.
	mux.HandleFunc("GET /api/audit", handlers.Admin.Audit)
	mux.HandleFunc("GET /api/settlements", handlers.Admin.Settlements)
	mux.HandleFunc("GET /api/archives", handlers.Admin.Archives)
	mux.HandleFunc("GET /api/archives/object", handlers.Admin.ArchiveObject)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	window := cfg.RateWindow
	if window <= 0 {
		window = time.Minute
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	h = middleware.Auth(cfg.APIKeyHashes)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
