// Package server assembles the HTTP API: route registration, middleware
// chain, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mintbay/marketd/internal/domain"
	"github.com/mintbay/marketd/internal/server/handler"
	"github.com/mintbay/marketd/internal/server/middleware"
	"github.com/mintbay/marketd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// DevFaucet registers the faucet route. Never enable in production.
	DevFaucet bool

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// the middleware.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Tokens    *handler.TokenHandler
	Listings  *handler.ListingHandler
	Purchases *handler.PurchaseHandler
	Treasury  *handler.TreasuryHandler
	Events    *handler.EventHandler
	Faucet    *handler.FaucetHandler
}

// Server is the HTTP + WebSocket API server for the marketplace.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, logging, CORS, auth) and attaches
// the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Token endpoints.
	mux.HandleFunc("POST /api/tokens", handlers.Tokens.MintToken)
	mux.HandleFunc("GET /api/tokens", handlers.Tokens.ListTokens)
	mux.HandleFunc("GET /api/tokens/{id}", handlers.Tokens.GetToken)

	// Listing endpoints.
	mux.HandleFunc("POST /api/listings", handlers.Listings.CreateListing)
	mux.HandleFunc("GET /api/listings", handlers.Listings.ListListings)
	mux.HandleFunc("GET /api/listings/{id}", handlers.Listings.GetListing)
	mux.HandleFunc("DELETE /api/listings/{id}", handlers.Listings.CancelListing)

	// Purchase endpoint.
	mux.HandleFunc("POST /api/purchases", handlers.Purchases.CreatePurchase)

	// Treasury endpoints.
	mux.HandleFunc("GET /api/treasury", handlers.Treasury.GetTreasury)
	mux.HandleFunc("POST /api/treasury/withdraw", handlers.Treasury.Withdraw)

	// Event log.
	mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)

	// The bank surface (balances and the faucet) is dev-only.
	if cfg.DevFaucet {
		mux.HandleFunc("GET /api/balances/{address}", handlers.Faucet.GetBalance)
		mux.HandleFunc("POST /api/faucet", handlers.Faucet.Credit)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	// Auth (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Per-IP rate limiting.
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	// Request logging.
	h = middleware.Logging(logger)(h)

	// CORS.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
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
