// Package server assembles the HTTP API: routes, middleware chain, and the
// WebSocket feed endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/castmarket/castmarket/internal/domain"
	"github.com/castmarket/castmarket/internal/server/handler"
	"github.com/castmarket/castmarket/internal/server/middleware"
	"github.com/castmarket/castmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// Rate limiting applies per caller when a limiter is supplied.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Questions  *handler.QuestionHandler
	Votes      *handler.VoteHandler
	Resolution *handler.ResolutionHandler
	Sweep      *handler.SweepHandler
}

// Server is the HTTP + WebSocket API for the prediction market engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain. A nil
// limiter disables rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Question registry.
	mux.HandleFunc("POST /api/questions", handlers.Questions.CreateQuestion)
	mux.HandleFunc("GET /api/questions", handlers.Questions.ListQuestions)
	mux.HandleFunc("GET /api/questions/{id}", handlers.Questions.GetQuestion)
	mux.HandleFunc("DELETE /api/questions/{id}", handlers.Questions.DeleteQuestion)

	// Staking and the vote journal.
	mux.HandleFunc("POST /api/questions/{id}/stake", handlers.Votes.Stake)
	mux.HandleFunc("POST /api/questions/{id}/preview", handlers.Votes.Preview)
	mux.HandleFunc("GET /api/questions/{id}/votes", handlers.Votes.ListVotes)
	mux.HandleFunc("GET /api/questions/{id}/position", handlers.Votes.GetPosition)
	mux.HandleFunc("GET /api/users/{user}/votes", handlers.Votes.ListUserVotes)

	// Resolution and expiration.
	mux.HandleFunc("POST /api/questions/{id}/end", handlers.Resolution.EndQuestion)
	mux.HandleFunc("POST /api/sweep", handlers.Sweep.TriggerSweep)

	// Live probability feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
	h = middleware.Logging(logger)(h)
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
		logger:     logger,
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
