// Package server exposes the staking API over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flarexfi/flarestake/internal/server/handler"
	"github.com/flarexfi/flarestake/internal/server/middleware"
	"github.com/flarexfi/flarestake/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Positions *handler.PositionHandler
	Rewards   *handler.RewardsHandler
	Stake     *handler.StakeHandler
	Unstake   *handler.UnstakeHandler
	Stats     *handler.StatsHandler
}

// Server is the HTTP + WebSocket API server for the staking backend.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the middleware
// chain (CORS, logging, auth) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Position view.
	mux.HandleFunc("GET /api/positions/{owner}", handlers.Positions.ListPositions)

	// Rewards.
	mux.HandleFunc("GET /api/rewards/{owner}", handlers.Rewards.GetRewards)
	mux.HandleFunc("POST /api/rewards/claim", handlers.Rewards.Claim)

	// Stake intents.
	mux.HandleFunc("POST /api/stake", handlers.Stake.PrepareStake)
	mux.HandleFunc("GET /api/stake/{intentId}/status", handlers.Stake.IntentStatus)
	mux.HandleFunc("DELETE /api/stake/{intentId}", handlers.Stake.AbandonIntent)

	// Unstaking.
	mux.HandleFunc("POST /api/unstake", handlers.Unstake.Unstake)
	mux.HandleFunc("GET /api/unstake/{stakeId}/status", handlers.Unstake.Status)

	// Platform aggregates.
	mux.HandleFunc("GET /api/platform-stats", handlers.Stats.PlatformStats)
	mux.HandleFunc("GET /api/pools", handlers.Stats.Pools)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // unstake blocks through ledger confirmation
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening. It blocks until the server errors or is shut
// down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware sets CORS headers for the allowed origins. An empty list
// allows all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}
				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
