// Package server exposes the bot's observability API: REST endpoints for
// health, statistics, opportunities, allocation, and the trade journal,
// plus a WebSocket feed of live scan cycles. The API is read-mostly; the
// only mutation is the manual scan trigger.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coinarb/arbot/internal/server/handler"
	"github.com/coinarb/arbot/internal/server/middleware"
	"github.com/coinarb/arbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates the endpoint handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Engine     *handler.EngineHandler
	Allocation *handler.AllocationHandler
	Trades     *handler.TradesHandler
	Config     *handler.ConfigHandler
}

// Server is the HTTP + WebSocket observability server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New registers all routes and builds the middleware chain.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/stats", handlers.Engine.GetStats)
	mux.HandleFunc("GET /api/opportunities/recent", handlers.Engine.ListRecent)
	mux.HandleFunc("POST /api/scan", handlers.Engine.TriggerScan)
	mux.HandleFunc("GET /api/allocation", handlers.Allocation.GetAllocation)
	mux.HandleFunc("GET /api/trades/recent", handlers.Trades.ListTrades)
	mux.HandleFunc("GET /api/config", handlers.Config.GetConfig)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(20, 40)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// Start listens until the server errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
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
