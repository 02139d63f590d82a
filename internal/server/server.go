// Package server exposes the auction pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/server/handler"
	"github.com/alanyoungcy/scteauction/internal/server/middleware"
	"github.com/alanyoungcy/scteauction/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey and APIKeyHash enable authentication; the hash wins when both
	// are set. With neither, the API is open.
	APIKey          string
	APIKeyHash      string
	RateLimitPerMin int
}

// Handlers aggregates the HTTP handlers the server registers. Nil optional
// handlers leave their routes unregistered.
type Handlers struct {
	Health     *handler.HealthHandler
	Status     *handler.StatusHandler
	Auctions   *handler.AuctionHandler
	Results    *handler.ResultHandler
	Strategies *handler.StrategyHandler
	Users      *handler.UserHandler
	Markers    *handler.MarkerHandler   // optional
	Listener   *handler.ListenerHandler // optional
	Audit      *handler.AuditHandler    // optional
	Archive    *handler.ArchiveHandler  // optional
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in the middleware chain:
// CORS, logging, rate limiting, then auth. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewHandler(cfg, handlers, hub, limiter, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed and wrapped http.Handler.
func NewHandler(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("GET /api/auctions", handlers.Auctions.ListAuctions)
	mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.GetAuction)
	mux.HandleFunc("GET /api/auctions/{id}/bids", handlers.Auctions.ListBids)
	mux.HandleFunc("POST /api/auctions/{id}/execute", handlers.Auctions.ExecuteAuction)
	mux.HandleFunc("POST /api/auctions/{id}/cancel", handlers.Auctions.CancelAuction)

	mux.HandleFunc("GET /api/results", handlers.Results.ListResults)
	mux.HandleFunc("GET /api/results/stream", handlers.Results.StreamResults)
	mux.HandleFunc("GET /api/results/{id}", handlers.Results.GetResult)
	mux.HandleFunc("POST /api/results/{id}/payment", handlers.Results.UpdatePayment)

	mux.HandleFunc("GET /api/strategies", handlers.Strategies.ListStrategies)
	mux.HandleFunc("POST /api/strategies", handlers.Strategies.PutStrategy)
	mux.HandleFunc("GET /api/strategies/{id}", handlers.Strategies.GetStrategy)
	mux.HandleFunc("PUT /api/strategies/{id}/status", handlers.Strategies.SetStatus)
	mux.HandleFunc("DELETE /api/strategies/{id}", handlers.Strategies.DeleteStrategy)

	mux.HandleFunc("GET /api/users", handlers.Users.ListUsers)
	mux.HandleFunc("POST /api/users", handlers.Users.RegisterUser)
	mux.HandleFunc("POST /api/users/{id}/funds", handlers.Users.AddFunds)
	mux.HandleFunc("GET /api/users/{id}/budget", handlers.Users.GetBudget)

	if handlers.Markers != nil {
		mux.HandleFunc("GET /api/markers", handlers.Markers.ListMarkers)
		mux.HandleFunc("POST /api/markers/test", handlers.Markers.InjectTestMarker)
	}
	if handlers.Listener != nil {
		mux.HandleFunc("POST /api/listener/start", handlers.Listener.StartListener)
		mux.HandleFunc("POST /api/listener/stop", handlers.Listener.StopListener)
	}
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)
	}
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive", handlers.Archive.ListArchive)
		mux.HandleFunc("GET /api/archive/{key...}", handlers.Archive.GetArchived)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, cfg.APIKeyHash, "/api/health")(h)
	if limiter != nil && cfg.RateLimitPerMin > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server: starting", slog.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
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
