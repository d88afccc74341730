package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/server/handler"
	"github.com/oddsmux/oddsmux/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Per-client request budget; zero disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Optional handlers may be nil; their routes are simply not registered.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Scheduler *handler.SchedulerHandler
	Sync      *handler.SyncHandler
	Markets   *handler.MarketHandler
	Venues    *handler.VenueHandler
	Scan      *handler.ScanHandler
	Archives  *handler.ArchiveHandler
}

// Server is the headless HTTP API over the aggregation engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (auth, rate limiting, logging, CORS) wrapped around
// it. limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/stats", handlers.Status.GetStats)

	mux.HandleFunc("POST /api/scheduler/start", handlers.Scheduler.Start)
	mux.HandleFunc("POST /api/scheduler/stop", handlers.Scheduler.Stop)
	mux.HandleFunc("PUT /api/scheduler/config", handlers.Scheduler.UpdateConfig)

	mux.HandleFunc("POST /api/sync/markets", handlers.Sync.TriggerMarketSync)
	mux.HandleFunc("POST /api/sync/prices", handlers.Sync.TriggerPriceSync)
	mux.HandleFunc("GET /api/sync/log", handlers.Sync.ListLog)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{slug}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/venues", handlers.Venues.ListVenues)

	if handlers.Scan != nil {
		mux.HandleFunc("POST /api/scan", handlers.Scan.ScanPositions)
	}
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
	}

	// Innermost first: auth runs closest to the mux, CORS sees every
	// request including preflights.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
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
