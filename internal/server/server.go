// Package server exposes monitoring state over HTTP: status and alert
// queries, analysis records, Prometheus metrics and a live event stream.
// main() builds a Server, calls Run, done.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kmattern/basewatch/internal/alerts"
	"github.com/kmattern/basewatch/internal/events"
	"github.com/kmattern/basewatch/internal/monitor"
	"github.com/kmattern/basewatch/internal/notify"
)

// Config holds the HTTP server settings.
type Config struct {
	ListenAddr string
}

// Server is the assembled HTTP surface.
type Server struct {
	cfg    Config
	mon    *monitor.Monitor
	mgr    *alerts.Manager
	bus    *events.Bus
	router *notify.Router
	logger *zap.Logger

	startedAt  time.Time
	mux        *http.ServeMux
	httpServer *http.Server
}

// New assembles the HTTP surface. The notify router is optional and only
// feeds the status endpoint's channel list.
func New(cfg Config, mon *monitor.Monitor, mgr *alerts.Manager, bus *events.Bus, router *notify.Router, logger *zap.Logger) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8970"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:       cfg,
		mon:       mon,
		mgr:       mgr,
		bus:       bus,
		router:    router,
		logger:    logger,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.mux = mux

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// MountMCP mounts the MCP SSE transport at /mcp. Must be called before Run.
func (s *Server) MountMCP(h http.Handler) {
	s.mux.Handle("GET /mcp", h)
	s.mux.Handle("POST /mcp", h)
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting http server", zap.String("addr", s.cfg.ListenAddr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
