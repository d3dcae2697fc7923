// Package server wires the HTTP API (C9) together: a bare net/http.ServeMux
// with manual path routing, matching the teacher's own routing style
// rather than a router library (no third-party mux anywhere in the pack).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/handlers"
	"github.com/ternarybob/pumpkin/internal/query"
)

// Server manages the HTTP server and routes.
type Server struct {
	cfg    *common.Config
	logger arbor.ILogger
	router *http.ServeMux
	server *http.Server

	runs     *handlers.RunsHandler
	tests    *handlers.TestsHandler
	stats    *handlers.StatsHandler
	calendar *handlers.CalendarHandler
	urls     *handlers.UrlsHandler
	health   *handlers.HealthHandler
}

// New creates a new HTTP server over the Query Layer and a database ping
// func (kept as a func rather than a concrete type so health checks are
// easy to exercise without a real database in tests).
func New(cfg *common.Config, q *query.Service, ping func() error, logger arbor.ILogger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		runs:     handlers.NewRunsHandler(q, logger),
		tests:    handlers.NewTestsHandler(q, logger),
		stats:    handlers.NewStatsHandler(q, logger),
		calendar: handlers.NewCalendarHandler(q, logger),
		urls:     handlers.NewUrlsHandler(q, logger),
		health:   handlers.NewHealthHandler(ping, logger),
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the fully wrapped mux, letting tests drive routing
// through httptest.NewServer without binding a real port.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info().Str("address", addr).Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
