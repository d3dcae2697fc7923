package server

import (
	"net/http"

	"github.com/ternarybob/pumpkin/internal/handlers"
)

// setupRoutes configures all HTTP routes (spec.md §4.9).
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Runs
	mux.HandleFunc("/api/runs", s.runs.ListRuns)
	mux.HandleFunc("/api/runs/latest", s.runs.Latest)
	mux.HandleFunc("/api/runs/", s.runs.RunItem) // /{id} and /{id}/tests

	// API routes - Tests
	mux.HandleFunc("/api/tests/", s.tests.TestItem) // /{id} and /{id}/failed-requests

	// API routes - Stats
	mux.HandleFunc("/api/stats/", s.stats.Dispatch) // /{latest|slowest|fastest|errors}

	// API routes - Calendar
	mux.HandleFunc("/api/calendar/", s.calendar.Dispatch) // /available-dates, /runs-by-date

	// API routes - URLs
	mux.HandleFunc("/api/urls/autocomplete", s.urls.Autocomplete)
	mux.HandleFunc("/api/urls/", s.urls.HostItem) // /{host}/tests, /{host}/daily-averages

	// Health
	mux.HandleFunc("/health", s.health.Health)

	// Artifact static surface: screenshots/HAR files served read-only, no
	// authentication by default (spec.md §4.9 "out of core scope").
	mux.Handle("/test-history/", http.StripPrefix("/test-history/", http.FileServer(http.Dir(s.cfg.Artifacts.Root))))

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", handlers.NotFound)

	return mux
}
