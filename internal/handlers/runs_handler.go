package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/query"
)

// RunsHandler serves GET /api/runs, /api/runs/latest, /api/runs/{id} and
// /api/runs/{id}/tests (spec.md §4.9).
type RunsHandler struct {
	query  *query.Service
	logger arbor.ILogger
}

func NewRunsHandler(q *query.Service, logger arbor.ILogger) *RunsHandler {
	return &RunsHandler{query: q, logger: logger}
}

// ListRuns handles GET /api/runs?limit=N.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	limit := intQueryParam(r, "limit", defaultLimit)
	runs, err := h.query.ListRuns(r.Context(), limit)
	if err != nil {
		WriteCoreError(w, err)
		return
	}
	WriteData(w, runs)
}

// Latest handles GET /api/runs/latest.
func (h *RunsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	run, err := h.query.GetLatestRun(r.Context())
	if err != nil {
		WriteCoreError(w, err)
		return
	}
	WriteData(w, run)
}

// RunItem dispatches GET /api/runs/{id} and GET /api/runs/{id}/tests.
func (h *RunsHandler) RunItem(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	id, rest, ok := pathIDAfter(r.URL.Path, "/api/runs/")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	switch rest {
	case "":
		run, err := h.query.GetRun(r.Context(), id)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, run)
	case "/tests":
		tests, err := h.query.ListUrlTestsForRun(r.Context(), id)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, tests)
	default:
		WriteError(w, http.StatusNotFound, "not found")
	}
}
