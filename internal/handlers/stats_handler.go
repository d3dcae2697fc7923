package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/query"
)

// StatsHandler serves GET /api/stats/{latest|slowest|fastest|errors}
// (spec.md §4.9).
type StatsHandler struct {
	query  *query.Service
	logger arbor.ILogger
}

func NewStatsHandler(q *query.Service, logger arbor.ILogger) *StatsHandler {
	return &StatsHandler{query: q, logger: logger}
}

func (h *StatsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	kind, _, ok := segmentAfter(r.URL.Path, "/api/stats/")
	if !ok {
		WriteError(w, http.StatusNotFound, "not found")
		return
	}
	limit := intQueryParam(r, "limit", defaultLimit)

	switch kind {
	case "latest":
		run, err := h.query.GetLatestRun(r.Context())
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, run)
	case "slowest":
		tests, err := h.query.ListSlowestInLatest(r.Context(), limit)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, tests)
	case "fastest":
		tests, err := h.query.ListFastestInLatest(r.Context(), limit)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, tests)
	case "errors":
		tests, err := h.query.ErrorsInLatest(r.Context())
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, tests)
	default:
		WriteError(w, http.StatusNotFound, "not found")
	}
}
