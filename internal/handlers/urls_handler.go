package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/query"
)

// UrlsHandler serves GET /api/urls/autocomplete, /api/urls/{host}/tests
// and /api/urls/{host}/daily-averages (spec.md §4.9).
type UrlsHandler struct {
	query  *query.Service
	logger arbor.ILogger
}

func NewUrlsHandler(q *query.Service, logger arbor.ILogger) *UrlsHandler {
	return &UrlsHandler{query: q, logger: logger}
}

// Autocomplete handles GET /api/urls/autocomplete?q=.
func (h *UrlsHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	prefix := r.URL.Query().Get("q")
	limit := intQueryParam(r, "limit", defaultLimit)
	hosts, err := h.query.UrlAutocomplete(r.Context(), prefix, limit)
	if err != nil {
		WriteCoreError(w, err)
		return
	}
	WriteData(w, hosts)
}

// HostItem dispatches GET /api/urls/{host}/tests and GET
// /api/urls/{host}/daily-averages.
func (h *UrlsHandler) HostItem(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	host, rest, ok := segmentAfter(r.URL.Path, "/api/urls/")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid url path")
		return
	}

	switch rest {
	case "/tests":
		limit := intQueryParam(r, "limit", defaultLimit)
		tests, err := h.query.TestsForUrl(r.Context(), host, limit)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, tests)
	case "/daily-averages":
		days := intQueryParam(r, "days", 7)
		tz := r.URL.Query().Get("timezone")
		if tz == "" {
			tz = "UTC"
		}
		averages, err := h.query.DailyAverageLoadTime(r.Context(), host, days, tz)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, averages)
	case "/trend":
		limit := intQueryParam(r, "limit", defaultLimit)
		tests, err := h.query.DomainTrend(r.Context(), host, limit)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, tests)
	default:
		WriteError(w, http.StatusNotFound, "not found")
	}
}
