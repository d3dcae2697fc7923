package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/query"
)

// CalendarHandler serves GET /api/calendar/available-dates and
// /api/calendar/runs-by-date?date=YYYY-MM-DD (spec.md §4.9).
type CalendarHandler struct {
	query  *query.Service
	logger arbor.ILogger
}

func NewCalendarHandler(q *query.Service, logger arbor.ILogger) *CalendarHandler {
	return &CalendarHandler{query: q, logger: logger}
}

func (h *CalendarHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	kind, _, ok := segmentAfter(r.URL.Path, "/api/calendar/")
	if !ok {
		WriteError(w, http.StatusNotFound, "not found")
		return
	}

	switch kind {
	case "available-dates":
		dates, err := h.query.AvailableDates(r.Context())
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, dates)
	case "runs-by-date":
		date := r.URL.Query().Get("date")
		if date == "" {
			WriteError(w, http.StatusBadRequest, "missing required query parameter: date")
			return
		}
		runs, err := h.query.RunsByDate(r.Context(), date)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, runs)
	default:
		WriteError(w, http.StatusNotFound, "not found")
	}
}
