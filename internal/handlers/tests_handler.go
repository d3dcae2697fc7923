package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/query"
)

// TestsHandler serves GET /api/tests/{id} and
// /api/tests/{id}/failed-requests (spec.md §4.9).
type TestsHandler struct {
	query  *query.Service
	logger arbor.ILogger
}

func NewTestsHandler(q *query.Service, logger arbor.ILogger) *TestsHandler {
	return &TestsHandler{query: q, logger: logger}
}

// TestItem dispatches GET /api/tests/{id} and GET
// /api/tests/{id}/failed-requests.
func (h *TestsHandler) TestItem(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	id, rest, ok := pathIDAfter(r.URL.Path, "/api/tests/")
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid test id")
		return
	}
	switch rest {
	case "":
		t, err := h.query.GetUrlTest(r.Context(), id)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, t)
	case "/failed-requests":
		failed, err := h.query.GetFailedRequestsForTest(r.Context(), id)
		if err != nil {
			WriteCoreError(w, err)
			return
		}
		WriteData(w, failed)
	default:
		WriteError(w, http.StatusNotFound, "not found")
	}
}
