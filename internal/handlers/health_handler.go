package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
)

// HealthHandler serves GET /health (spec.md §4.9: "{status,
// database: connected|disconnected}").
type HealthHandler struct {
	ping   func() error
	logger arbor.ILogger
}

// NewHealthHandler takes a ping func rather than a concrete *sqlite.DB so
// tests can simulate a disconnected database without opening a real file.
func NewHealthHandler(ping func() error, logger arbor.ILogger) *HealthHandler {
	return &HealthHandler{ping: ping, logger: logger}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	resp := healthResponse{Status: "ok", Database: "connected"}
	statusCode := http.StatusOK
	if err := h.ping(); err != nil {
		resp = healthResponse{Status: "degraded", Database: "disconnected"}
		statusCode = http.StatusInternalServerError
		if h.logger != nil {
			h.logger.Warn().Err(err).Msg("health check: database unreachable")
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
