// Package handlers implements the HTTP API (C9): a thin JSON facade over
// the Query Layer. Every response uses the envelope spec.md §4.9 requires:
// {success, data?, error?}.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/pumpkin/internal/common"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RequireMethod validates the request method, writing a 405 envelope and
// returning false if it doesn't match.
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// WriteData writes a success envelope carrying data.
func WriteData(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: data})
}

// WriteError writes a failure envelope with the given status and message.
// It never leaks internal error text to clients beyond this short message
// (spec.md §7 "never leaks internal exception text").
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	writeEnvelope(w, statusCode, envelope{Success: false, Error: message})
}

// WriteCoreError translates a core sentinel error into the right HTTP
// status and envelope (spec.md §7 "HTTP layer converts core errors to
// status codes").
func WriteCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrBadRequest):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// NotFound handles unmatched /api/ routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "no such endpoint: "+r.URL.Path)
}

func writeEnvelope(w http.ResponseWriter, statusCode int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(env)
}
