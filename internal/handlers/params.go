package handlers

import (
	"net/http"
	"strconv"
	"strings"
)

const defaultLimit = 50

// intQueryParam reads a query parameter as an int, falling back to def when
// absent or unparsable.
func intQueryParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// pathIDAfter extracts the integer path segment immediately after prefix,
// e.g. pathIDAfter("/api/runs/42/tests", "/api/runs/") -> (42, "/tests", true).
func pathIDAfter(path, prefix string) (id int64, rest string, ok bool) {
	if !strings.HasPrefix(path, prefix) {
		return 0, "", false
	}
	remainder := path[len(prefix):]
	segment := remainder
	if idx := strings.Index(remainder, "/"); idx >= 0 {
		segment = remainder[:idx]
		rest = remainder[idx:]
	}
	parsed, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return parsed, rest, true
}

// segmentAfter extracts the first path segment after prefix, e.g.
// segmentAfter("/api/urls/example.com/tests", "/api/urls/") ->
// ("example.com", "/tests", true).
func segmentAfter(path, prefix string) (segment, rest string, ok bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	remainder := path[len(prefix):]
	if remainder == "" {
		return "", "", false
	}
	segment = remainder
	if idx := strings.Index(remainder, "/"); idx >= 0 {
		segment = remainder[:idx]
		rest = remainder[idx:]
	}
	return segment, rest, true
}
