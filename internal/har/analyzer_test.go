package har_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/pumpkin/internal/har"
)

func TestAnalyzeHistogramAndFailedRequests(t *testing.T) {
	doc := `{
		"log": {
			"entries": [
				{"request": {"url": "https://example.com/a"}, "response": {"status": 200}},
				{"request": {"url": "https://example.com/b"}, "response": {"status": 200}},
				{"request": {"url": "https://example.com/missing"}, "response": {"status": 404}},
				{"request": {"url": "https://example.com/boom"}, "response": {"status": 500}},
				{"request": {"url": "https://example.com/boom2"}, "response": {"status": 500}},
				{"request": {"url": "https://example.com/dropped"}, "response": {"status": -1}}
			]
		}
	}`

	result := har.Analyze(strings.NewReader(doc), nil)

	assert.Equal(t, map[string]int{"200": 2, "404": 1, "500": 2}, result.HTTPResponseCodes)
	assert.Len(t, result.FailedRequests, 3)
	assert.Equal(t, 404, result.FailedRequests[0].StatusCode)
	assert.Equal(t, "Client Error", result.FailedRequests[0].Category)
	assert.Equal(t, 500, result.FailedRequests[1].StatusCode)
	assert.Equal(t, "Server Error", result.FailedRequests[1].Category)
}

func TestAnalyzeMalformedHarIsTotal(t *testing.T) {
	inputs := []string{
		``,
		`not json at all`,
		`{"log": {`,
		`{"log": {"entries": "not-an-array"}}`,
		`null`,
		string([]byte{0xff, 0xfe, 0x00, 0x01}),
	}

	for _, in := range inputs {
		result := har.Analyze(strings.NewReader(in), nil)
		assert.NotNil(t, result)
		assert.NotNil(t, result.HTTPResponseCodes)
	}
}

func TestAnalyzeFileMissing(t *testing.T) {
	result := har.AnalyzeFile("/nonexistent/path/network.har", nil)
	assert.Empty(t, result.HTTPResponseCodes)
	assert.Empty(t, result.FailedRequests)
}
