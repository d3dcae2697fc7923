package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/har"
)

func TestWriteHarFileUsesSubResourceURLsNotPageURL(t *testing.T) {
	rec := newHarRecorder("https://example.com/")
	rec.entries = []harResponseRecord{
		{url: "https://example.com/", status: 200},
		{url: "https://cdn.example.com/app.js", status: 404},
		{url: "https://api.example.com/data", status: 500},
	}

	harPath := filepath.Join(t.TempDir(), "test.har")
	require.NoError(t, writeHarFile(harPath, rec))

	f, err := os.Open(harPath)
	require.NoError(t, err)
	defer f.Close()

	result := har.Analyze(f, nil)
	require.Len(t, result.FailedRequests, 2)

	for _, failed := range result.FailedRequests {
		assert.NotEqual(t, rec.url, failed.RequestURL,
			"failed request URL must be the sub-resource's own URL, not the page URL")
	}
	assert.ElementsMatch(t, []string{"https://cdn.example.com/app.js", "https://api.example.com/data"},
		[]string{result.FailedRequests[0].RequestURL, result.FailedRequests[1].RequestURL})
}
