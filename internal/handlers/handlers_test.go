package handlers_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/models"
	"github.com/ternarybob/pumpkin/internal/query"
	"github.com/ternarybob/pumpkin/internal/storage/sqlite"
)

func httpTestContext() context.Context {
	return context.Background()
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func newTestService(t *testing.T) (*query.Service, *sqlite.RunStore, *sqlite.UrlTestStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(dbPath), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runStore := sqlite.NewRunStore(db, nil)
	testStore := sqlite.NewUrlTestStore(db, nil)
	return query.New(runStore, testStore, nil), runStore, testStore
}

func sampleMeasurement(url, host string) *models.TestMeasurement {
	loadMs := 250.0
	return &models.TestMeasurement{
		URL: url, Hostname: host, Status: models.UrlTestStatusPassed,
		TotalPageLoadMs:   &loadMs,
		ResourcesByType:   map[string]int{"document": 1},
		HTTPResponseCodes: map[string]int{"200": 1},
		ScreenshotPath:    "/app/test-history/x__" + host + "/screenshot.png",
		HarPath:           "/app/test-history/x__" + host + "/network.har",
	}
}
