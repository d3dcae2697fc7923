package query_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/models"
	"github.com/ternarybob/pumpkin/internal/query"
	"github.com/ternarybob/pumpkin/internal/storage/sqlite"
)

func newService(t *testing.T) (*query.Service, *sqlite.RunStore, *sqlite.UrlTestStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(dbPath), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runStore := sqlite.NewRunStore(db, nil)
	testStore := sqlite.NewUrlTestStore(db, nil)
	return query.New(runStore, testStore, nil), runStore, testStore
}

func measurementWithLoad(url, host string, loadMs float64) *models.TestMeasurement {
	return &models.TestMeasurement{
		URL: url, Hostname: host, Status: models.UrlTestStatusPassed,
		TestTimestamp:     time.Now().UTC(),
		TotalPageLoadMs:   &loadMs,
		ResourcesByType:   map[string]int{},
		HTTPResponseCodes: map[string]int{},
		ScreenshotPath:    "s.png", HarPath: "n.har",
	}
}

func TestListSlowestAndFastestInLatest(t *testing.T) {
	svc, runStore, testStore := newService(t)
	ctx := context.Background()

	run, err := runStore.CreateRun(ctx, 2, 1, nil)
	require.NoError(t, err)

	_, err = testStore.InsertUrlTest(ctx, run.ID, measurementWithLoad("https://a.com", "a.com", 1000))
	require.NoError(t, err)
	_, err = testStore.InsertUrlTest(ctx, run.ID, measurementWithLoad("https://b.com", "b.com", 200))
	require.NoError(t, err)

	slowest, err := svc.ListSlowestInLatest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, slowest, 2)
	assert.Equal(t, "a.com", slowest[0].Hostname)

	fastest, err := svc.ListFastestInLatest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fastest, 2)
	assert.Equal(t, "b.com", fastest[0].Hostname)
}

func TestUrlAutocompletePrefixMatch(t *testing.T) {
	svc, runStore, testStore := newService(t)
	ctx := context.Background()

	run, err := runStore.CreateRun(ctx, 2, 1, nil)
	require.NoError(t, err)

	_, err = testStore.InsertUrlTest(ctx, run.ID, measurementWithLoad("https://example.com", "example.com", 100))
	require.NoError(t, err)
	_, err = testStore.InsertUrlTest(ctx, run.ID, measurementWithLoad("https://example.org", "example.org", 100))
	require.NoError(t, err)
	_, err = testStore.InsertUrlTest(ctx, run.ID, measurementWithLoad("https://other.com", "other.com", 100))
	require.NoError(t, err)

	hosts, err := svc.UrlAutocomplete(ctx, "example", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"example.com", "example.org"}, hosts)
}

func TestDailyAverageLoadTimeRejectsBadTimezone(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.DailyAverageLoadTime(context.Background(), "example.com", 7, "not-a-timezone")
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestDailyAverageLoadTimeAcceptsUTC(t *testing.T) {
	svc, runStore, testStore := newService(t)
	ctx := context.Background()

	run, err := runStore.CreateRun(ctx, 1, 1, nil)
	require.NoError(t, err)
	_, err = testStore.InsertUrlTest(ctx, run.ID, measurementWithLoad("https://example.com", "example.com", 500))
	require.NoError(t, err)

	averages, err := svc.DailyAverageLoadTime(ctx, "example.com", 7, "UTC")
	require.NoError(t, err)
	require.Len(t, averages, 7)

	today := averages[len(averages)-1]
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), today.Date)
	assert.Equal(t, 500.0, today.AvgMs)
	assert.Equal(t, 1, today.Count)
}

// TestDailyAverageLoadTimeFillsGapDays covers spec.md §8 scenario 5: a day
// with no measurements still appears in the output as (date, 0, 0)
// instead of being omitted.
func TestDailyAverageLoadTimeFillsGapDays(t *testing.T) {
	svc, runStore, testStore := newService(t)
	ctx := context.Background()

	run, err := runStore.CreateRun(ctx, 1, 1, nil)
	require.NoError(t, err)
	_, err = testStore.InsertUrlTest(ctx, run.ID, measurementWithLoad("https://example.com", "example.com", 500))
	require.NoError(t, err)

	averages, err := svc.DailyAverageLoadTime(ctx, "example.com", 2, "UTC")
	require.NoError(t, err)
	require.Len(t, averages, 2)

	for _, day := range averages[:len(averages)-1] {
		assert.Equal(t, 0.0, day.AvgMs)
		assert.Equal(t, 0, day.Count)
	}
	today := averages[len(averages)-1]
	assert.Equal(t, 500.0, today.AvgMs)
	assert.Equal(t, 1, today.Count)
}
