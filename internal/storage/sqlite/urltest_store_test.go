package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/models"
)

func sampleMeasurement() *models.TestMeasurement {
	return &models.TestMeasurement{
		URL:               "https://example.com/",
		Hostname:          "example.com",
		Browser:           "chromium",
		UserAgent:         "Pumpkin/1.0",
		Status:            models.UrlTestStatusPassed,
		ResourcesByType:   map[string]int{"script": 2, "img": 1},
		HTTPResponseCodes: map[string]int{"200": 3, "404": 1},
		TotalResources:    3,
		ScreenshotPath:    "/tmp/screenshot.png",
		HarPath:           "/tmp/network.har",
	}
}

func TestInsertUrlTestCommitsAllTables(t *testing.T) {
	db := setupTestDB(t)
	runStore := NewRunStore(db, nil)
	testStore := NewUrlTestStore(db, nil)
	ctx := context.Background()

	run, err := runStore.CreateRun(ctx, 1, 1, nil)
	require.NoError(t, err)

	inserted, err := testStore.InsertUrlTest(ctx, run.ID, sampleMeasurement())
	require.NoError(t, err)
	assert.NotZero(t, inserted.ID)
	assert.Equal(t, map[string]int{"script": 2, "img": 1}, inserted.ResourcesByType)
	assert.Equal(t, map[string]int{"200": 3, "404": 1}, inserted.HTTPResponseCodes)

	histogram, err := testStore.StatusHistogram(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Len(t, histogram, 2)

	breakdown, err := testStore.ResourceTypeBreakdown(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Len(t, breakdown, 2)

	gotRun, err := runStore.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotRun.Passed)
	assert.Equal(t, 0, gotRun.Failed)
}

func TestInsertUrlTestCountsFailures(t *testing.T) {
	db := setupTestDB(t)
	runStore := NewRunStore(db, nil)
	testStore := NewUrlTestStore(db, nil)
	ctx := context.Background()

	run, err := runStore.CreateRun(ctx, 1, 1, nil)
	require.NoError(t, err)

	m := sampleMeasurement()
	m.Status = models.UrlTestStatusError
	errMsg := "navigation timeout"
	m.ErrorMessage = &errMsg

	_, err = testStore.InsertUrlTest(ctx, run.ID, m)
	require.NoError(t, err)

	gotRun, err := runStore.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, gotRun.Passed)
	assert.Equal(t, 1, gotRun.Failed)
}

func TestInsertUrlTestRejectsMissingRun(t *testing.T) {
	db := setupTestDB(t)
	testStore := NewUrlTestStore(db, nil)

	_, err := testStore.InsertUrlTest(context.Background(), 999, sampleMeasurement())
	assert.ErrorIs(t, err, common.ErrRunMissing)
}

func TestListFailedForRunUsesErrorView(t *testing.T) {
	db := setupTestDB(t)
	runStore := NewRunStore(db, nil)
	testStore := NewUrlTestStore(db, nil)
	ctx := context.Background()

	run, err := runStore.CreateRun(ctx, 2, 1, nil)
	require.NoError(t, err)

	passing := sampleMeasurement()
	passing.HTTPResponseCodes = map[string]int{"200": 1}
	_, err = testStore.InsertUrlTest(ctx, run.ID, passing)
	require.NoError(t, err)

	failing := sampleMeasurement()
	failing.Status = models.UrlTestStatusFailed
	_, err = testStore.InsertUrlTest(ctx, run.ID, failing)
	require.NoError(t, err)

	failed, err := testStore.ListFailedForRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, models.UrlTestStatusFailed, failed[0].Status)
}
