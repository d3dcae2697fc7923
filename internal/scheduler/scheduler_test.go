package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/artifacts"
	"github.com/ternarybob/pumpkin/internal/browser"
	"github.com/ternarybob/pumpkin/internal/ingest"
	"github.com/ternarybob/pumpkin/internal/models"
	"github.com/ternarybob/pumpkin/internal/scheduler"
)

// countingStore is a thread-safe fake InsertUrlTest target, used so these
// tests exercise the real scheduler/ingestor concurrency without a real
// database.
type countingStore struct {
	mu     sync.Mutex
	nextID int64
}

func (c *countingStore) InsertUrlTest(ctx context.Context, runID int64, m *models.TestMeasurement) (*models.UrlTest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return &models.UrlTest{ID: c.nextID, RunID: runID, Status: m.Status, URL: m.URL}, nil
}

func newScheduler(t *testing.T, driver browser.Driver) *scheduler.Scheduler {
	t.Helper()
	store := artifacts.New(t.TempDir(), nil)
	ingestor := ingest.New(&countingStore{}, nil)
	return scheduler.New(driver, store, ingestor, nil)
}

// TestSchedulerNeverExceedsWorkerBound is P8: never more than W concurrent
// driver sessions in flight.
func TestSchedulerNeverExceedsWorkerBound(t *testing.T) {
	stub := &browser.StubDriver{Delay: 20 * time.Millisecond}
	s := newScheduler(t, stub)

	jobs := make([]scheduler.Job, 0, 20)
	for i := 0; i < 20; i++ {
		jobs = append(jobs, scheduler.Job{URL: "https://example.com/" + string(rune('a'+i)), Hostname: "example.com"})
	}

	allPassed, results, err := s.Run(context.Background(), 1, jobs, 4)
	require.NoError(t, err)
	assert.True(t, allPassed)
	assert.Len(t, results, 20)
	assert.LessOrEqual(t, stub.MaxConcurrent(), int64(4))
}

// TestSchedulerEmptyJobsReturnsAllPassedImmediately covers the empty-input
// edge case from spec.md §8.
func TestSchedulerEmptyJobsReturnsAllPassedImmediately(t *testing.T) {
	s := newScheduler(t, &browser.StubDriver{})

	allPassed, results, err := s.Run(context.Background(), 1, nil, 5)
	require.NoError(t, err)
	assert.True(t, allPassed)
	assert.Nil(t, results)
}

// TestSchedulerMoreWorkersThanJobsIsFine covers W > N: excess workers are
// simply never started.
func TestSchedulerMoreWorkersThanJobsIsFine(t *testing.T) {
	stub := &browser.StubDriver{Delay: time.Millisecond}
	s := newScheduler(t, stub)

	jobs := []scheduler.Job{{URL: "https://example.com/only", Hostname: "example.com"}}

	allPassed, results, err := s.Run(context.Background(), 1, jobs, 10)
	require.NoError(t, err)
	assert.True(t, allPassed)
	assert.Len(t, results, 1)
}

// TestSchedulerTimeoutMarksJobFailedNotAllPassed is P9: a job that blows
// its deadline is recorded, not dropped, and flips allPassed to false.
func TestSchedulerTimeoutMarksJobFailedNotAllPassed(t *testing.T) {
	stub := &browser.StubDriver{TimeoutURLs: map[string]bool{"https://example.com/slow": true}}
	s := newScheduler(t, stub)

	jobs := []scheduler.Job{{URL: "https://example.com/slow", Hostname: "example.com"}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	allPassed, results, err := s.Run(ctx, 1, jobs, 1)
	require.NoError(t, err)
	assert.False(t, allPassed)
	require.Len(t, results, 1)
	assert.Equal(t, models.UrlTestStatusTimeout, results[0].UrlTest.Status)
}

func TestSchedulerFailedURLRecordedAsError(t *testing.T) {
	stub := &browser.StubDriver{FailURLs: map[string]bool{"https://example.com/bad": true}}
	s := newScheduler(t, stub)

	jobs := []scheduler.Job{{URL: "https://example.com/bad", Hostname: "example.com"}}

	allPassed, results, err := s.Run(context.Background(), 1, jobs, 1)
	require.NoError(t, err)
	assert.False(t, allPassed)
	require.Len(t, results, 1)
	assert.Equal(t, models.UrlTestStatusError, results[0].UrlTest.Status)
}
