package reconcile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/artifacts"
	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/reconcile"
)

type fakeURLLister struct {
	paths []string
}

func (f *fakeURLLister) ReferencedScreenshotPaths(ctx context.Context) ([]string, error) {
	return f.paths, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func TestCleanDeletesOnlyOrphans(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, nil)

	keptDir := filepath.Join(root, "2026-01-01T00-00-00-000Z__kept.com")
	orphanDir := filepath.Join(root, "2026-01-01T00-00-00-000Z__orphan.com")
	require.NoError(t, os.MkdirAll(keptDir, 0o755))
	require.NoError(t, os.MkdirAll(orphanDir, 0o755))

	lister := &fakeURLLister{paths: []string{filepath.Join(keptDir, "screenshot.png")}}
	r := reconcile.New(store, &fakePinger{}, lister, nil)

	result, err := r.Clean(context.Background(), false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Base(keptDir)}, result.Kept)
	assert.ElementsMatch(t, []string{filepath.Base(orphanDir)}, result.Orphans)
	assert.ElementsMatch(t, []string{filepath.Base(orphanDir)}, result.Deleted)

	_, statErr := os.Stat(orphanDir)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(keptDir)
	assert.NoError(t, statErr)
}

func TestCleanDryRunDeletesNothing(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, nil)

	orphanDir := filepath.Join(root, "2026-01-01T00-00-00-000Z__orphan.com")
	require.NoError(t, os.MkdirAll(orphanDir, 0o755))

	r := reconcile.New(store, &fakePinger{}, &fakeURLLister{}, nil)

	result, err := r.Clean(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, result.Orphans, 1)
	assert.Empty(t, result.Deleted)

	_, statErr := os.Stat(orphanDir)
	assert.NoError(t, statErr)
}

// TestCleanIsIdempotent is P7: running Clean twice in a row produces no
// error and no further deletions the second time.
func TestCleanIsIdempotent(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, nil)

	orphanDir := filepath.Join(root, "2026-01-01T00-00-00-000Z__orphan.com")
	require.NoError(t, os.MkdirAll(orphanDir, 0o755))

	r := reconcile.New(store, &fakePinger{}, &fakeURLLister{}, nil)

	first, err := r.Clean(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, first.Deleted, 1)

	second, err := r.Clean(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, second.Deleted)
	assert.Empty(t, second.Orphans)
}

func TestCleanAbortsWhenDatabaseUnreachable(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2026-01-01T00-00-00-000Z__x.com"), 0o755))

	r := reconcile.New(store, &fakePinger{err: common.ErrDatabaseUnavailable}, &fakeURLLister{}, nil)

	_, err := r.Clean(context.Background(), false)
	assert.ErrorIs(t, err, common.ErrDatabaseUnavailable)

	entries, _ := os.ReadDir(root)
	assert.Len(t, entries, 1)
}
