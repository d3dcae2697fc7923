package artifacts_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/artifacts"
	"github.com/ternarybob/pumpkin/internal/common"
)

func TestCanonicalDirName(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	name := artifacts.CanonicalDirName("https://example.com/path?a=1&b=2", now)
	assert.Contains(t, name, "2026-01-02T03-04-05Z")
	assert.Contains(t, name, "__example.com_path_a_1_b_2")
	assert.NotContains(t, name, "://")
}

func TestAllocateTestDir(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, nil)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	alloc, err := store.AllocateTestDir("https://example.com", now)
	require.NoError(t, err)

	assert.DirExists(t, alloc.Dir)
	assert.Equal(t, filepath.Join(alloc.Dir, artifacts.ScreenshotFileName), alloc.ScreenshotPath)
	assert.Equal(t, filepath.Join(alloc.Dir, artifacts.HarFileName), alloc.HarPath)
}

func TestAllocateTestDirConflict(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, nil)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	_, err := store.AllocateTestDir("https://example.com", now)
	require.NoError(t, err)

	_, err = store.AllocateTestDir("https://example.com", now)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrArtifactConflict)
}

func TestListTestDirs(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, nil)

	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "b"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0o644))

	names, err := store.ListTestDirs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestListTestDirsMissingRoot(t *testing.T) {
	store := artifacts.New(filepath.Join(t.TempDir(), "missing"), nil)
	names, err := store.ListTestDirs()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDeleteDir(t *testing.T) {
	root := t.TempDir()
	store := artifacts.New(root, nil)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	alloc, err := store.AllocateTestDir("https://example.com", now)
	require.NoError(t, err)

	dirname := filepath.Base(alloc.Dir)
	require.NoError(t, store.DeleteDir(dirname))
	assert.NoDirExists(t, alloc.Dir)
}

func TestDirNameFromPath(t *testing.T) {
	p := "/app/test-history/2026-01-02T03-04-05Z__example.com/screenshot.png"
	assert.Equal(t, "2026-01-02T03-04-05Z__example.com", artifacts.DirNameFromPath(p))
}
