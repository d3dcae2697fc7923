// Package artifacts implements the Artifact Store (C1): it owns the
// test-history/<dirname>/ directories on disk and the two files each one
// holds, screenshot.png and network.har.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pumpkin/internal/common"
)

const (
	ScreenshotFileName = "screenshot.png"
	HarFileName        = "network.har"
)

// Store creates per-test directories and enumerates them for the
// Reconciler. It owns everything under Root, exclusively (spec §3
// "Ownership").
type Store struct {
	root   string
	logger arbor.ILogger
}

func New(root string, logger arbor.ILogger) *Store {
	return &Store{root: root, logger: logger}
}

// Root returns the artifact root directory.
func (s *Store) Root() string {
	return s.root
}

// AllocatedDir is the result of AllocateTestDir: the directory and its two
// canonical file paths.
type AllocatedDir struct {
	Dir            string
	ScreenshotPath string
	HarPath        string
}

// AllocateTestDir constructs the canonical directory name for url at now,
// creates it (recursive, idempotent), and returns the directory and its
// two artifact paths. Per spec §4.1, a caller must not reuse the same
// millisecond for the same URL; if the directory already exists this
// returns ErrArtifactConflict rather than silently reusing it.
func (s *Store) AllocateTestDir(url string, now time.Time) (*AllocatedDir, error) {
	dirname := CanonicalDirName(url, now)
	dir := filepath.Join(s.root, dirname)

	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("artifact directory already exists %q: %w", dirname, common.ErrArtifactConflict)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %q: %w", dir, errJoin(err, common.ErrArtifactIO))
	}

	return &AllocatedDir{
		Dir:            dir,
		ScreenshotPath: filepath.Join(dir, ScreenshotFileName),
		HarPath:        filepath.Join(dir, HarFileName),
	}, nil
}

// ListTestDirs enumerates direct children of Root whose names do not begin
// with "." (spec §4.1).
func (s *Store) ListTestDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list artifact root %q: %w", s.root, errJoin(err, common.ErrArtifactIO))
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// DeleteDir recursively deletes the named directory under Root. Used only
// by the Reconciler (C10) for orphans.
func (s *Store) DeleteDir(dirname string) error {
	dir := filepath.Join(s.root, dirname)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete artifact directory %q: %w", dir, errJoin(err, common.ErrArtifactIO))
	}
	return nil
}

// DirNameFromPath extracts the <dirname> path segment from an absolute
// screenshot/har path stored in url_tests (spec §3 "Path <-> row
// invariant I5": the last path segment's parent).
func DirNameFromPath(path string) string {
	return filepath.Base(filepath.Dir(path))
}

func errJoin(inner, sentinel error) error {
	return fmt.Errorf("%w: %v", sentinel, inner)
}

// replacementChars is the character set sanitized out of a URL when
// building a directory name (spec §3 "Directory name format").
const replacementChars = ":/?#[]@!$&'()*+,;="

// CanonicalDirName builds "<ISO-8601 timestamp, ':' and '.' -> '-'>__<sanitized-url>".
func CanonicalDirName(url string, now time.Time) string {
	ts := now.UTC().Format(time.RFC3339Nano)
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)

	u := strings.TrimPrefix(url, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimSuffix(u, "/")

	var b strings.Builder
	b.Grow(len(u))
	for _, r := range u {
		if strings.ContainsRune(replacementChars, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}

	return ts + "__" + b.String()
}
