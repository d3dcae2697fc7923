// Package reconcile implements the Reconciler (C10): an offline utility
// that enforces the path<->row invariant I5 by deleting on-disk artifact
// directories no url_tests row references (spec.md §4.10). Mirrors the
// teacher's small, single-purpose maintenance utilities, but runs as the
// `pumpkin reconcile` subcommand rather than as a cmd/ binary of its own.
package reconcile

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/artifacts"
	"github.com/ternarybob/pumpkin/internal/common"
)

// referencedPathsLister is the storage dependency Reconciler needs,
// satisfied by *sqlite.UrlTestStore.
type referencedPathsLister interface {
	ReferencedScreenshotPaths(ctx context.Context) ([]string, error)
}

// dbPinger lets Clean verify the database precondition (spec.md §4.10:
// "must be reachable; if not, abort").
type dbPinger interface {
	Ping(ctx context.Context) error
}

// Reconciler diffs on-disk artifact directories against the Data Store.
type Reconciler struct {
	store  *artifacts.Store
	db     dbPinger
	urls   referencedPathsLister
	logger arbor.ILogger
}

func New(store *artifacts.Store, db dbPinger, urls referencedPathsLister, logger arbor.ILogger) *Reconciler {
	return &Reconciler{store: store, db: db, urls: urls, logger: logger}
}

// Result is the outcome of one Clean pass.
type Result struct {
	Deleted []string
	Kept    []string
	Orphans []string
}

// Clean walks test-history/, diffs it against the rows that reference it,
// and deletes (or, in dryRun mode, just reports) every directory no row
// references (spec.md §4.10). Aborts before touching anything if the
// database is unreachable.
func (r *Reconciler) Clean(ctx context.Context, dryRun bool) (*Result, error) {
	if err := r.db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: reconciler aborting without deleting anything", common.ErrDatabaseUnavailable)
	}

	referenced, err := r.urls.ReferencedScreenshotPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load referenced screenshot paths: %w", err)
	}

	referencedDirs := make(map[string]bool, len(referenced))
	for _, p := range referenced {
		referencedDirs[artifacts.DirNameFromPath(p)] = true
	}

	onDisk, err := r.store.ListTestDirs()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifact directories: %w", err)
	}

	result := &Result{}
	for _, dirname := range onDisk {
		if referencedDirs[dirname] {
			result.Kept = append(result.Kept, dirname)
			continue
		}
		result.Orphans = append(result.Orphans, dirname)
	}

	if dryRun {
		if r.logger != nil {
			r.logger.Info().Int("orphans", len(result.Orphans)).Int("kept", len(result.Kept)).
				Msg("reconcile dry run complete")
		}
		return result, nil
	}

	for _, dirname := range result.Orphans {
		if err := r.store.DeleteDir(dirname); err != nil {
			if r.logger != nil {
				r.logger.Warn().Err(err).Str("dir", dirname).Msg("failed to delete orphaned artifact directory")
			}
			continue
		}
		result.Deleted = append(result.Deleted, dirname)
	}

	if r.logger != nil {
		r.logger.Info().Int("deleted", len(result.Deleted)).Int("kept", len(result.Kept)).
			Msg("reconcile complete")
	}
	return result, nil
}
