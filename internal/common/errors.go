package common

import "errors"

// Error kinds, per spec §7. Components return these wrapped with
// fmt.Errorf("...: %w", ErrX); callers test with errors.Is.
var (
	// ErrBadRequest marks input validation failures (bad timezone, malformed
	// date, missing required query parameter). Surfaced as HTTP 400.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound marks an absent entity. Surfaced as HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrDatabaseUnavailable marks a connection that could not be
	// established after the retry budget.
	ErrDatabaseUnavailable = errors.New("database unavailable")

	// ErrArtifactIO marks a filesystem failure writing a screenshot or HAR.
	ErrArtifactIO = errors.New("artifact io error")

	// ErrArtifactConflict marks a directory-name collision in the Artifact
	// Store (the same URL allocated twice at the same nanosecond timestamp).
	ErrArtifactConflict = errors.New("artifact directory conflict")

	// ErrDriverTimeout marks a browser driver job that exceeded its deadline.
	ErrDriverTimeout = errors.New("driver timeout")

	// ErrDriverError marks any non-timeout browser driver failure.
	ErrDriverError = errors.New("driver error")

	// ErrIngestPersistent marks an unrecoverable DB error for one url_test.
	ErrIngestPersistent = errors.New("ingest persistent error")

	// ErrRunAborted marks a scheduler-level failure that aborts the run.
	ErrRunAborted = errors.New("run aborted")

	// ErrRunMissing marks an insert whose foreign key (run id) does not
	// exist.
	ErrRunMissing = errors.New("run missing")

	// ErrInvalidTransition marks a rejected run status transition.
	ErrInvalidTransition = errors.New("invalid run status transition")
)
