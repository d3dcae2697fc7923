// Package runs implements the Run Coordinator (C6): it owns the lifecycle
// of a single batch run, from creation through its terminal status, and
// the explicit-run-context rule spec.md §9 calls for ("no process-global
// 'latest run' cache").
package runs

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/models"
	"github.com/ternarybob/pumpkin/internal/storage/sqlite"
)

// Coordinator creates and finalizes runs against the Data Store.
type Coordinator struct {
	store  *sqlite.RunStore
	logger arbor.ILogger
}

func New(store *sqlite.RunStore, logger arbor.ILogger) *Coordinator {
	return &Coordinator{store: store, logger: logger}
}

// CreateRun opens a new run in RUNNING with the given declared target
// count and worker count (spec.md §4.6).
func (c *Coordinator) CreateRun(ctx context.Context, declaredTargetCount, requestedWorkers int, notes *string) (*models.Run, error) {
	run, err := c.store.CreateRun(ctx, declaredTargetCount, requestedWorkers, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if c.logger != nil {
		c.logger.Info().Str("run_uuid", run.UUID).Int("targets", declaredTargetCount).
			Int("workers", requestedWorkers).Msg("run created")
	}
	return run, nil
}

// FinalizeRun moves a run to its terminal status, deriving COMPLETED vs
// PARTIAL from the literal predicate spec.md §4.6 gives: COMPLETED iff
// `failed == 0`, PARTIAL otherwise. A run where some declared targets
// never produced a row at all (dropped before insertion) still reads
// COMPLETED under this rule as long as nothing that *did* insert failed;
// see DESIGN.md's "Open Questions" for why this reading was chosen over
// comparing against DeclaredTargetCount. A caller that aborted the run
// outright (SIGINT, crash containment exhausted) should call AbortRun
// instead.
func (c *Coordinator) FinalizeRun(ctx context.Context, runID int64, durationMs int64) error {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	status := models.RunStatusCompleted
	if run.Failed > 0 {
		status = models.RunStatusPartial
	}

	if err := c.store.FinalizeRun(ctx, runID, durationMs, status); err != nil {
		return fmt.Errorf("failed to finalize run %d: %w", runID, err)
	}
	if c.logger != nil {
		c.logger.Info().Int64("run_id", runID).Str("status", string(status)).
			Int("passed", run.Passed).Int("failed", run.Failed).Msg("run finalized")
	}
	return nil
}

// AbortRun finalizes a run as FAILED regardless of its counters, for a
// run that was cut short by a signal or an unrecoverable scheduler error
// (spec.md §4.6 "FAILED is reserved for aborted runs").
func (c *Coordinator) AbortRun(ctx context.Context, runID int64, durationMs int64) error {
	if err := c.store.AbortRun(ctx, runID, durationMs); err != nil {
		return fmt.Errorf("%w: run %d: %v", common.ErrRunAborted, runID, err)
	}
	if c.logger != nil {
		c.logger.Warn().Int64("run_id", runID).Msg("run aborted")
	}
	return nil
}

// EnsureRunContext resolves the run a batch invocation should attach its
// url_tests to: an explicit runID passed by the caller, falling back to
// the TEST_RUN_ID environment variable, falling back to creating a brand
// new run. This realizes spec.md §9's "Auto-created vs explicit run
// context" note without any process-global state: the resolved run is
// returned to the caller, never cached here.
func (c *Coordinator) EnsureRunContext(ctx context.Context, explicitRunID *int64, declaredTargetCount, requestedWorkers int) (*models.Run, error) {
	if explicitRunID != nil {
		return c.store.GetRun(ctx, *explicitRunID)
	}

	if envID := os.Getenv("TEST_RUN_ID"); envID != "" {
		var id int64
		if _, err := fmt.Sscanf(envID, "%d", &id); err != nil {
			return nil, fmt.Errorf("%w: TEST_RUN_ID %q is not a valid run id", common.ErrBadRequest, envID)
		}
		return c.store.GetRun(ctx, id)
	}

	return c.CreateRun(ctx, declaredTargetCount, requestedWorkers, nil)
}
