package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/models"
)

// RunStore owns runs table reads/writes (the storage half of the Run
// Coordinator, C6). All counter maintenance is left to the database
// triggers in schema.go; this store only ever writes the columns the
// triggers do not own.
type RunStore struct {
	db     *DB
	logger arbor.ILogger
}

func NewRunStore(db *DB, logger arbor.ILogger) *RunStore {
	return &RunStore{db: db, logger: logger}
}

// CreateRun inserts a new run in RUNNING, per spec §4.6.
func (s *RunStore) CreateRun(ctx context.Context, declaredTargetCount, requestedWorkers int, notes *string) (*models.Run, error) {
	runUUID := common.NewUUID()
	now := time.Now().UTC()

	res, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO runs (uuid, run_timestamp, declared_target_count, requested_workers, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'RUNNING', ?, ?, ?)`,
		runUUID, now.Unix(), declaredTargetCount, requestedWorkers, notes, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new run id: %w", err)
	}

	return s.GetRun(ctx, id)
}

// FinalizeRun transitions a run to a terminal status and records its total
// duration, enforcing the RUNNING -> {COMPLETED, PARTIAL, FAILED} state
// machine (spec §4.6, §8 P6).
func (s *RunStore) FinalizeRun(ctx context.Context, id int64, durationMs int64, next models.RunStatus) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}

	if !run.CanTransitionTo(next) {
		return fmt.Errorf("%w: run %d is %s, cannot move to %s", common.ErrInvalidTransition, id, run.Status, next)
	}

	res, err := s.db.DB().ExecContext(ctx, `
		UPDATE runs SET status = ?, duration_ms = ?
		WHERE id = ? AND status = 'RUNNING'`,
		string(next), durationMs, id)
	if err != nil {
		return fmt.Errorf("failed to finalize run %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows finalizing run %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %d is no longer RUNNING", common.ErrInvalidTransition, id)
	}
	return nil
}

// AbortRun transitions a run straight to FAILED regardless of its current
// counters (spec §4.6 "FAILED is reserved for aborted runs").
func (s *RunStore) AbortRun(ctx context.Context, id int64, durationMs int64) error {
	return s.FinalizeRun(ctx, id, durationMs, models.RunStatusFailed)
}

func (s *RunStore) GetRun(ctx context.Context, id int64) (*models.Run, error) {
	row := s.db.DB().QueryRowContext(ctx, runSelectColumns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d: %w", id, err)
	}
	return run, nil
}

func (s *RunStore) GetLatestRun(ctx context.Context) (*models.Run, error) {
	row := s.db.DB().QueryRowContext(ctx, runSelectColumns+` ORDER BY run_timestamp DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no runs recorded", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	return run, nil
}

func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	rows, err := s.db.DB().QueryContext(ctx, runSelectColumns+` ORDER BY run_timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		run, err := scanRunRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func (s *RunStore) RunsByDate(ctx context.Context, date string) ([]models.Run, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		runSelectColumns+` WHERE date(run_timestamp, 'unixepoch') = ? ORDER BY run_timestamp DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for date %s: %w", date, err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		run, err := scanRunRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func (s *RunStore) AvailableDates(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT DISTINCT date(run_timestamp, 'unixepoch') FROM runs ORDER BY 1 DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list available dates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const runSelectColumns = `
SELECT id, uuid, run_timestamp, declared_target_count, requested_workers,
       duration_ms, passed, failed, status, notes, created_at, updated_at
FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row *sql.Row) (*models.Run, error) {
	return scanRunScanner(row)
}

func scanRunRows(rows *sql.Rows) (*models.Run, error) {
	return scanRunScanner(rows)
}

func scanRunScanner(s rowScanner) (*models.Run, error) {
	var (
		r                    models.Run
		runTimestamp         int64
		createdAt, updatedAt int64
		durationMs           sql.NullInt64
		notes                sql.NullString
	)

	if err := s.Scan(&r.ID, &r.UUID, &runTimestamp, &r.DeclaredTargetCount, &r.RequestedWorkers,
		&durationMs, &r.Passed, &r.Failed, &r.Status, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	r.RunTimestamp = time.Unix(runTimestamp, 0).UTC()
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	r.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if durationMs.Valid {
		r.DurationMs = &durationMs.Int64
	}
	if notes.Valid {
		r.Notes = &notes.String
	}
	return &r, nil
}
