// Package sqlite implements the Data Store (C4): relational persistence
// for runs, url_tests, and their normalized satellites, with
// database-enforced counters and lifecycle bookkeeping (spec.md §4.4).
// Grounded on the teacher's own persistence layer
// (internal/storage/sqlite/connection.go, schema.go), which already uses
// modernc.org/sqlite (pure-Go driver, no cgo) the same way this module
// does. Unlike the teacher's document cache, foreign keys are turned ON:
// here the database is the system of record, not a disposable cache.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/pumpkin/internal/common"
)

// Config configures the SQLite-backed Data Store.
type Config struct {
	// Path is a modernc.org/sqlite DSN: a file path, ":memory:", or a
	// "file:...?_pragma=..." URI. Populated from DATABASE_URL (spec §6).
	Path          string
	CacheSizeMB   int
	BusyTimeoutMs int
	WAL           bool
}

func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		CacheSizeMB:   32,
		BusyTimeoutMs: 5000,
		WAL:           true,
	}
}

// DB wraps the underlying *sql.DB with the PRAGMA setup and schema
// bootstrap the Data Store needs.
type DB struct {
	db     *sql.DB
	logger arbor.ILogger
	config Config
}

// Open opens (creating if necessary) the SQLite database at config.Path,
// applies PRAGMAs, and runs schema bootstrap/migrations.
func Open(ctx context.Context, config Config, logger arbor.ILogger) (*DB, error) {
	if config.Path != ":memory:" && !strings.HasPrefix(config.Path, "file:") {
		if dir := filepath.Dir(config.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", config.Path, errDBUnavailable(err))
	}

	d := &DB{db: sqlDB, logger: logger, config: config}

	if err := d.configure(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if err := InitSchema(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := d.Ping(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info().Str("path", config.Path).Msg("sqlite data store initialized")
	}

	return d, nil
}

func (d *DB) configure(ctx context.Context) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = -%d", d.config.CacheSizeMB*1024),
		fmt.Sprintf("PRAGMA busy_timeout = %d", d.config.BusyTimeoutMs),
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	if d.config.WAL {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, p := range pragmas {
		if _, err := d.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

func (d *DB) DB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, nil)
}

func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return errDBUnavailable(err)
	}
	return nil
}

func errDBUnavailable(err error) error {
	return fmt.Errorf("%w: %v", common.ErrDatabaseUnavailable, err)
}
