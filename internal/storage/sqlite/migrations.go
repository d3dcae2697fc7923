package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one additive, idempotent schema change applied before the
// baseline schema, tracked in schema_migrations so it runs at most once
// per database. Mirrors the teacher's own versioned-migration shape, kept
// narrow to what this schema actually needs.
type migration struct {
	version int
	name    string
	up      func(context.Context, *sql.Tx) error
}

var migrations = []migration{
	{version: 1, name: "rename_legacy_domain_tests", up: migrateRenameLegacyDomainTests},
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if err := createMigrationsTable(ctx, db); err != nil {
		return err
	}

	for _, m := range migrations {
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}
	return nil
}

func createMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	)`)
	return err
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.version, m.name); err != nil {
		return err
	}

	return tx.Commit()
}

// migrateRenameLegacyDomainTests carries forward a rename the source
// project made before this schema was derived from it: the url_tests
// table was once named domain_tests, with the owning run table's target
// count column named total_domains (spec.md §9). A database bootstrapped
// against that pre-rename layout is adopted here rather than abandoned.
func migrateRenameLegacyDomainTests(ctx context.Context, tx *sql.Tx) error {
	var legacyTableExists int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'domain_tests'").
		Scan(&legacyTableExists)
	if err != nil {
		return err
	}
	if legacyTableExists == 0 {
		return nil
	}

	var currentTableExists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'url_tests'").
		Scan(&currentTableExists); err != nil {
		return err
	}
	if currentTableExists > 0 {
		// Both names present: the legacy table is stale leftover from an
		// aborted earlier migration attempt, not live data. Leave it for
		// manual inspection rather than guessing which copy is authoritative.
		return nil
	}

	if _, err := tx.ExecContext(ctx, `ALTER TABLE domain_tests RENAME TO url_tests`); err != nil {
		return fmt.Errorf("failed to rename domain_tests to url_tests: %w", err)
	}

	hasColumn, err := columnExists(ctx, tx, "runs", "total_domains")
	if err != nil {
		return err
	}
	if hasColumn {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE runs RENAME COLUMN total_domains TO declared_target_count`); err != nil {
			return fmt.Errorf("failed to rename runs.total_domains: %w", err)
		}
	}

	return nil
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, dfltValue, pk interface{}
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
