package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaSQL is the baseline Data Store schema (spec.md §4.4): runs,
// url_tests, and their normalized satellites status_histogram and
// resource_types, plus the counter/updated_at triggers, read indices, and
// the three read-side views. Every statement is idempotent so InitSchema
// can run unconditionally on every startup, the same way the teacher's
// schema.go bootstraps its own tables.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid                   TEXT NOT NULL UNIQUE,
	run_timestamp          INTEGER NOT NULL,
	declared_target_count  INTEGER NOT NULL,
	requested_workers      INTEGER NOT NULL,
	duration_ms            INTEGER,
	passed                 INTEGER NOT NULL DEFAULT 0,
	failed                 INTEGER NOT NULL DEFAULT 0,
	status                 TEXT NOT NULL DEFAULT 'RUNNING'
	                       CHECK (status IN ('RUNNING', 'COMPLETED', 'PARTIAL', 'FAILED')),
	notes                  TEXT,
	created_at             INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	updated_at             INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_run_timestamp ON runs(run_timestamp DESC);

CREATE TABLE IF NOT EXISTS url_tests (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid                   TEXT NOT NULL UNIQUE,
	run_id                 INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,

	url                    TEXT NOT NULL,
	hostname               TEXT NOT NULL,
	browser                TEXT NOT NULL,
	user_agent             TEXT NOT NULL,
	page_title             TEXT,

	test_timestamp         INTEGER NOT NULL,
	test_duration_ms       INTEGER NOT NULL,
	scroll_duration_ms     INTEGER NOT NULL,
	status                 TEXT NOT NULL
	                       CHECK (status IN ('PASSED', 'FAILED', 'TIMEOUT', 'ERROR')),
	error_message          TEXT,

	dns_lookup_ms          REAL,
	tcp_connection_ms      REAL,
	tls_negotiation_ms     REAL,
	time_to_first_byte_ms  REAL,
	response_time_ms       REAL,
	dom_content_loaded_ms  REAL,
	dom_interactive_ms     REAL,
	total_page_load_ms     REAL,

	doc_transfer_size      INTEGER,
	doc_encoded_size       INTEGER,
	doc_decoded_size       INTEGER,

	total_resources        INTEGER NOT NULL DEFAULT 0,
	total_transfer_size    INTEGER NOT NULL DEFAULT 0,
	total_encoded_size     INTEGER NOT NULL DEFAULT 0,

	resources_by_type      TEXT NOT NULL DEFAULT '{}',
	http_response_codes    TEXT NOT NULL DEFAULT '{}',

	screenshot_path        TEXT NOT NULL,
	har_path               TEXT NOT NULL,

	created_at             INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_url_tests_run_id ON url_tests(run_id);
CREATE INDEX IF NOT EXISTS idx_url_tests_test_timestamp ON url_tests(test_timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_url_tests_hostname ON url_tests(hostname);
CREATE INDEX IF NOT EXISTS idx_url_tests_status ON url_tests(status);
CREATE INDEX IF NOT EXISTS idx_url_tests_total_page_load_ms ON url_tests(total_page_load_ms);
CREATE INDEX IF NOT EXISTS idx_url_tests_time_to_first_byte_ms ON url_tests(time_to_first_byte_ms);
-- Plain index on the serialized histogram text (spec.md §4.4). It serves
-- equality and prefix lookups only; v_tests_with_errors below reads
-- status_histogram rather than this column.
CREATE INDEX IF NOT EXISTS idx_url_tests_http_response_codes ON url_tests(http_response_codes);

CREATE TABLE IF NOT EXISTS status_histogram (
	url_test_id    INTEGER NOT NULL REFERENCES url_tests(id) ON DELETE CASCADE,
	status_code    INTEGER NOT NULL,
	response_count INTEGER NOT NULL,
	PRIMARY KEY (url_test_id, status_code)
);

CREATE INDEX IF NOT EXISTS idx_status_histogram_status_code ON status_histogram(status_code);

CREATE TABLE IF NOT EXISTS resource_types (
	url_test_id    INTEGER NOT NULL REFERENCES url_tests(id) ON DELETE CASCADE,
	resource_type  TEXT NOT NULL,
	resource_count INTEGER NOT NULL,
	PRIMARY KEY (url_test_id, resource_type)
);

-- Counter trigger (spec.md §4.4): the single source of truth for
-- runs.passed/runs.failed. Application code must never increment these
-- itself.
CREATE TRIGGER IF NOT EXISTS trg_url_tests_count_passed
AFTER INSERT ON url_tests
WHEN NEW.status = 'PASSED'
BEGIN
	UPDATE runs SET passed = passed + 1, updated_at = strftime('%s', 'now') WHERE id = NEW.run_id;
END;

CREATE TRIGGER IF NOT EXISTS trg_url_tests_count_failed
AFTER INSERT ON url_tests
WHEN NEW.status != 'PASSED'
BEGIN
	UPDATE runs SET failed = failed + 1, updated_at = strftime('%s', 'now') WHERE id = NEW.run_id;
END;

-- updated_at trigger: an update of a run's status, passed, failed, notes
-- or duration_ms also refreshes updated_at, guarded against recursing
-- into itself.
CREATE TRIGGER IF NOT EXISTS trg_runs_updated_at
AFTER UPDATE OF status, passed, failed, notes, duration_ms ON runs
WHEN NEW.updated_at = OLD.updated_at
BEGIN
	UPDATE runs SET updated_at = strftime('%s', 'now') WHERE id = NEW.id;
END;

-- v_latest_test_run: the most recent run joined with its url_tests
-- averages (spec.md §4.4).
CREATE VIEW IF NOT EXISTS v_latest_test_run AS
SELECT
	r.id, r.uuid, r.run_timestamp, r.declared_target_count, r.requested_workers,
	r.duration_ms, r.passed, r.failed, r.status, r.notes, r.created_at, r.updated_at,
	AVG(t.total_page_load_ms)    AS avg_total_page_load_ms,
	AVG(t.time_to_first_byte_ms) AS avg_time_to_first_byte_ms
FROM runs r
LEFT JOIN url_tests t ON t.run_id = r.id
GROUP BY r.id
ORDER BY r.run_timestamp DESC
LIMIT 1;

-- v_performance_trends: url_tests flattened with their owning run, the
-- per-hostname time-series shape the dashboard trend charts read from.
CREATE VIEW IF NOT EXISTS v_performance_trends AS
SELECT
	t.id AS url_test_id, t.hostname, t.url,
	t.total_page_load_ms, t.time_to_first_byte_ms, t.test_timestamp,
	r.id AS run_id, r.run_timestamp, r.status AS run_status
FROM url_tests t
JOIN runs r ON r.id = t.run_id;

-- v_tests_with_errors: non-PASSED tests, or tests whose histogram
-- contains any 4xx/5xx status code.
CREATE VIEW IF NOT EXISTS v_tests_with_errors AS
SELECT t.*
FROM url_tests t
WHERE t.status != 'PASSED'
   OR EXISTS (
       SELECT 1 FROM status_histogram h
       WHERE h.url_test_id = t.id AND h.status_code >= 400
   );
`

// InitSchema first applies the migrations (migrations.go), so a database
// created by an earlier version of this schema is renamed into place, and
// then bootstraps the schema above, creating whatever is still missing.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply baseline schema: %w", err)
	}
	return nil
}
