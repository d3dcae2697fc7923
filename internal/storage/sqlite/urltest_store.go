package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/models"
)

// UrlTestStore owns url_tests, status_histogram and resource_types reads
// and writes. InsertUrlTest is the storage half of the Ingestor's
// three-step atomic contract (spec §4.5): one row in url_tests, one row
// per distinct status code, one row per distinct resource type, all in a
// single transaction.
type UrlTestStore struct {
	db     *DB
	logger arbor.ILogger
}

func NewUrlTestStore(db *DB, logger arbor.ILogger) *UrlTestStore {
	return &UrlTestStore{db: db, logger: logger}
}

// InsertUrlTest persists one TestMeasurement under runID, returning the
// fully-populated UrlTest. A foreign-key violation (run deleted or never
// existed) surfaces as common.ErrRunMissing; any other failure rolls back
// the whole transaction, leaving no partial row behind.
func (s *UrlTestStore) InsertUrlTest(ctx context.Context, runID int64, m *models.TestMeasurement) (*models.UrlTest, error) {
	resourcesJSON, err := json.Marshal(m.ResourcesByType)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resources_by_type: %w", err)
	}
	codesJSON, err := json.Marshal(m.HTTPResponseCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal http_response_codes: %w", err)
	}

	testUUID := common.NewUUID()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO url_tests (
			uuid, run_id, url, hostname, browser, user_agent, page_title,
			test_timestamp, test_duration_ms, scroll_duration_ms, status, error_message,
			dns_lookup_ms, tcp_connection_ms, tls_negotiation_ms, time_to_first_byte_ms,
			response_time_ms, dom_content_loaded_ms, dom_interactive_ms, total_page_load_ms,
			doc_transfer_size, doc_encoded_size, doc_decoded_size,
			total_resources, total_transfer_size, total_encoded_size,
			resources_by_type, http_response_codes,
			screenshot_path, har_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		testUUID, runID, m.URL, m.Hostname, m.Browser, m.UserAgent, m.PageTitle,
		m.TestTimestamp.Unix(), m.TestDurationMs, m.ScrollDurationMs, string(m.Status), m.ErrorMessage,
		m.DNSLookupMs, m.TCPConnectionMs, m.TLSNegotiationMs, m.TimeToFirstByteMs,
		m.ResponseTimeMs, m.DomContentLoadedMs, m.DomInteractiveMs, m.TotalPageLoadMs,
		m.DocTransferSize, m.DocEncodedSize, m.DocDecodedSize,
		m.TotalResources, m.TotalTransferSize, m.TotalEncodedSize,
		string(resourcesJSON), string(codesJSON),
		m.ScreenshotPath, m.HarPath, now.Unix())
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: run %d", common.ErrRunMissing, runID)
		}
		return nil, fmt.Errorf("failed to insert url_test: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new url_test id: %w", err)
	}

	for code, count := range m.HTTPResponseCodes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO status_histogram (url_test_id, status_code, response_count)
			VALUES (?, ?, ?)`, id, code, count); err != nil {
			return nil, fmt.Errorf("failed to insert status_histogram row: %w", err)
		}
	}

	for rtype, count := range m.ResourcesByType {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resource_types (url_test_id, resource_type, resource_count)
			VALUES (?, ?, ?)`, id, rtype, count); err != nil {
			return nil, fmt.Errorf("failed to insert resource_types row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit url_test insert: %w", err)
	}

	return s.GetUrlTest(ctx, id)
}

func (s *UrlTestStore) GetUrlTest(ctx context.Context, id int64) (*models.UrlTest, error) {
	row := s.db.DB().QueryRowContext(ctx, urlTestSelectColumns+` WHERE id = ?`, id)
	t, err := scanUrlTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: url_test %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load url_test %d: %w", id, err)
	}
	return t, nil
}

func (s *UrlTestStore) ListUrlTestsForRun(ctx context.Context, runID int64) ([]models.UrlTest, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		urlTestSelectColumns+` WHERE run_id = ? ORDER BY test_timestamp ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list url_tests for run %d: %w", runID, err)
	}
	defer rows.Close()
	return scanUrlTestRows(rows)
}

// ListFailedForRun returns the run's v_tests_with_errors rows: anything not
// PASSED, plus anything PASSED whose histogram still contains a 4xx/5xx
// entry (spec §4.3 "partial failures").
func (s *UrlTestStore) ListFailedForRun(ctx context.Context, runID int64) ([]models.UrlTest, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, uuid, run_id, url, hostname, browser, user_agent, page_title,
		       test_timestamp, test_duration_ms, scroll_duration_ms, status, error_message,
		       dns_lookup_ms, tcp_connection_ms, tls_negotiation_ms, time_to_first_byte_ms,
		       response_time_ms, dom_content_loaded_ms, dom_interactive_ms, total_page_load_ms,
		       doc_transfer_size, doc_encoded_size, doc_decoded_size,
		       total_resources, total_transfer_size, total_encoded_size,
		       resources_by_type, http_response_codes,
		       screenshot_path, har_path, created_at
		FROM v_tests_with_errors WHERE run_id = ? ORDER BY test_timestamp ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed url_tests for run %d: %w", runID, err)
	}
	defer rows.Close()
	return scanUrlTestRows(rows)
}

func (s *UrlTestStore) StatusHistogram(ctx context.Context, urlTestID int64) ([]models.StatusHistogramEntry, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT url_test_id, status_code, response_count
		FROM status_histogram WHERE url_test_id = ? ORDER BY status_code`, urlTestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load status histogram for url_test %d: %w", urlTestID, err)
	}
	defer rows.Close()

	var out []models.StatusHistogramEntry
	for rows.Next() {
		var e models.StatusHistogramEntry
		if err := rows.Scan(&e.UrlTestID, &e.StatusCode, &e.ResponseCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *UrlTestStore) ResourceTypeBreakdown(ctx context.Context, urlTestID int64) ([]models.ResourceTypeEntry, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT url_test_id, resource_type, resource_count
		FROM resource_types WHERE url_test_id = ? ORDER BY resource_type`, urlTestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resource types for url_test %d: %w", urlTestID, err)
	}
	defer rows.Close()

	var out []models.ResourceTypeEntry
	for rows.Next() {
		var e models.ResourceTypeEntry
		if err := rows.Scan(&e.UrlTestID, &e.ResourceType, &e.ResourceCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DailyAverageLoadTimeIn buckets by calendar day in loc (spec.md §4.8:
// "bucket by calendar day in the requested IANA time zone"). Bucketing
// happens in Go rather than SQL because SQLite's date() function has no
// named-timezone support, only fixed UTC offsets.
func (s *UrlTestStore) DailyAverageLoadTimeIn(ctx context.Context, hostname string, sinceDays int, loc *time.Location) ([]models.DailyAverage, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT test_timestamp, total_page_load_ms
		FROM url_tests
		WHERE hostname = ? AND test_timestamp >= strftime('%s', 'now', ?) AND total_page_load_ms IS NOT NULL`,
		hostname, fmt.Sprintf("-%d days", sinceDays))
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily averages for %s: %w", hostname, err)
	}
	defer rows.Close()

	sums := map[string]float64{}
	counts := map[string]int{}
	for rows.Next() {
		var ts int64
		var ms float64
		if err := rows.Scan(&ts, &ms); err != nil {
			return nil, err
		}
		day := time.Unix(ts, 0).In(loc).Format("2006-01-02")
		sums[day] += ms
		counts[day]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Every calendar day in the window gets a row, even one with zero
	// matching measurements (spec.md §8 scenario 5: a gap day reports
	// (date, 0, 0) rather than being omitted). A days=N request yields
	// exactly N buckets, today inclusive.
	out := make([]models.DailyAverage, 0, sinceDays)
	now := time.Now().In(loc)
	for i := sinceDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format("2006-01-02")
		count := counts[day]
		var avg float64
		if count > 0 {
			avg = sums[day] / float64(count)
		}
		out = append(out, models.DailyAverage{Date: day, AvgMs: avg, Count: count})
	}
	return out, nil
}

// OrderedForRun returns every url_test in runID sorted by orderBy, capped
// at limit. orderBy is always one of a small fixed set of literal
// expressions supplied by the Query Layer, never user input, so building
// the SQL string directly is safe.
func (s *UrlTestStore) OrderedForRun(ctx context.Context, runID int64, orderBy string, limit int) ([]models.UrlTest, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		urlTestSelectColumns+fmt.Sprintf(` WHERE run_id = ? ORDER BY %s LIMIT ?`, orderBy), runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ordered url_tests for run %d: %w", runID, err)
	}
	defer rows.Close()
	return scanUrlTestRows(rows)
}

// ForHostname returns every url_test for hostname sorted by orderBy,
// capped at limit, joined across all runs (spec.md §4.8 "DomainTrend" /
// "TestsForUrl").
func (s *UrlTestStore) ForHostname(ctx context.Context, hostname, orderBy string, limit int) ([]models.UrlTest, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		urlTestSelectColumns+fmt.Sprintf(` WHERE hostname = ? ORDER BY %s LIMIT ?`, orderBy), hostname, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list url_tests for hostname %s: %w", hostname, err)
	}
	defer rows.Close()
	return scanUrlTestRows(rows)
}

// ReferencedScreenshotPaths returns every distinct screenshot_path in the
// table, used by the Reconciler (spec.md §4.10 step 1) to compute the set
// of artifact directories still referenced by a row.
func (s *UrlTestStore) ReferencedScreenshotPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx, `SELECT DISTINCT screenshot_path FROM url_tests`)
	if err != nil {
		return nil, fmt.Errorf("failed to list referenced screenshot paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DistinctHostnames returns distinct hostnames starting with prefix,
// alphabetical, capped at limit (spec.md §4.8 "UrlAutocomplete").
func (s *UrlTestStore) DistinctHostnames(ctx context.Context, prefix string, limit int) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT DISTINCT hostname FROM url_tests
		WHERE hostname LIKE ? || '%' ORDER BY hostname ASC LIMIT ?`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to autocomplete hostnames for prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

const urlTestSelectColumns = `
SELECT id, uuid, run_id, url, hostname, browser, user_agent, page_title,
       test_timestamp, test_duration_ms, scroll_duration_ms, status, error_message,
       dns_lookup_ms, tcp_connection_ms, tls_negotiation_ms, time_to_first_byte_ms,
       response_time_ms, dom_content_loaded_ms, dom_interactive_ms, total_page_load_ms,
       doc_transfer_size, doc_encoded_size, doc_decoded_size,
       total_resources, total_transfer_size, total_encoded_size,
       resources_by_type, http_response_codes,
       screenshot_path, har_path, created_at
FROM url_tests`

func scanUrlTest(row *sql.Row) (*models.UrlTest, error) {
	return scanUrlTestScanner(row)
}

func scanUrlTestRows(rows *sql.Rows) ([]models.UrlTest, error) {
	var out []models.UrlTest
	for rows.Next() {
		t, err := scanUrlTestScanner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan url_test: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanUrlTestScanner(s rowScanner) (*models.UrlTest, error) {
	var (
		t                    models.UrlTest
		testTimestamp        int64
		createdAt            int64
		pageTitle            sql.NullString
		errorMessage         sql.NullString
		resourcesJSON        string
		codesJSON            string
	)

	if err := s.Scan(
		&t.ID, &t.UUID, &t.RunID, &t.URL, &t.Hostname, &t.Browser, &t.UserAgent, &pageTitle,
		&testTimestamp, &t.TestDurationMs, &t.ScrollDurationMs, &t.Status, &errorMessage,
		&t.DNSLookupMs, &t.TCPConnectionMs, &t.TLSNegotiationMs, &t.TimeToFirstByteMs,
		&t.ResponseTimeMs, &t.DomContentLoadedMs, &t.DomInteractiveMs, &t.TotalPageLoadMs,
		&t.DocTransferSize, &t.DocEncodedSize, &t.DocDecodedSize,
		&t.TotalResources, &t.TotalTransferSize, &t.TotalEncodedSize,
		&resourcesJSON, &codesJSON,
		&t.ScreenshotPath, &t.HarPath, &createdAt,
	); err != nil {
		return nil, err
	}

	t.TestTimestamp = time.Unix(testTimestamp, 0).UTC()
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	if pageTitle.Valid {
		t.PageTitle = &pageTitle.String
	}
	if errorMessage.Valid {
		t.ErrorMessage = &errorMessage.String
	}

	if err := json.Unmarshal([]byte(resourcesJSON), &t.ResourcesByType); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resources_by_type: %w", err)
	}
	if err := json.Unmarshal([]byte(codesJSON), &t.HTTPResponseCodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal http_response_codes: %w", err)
	}

	return &t, nil
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "FOREIGN KEY CONSTRAINT")
}
