// Package query implements the Query Layer (C8): the fifteen read-side
// projections the HTTP API serves, each a thin method over the Data
// Store's hand-written SQL (spec.md §4.8). No ORM, matching the teacher's
// own storage package throughout.
package query

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/har"
	"github.com/ternarybob/pumpkin/internal/models"
	"github.com/ternarybob/pumpkin/internal/storage/sqlite"
)

// ianaTZPattern is spec.md §4.8's timezone validation rule.
var ianaTZPattern = regexp.MustCompile(`^[A-Za-z_]+/[A-Za-z_]+$|^UTC$`)

// Service answers every read-side query the HTTP API needs.
type Service struct {
	runs     *sqlite.RunStore
	urlTests *sqlite.UrlTestStore
	validate *validator.Validate
	logger   arbor.ILogger
}

func New(runs *sqlite.RunStore, urlTests *sqlite.UrlTestStore, logger arbor.ILogger) *Service {
	v := validator.New()
	v.RegisterValidation("iana_tz_or_utc", func(fl validator.FieldLevel) bool {
		return ianaTZPattern.MatchString(fl.Field().String())
	})
	return &Service{runs: runs, urlTests: urlTests, validate: v, logger: logger}
}

type timezoneInput struct {
	TZ string `validate:"required,iana_tz_or_utc"`
}

func (s *Service) GetLatestRun(ctx context.Context) (*models.Run, error) {
	return s.runs.GetLatestRun(ctx)
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	return s.runs.ListRuns(ctx, limit)
}

func (s *Service) GetRun(ctx context.Context, id int64) (*models.Run, error) {
	return s.runs.GetRun(ctx, id)
}

func (s *Service) ListUrlTestsForRun(ctx context.Context, runID int64) ([]models.UrlTest, error) {
	return s.urlTests.ListUrlTestsForRun(ctx, runID)
}

func (s *Service) GetUrlTest(ctx context.Context, id int64) (*models.UrlTest, error) {
	return s.urlTests.GetUrlTest(ctx, id)
}

// GetFailedRequestsForTest re-analyzes the test's HAR file for its
// failed-request inventory (spec.md §4.8: "from HAR"), rather than storing
// a third copy of this data in the database.
func (s *Service) GetFailedRequestsForTest(ctx context.Context, id int64) ([]models.FailedRequest, error) {
	t, err := s.urlTests.GetUrlTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.HarPath == "" {
		return nil, nil
	}
	result := har.AnalyzeFile(t.HarPath, s.logger)
	return result.FailedRequests, nil
}

func (s *Service) ListSlowestInLatest(ctx context.Context, limit int) ([]models.UrlTest, error) {
	latest, err := s.runs.GetLatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return s.orderedForRun(ctx, latest.ID, "total_page_load_ms DESC", limit)
}

func (s *Service) ListFastestInLatest(ctx context.Context, limit int) ([]models.UrlTest, error) {
	latest, err := s.runs.GetLatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return s.orderedForRun(ctx, latest.ID, "total_page_load_ms ASC", limit)
}

func (s *Service) orderedForRun(ctx context.Context, runID int64, orderBy string, limit int) ([]models.UrlTest, error) {
	return s.urlTests.OrderedForRun(ctx, runID, orderBy, limit)
}

// ErrorsInLatest lists the latest run's v_tests_with_errors rows: every
// non-PASSED url_test plus any PASSED one whose histogram holds a 4xx/5xx
// code (used by GET /api/stats/errors, spec.md §4.9).
func (s *Service) ErrorsInLatest(ctx context.Context) ([]models.UrlTest, error) {
	latest, err := s.runs.GetLatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return s.urlTests.ListFailedForRun(ctx, latest.ID)
}

func (s *Service) DomainTrend(ctx context.Context, host string, limit int) ([]models.UrlTest, error) {
	return s.urlTests.ForHostname(ctx, host, "(SELECT run_timestamp FROM runs WHERE runs.id = url_tests.run_id) DESC", limit)
}

func (s *Service) TestsForUrl(ctx context.Context, host string, limit int) ([]models.UrlTest, error) {
	return s.urlTests.ForHostname(ctx, host, "test_timestamp DESC", limit)
}

func (s *Service) UrlAutocomplete(ctx context.Context, prefix string, limit int) ([]string, error) {
	return s.urlTests.DistinctHostnames(ctx, prefix, limit)
}

// DailyAverageLoadTime buckets by calendar day in tz (spec.md §4.8);
// invalid tz input is rejected as ErrBadRequest before ever touching the
// database.
func (s *Service) DailyAverageLoadTime(ctx context.Context, host string, days int, tz string) ([]models.DailyAverage, error) {
	if err := s.validate.Struct(timezoneInput{TZ: tz}); err != nil {
		return nil, fmt.Errorf("%w: invalid timezone %q", common.ErrBadRequest, tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", common.ErrBadRequest, tz)
	}
	return s.urlTests.DailyAverageLoadTimeIn(ctx, host, days, loc)
}

func (s *Service) AvailableDates(ctx context.Context) ([]string, error) {
	return s.runs.AvailableDates(ctx)
}

func (s *Service) RunsByDate(ctx context.Context, date string) ([]models.Run, error) {
	return s.runs.RunsByDate(ctx, date)
}
