package browser

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ternarybob/pumpkin/internal/models"
)

// StubDriver is a counting, delay-configurable Driver used by the
// Scheduler's property tests (P8: never more than W concurrent sessions;
// P9: every job finishes within its deadline) and by Ingestor/Runs tests
// that need a cheap, deterministic measurement producer instead of a real
// browser.
type StubDriver struct {
	// Delay is how long RunTest sleeps before returning, simulating
	// browser work.
	Delay time.Duration
	// FailURLs, if set, makes RunTest return an ERROR-status measurement
	// (with a nil error) for those URLs.
	FailURLs map[string]bool
	// TimeoutURLs, if set, makes RunTest block until ctx is cancelled.
	TimeoutURLs map[string]bool

	active  int64
	maxSeen int64
}

func (s *StubDriver) RunTest(ctx context.Context, url, hostname, screenshotPath, harPath string) (*models.TestMeasurement, error) {
	n := atomic.AddInt64(&s.active, 1)
	defer atomic.AddInt64(&s.active, -1)
	for {
		cur := atomic.LoadInt64(&s.maxSeen)
		if n <= cur || atomic.CompareAndSwapInt64(&s.maxSeen, cur, n) {
			break
		}
	}

	if s.TimeoutURLs != nil && s.TimeoutURLs[url] {
		<-ctx.Done()
		return models.NewErrorMeasurement(url, hostname, screenshotPath, harPath, models.UrlTestStatusTimeout, ctx.Err().Error()), nil
	}

	select {
	case <-time.After(s.Delay):
	case <-ctx.Done():
		return models.NewErrorMeasurement(url, hostname, screenshotPath, harPath, models.UrlTestStatusTimeout, ctx.Err().Error()), nil
	}

	if s.FailURLs != nil && s.FailURLs[url] {
		return models.NewErrorMeasurement(url, hostname, screenshotPath, harPath, models.UrlTestStatusError, "stub driver forced failure"), nil
	}

	title := "Stub Page"
	return &models.TestMeasurement{
		URL:               url,
		Hostname:          hostname,
		Browser:           "stub",
		UserAgent:         "Pumpkin-Stub/1.0",
		PageTitle:         &title,
		TestTimestamp:     time.Now().UTC(),
		TestDurationMs:    s.Delay.Milliseconds(),
		Status:            models.UrlTestStatusPassed,
		TotalPageLoadMs:   floatPtr(float64(s.Delay.Milliseconds())),
		TimeToFirstByteMs: floatPtr(10),
		ResourcesByType:   map[string]int{"script": 1, "img": 1},
		HTTPResponseCodes: map[string]int{"200": 1},
		TotalResources:    2,
		ScreenshotPath:    screenshotPath,
		HarPath:           harPath,
	}, nil
}

// MaxConcurrent returns the high-water mark of concurrent in-flight
// RunTest calls, used to verify P8.
func (s *StubDriver) MaxConcurrent() int64 {
	return atomic.LoadInt64(&s.maxSeen)
}

func floatPtr(v float64) *float64 { return &v }
