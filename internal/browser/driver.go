// Package browser implements the Browser Driver (C2): it drives one URL to
// completion through an isolated, HAR-recording browser session and
// returns a TestMeasurement, following the sequential protocol in
// spec.md §4.2. Grounded on the teacher's chromedp-based scraping stack
// (internal/services/crawler/chromedp_pool.go, html_scraper.go), adapted
// from content extraction to performance measurement.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/models"
)

const (
	navigationTimeout  = 60 * time.Second
	loadEventTimeout   = 60 * time.Second
	postLoadSettleTime = 2 * time.Second
	scrollIncrementPx  = 100
	scrollInterval     = 100 * time.Millisecond
	scrollTopWait      = 1 * time.Second
	scrollReturnWait   = 500 * time.Millisecond
)

// Driver drives one URL to completion, writing a screenshot and a HAR to
// the given paths and returning the resulting measurement.
type Driver interface {
	RunTest(ctx context.Context, url, hostname, screenshotPath, harPath string) (*models.TestMeasurement, error)
}

// ChromeDriver is the production Driver, backed by a chromedp Pool.
type ChromeDriver struct {
	pool   *Pool
	logger arbor.ILogger
}

func NewChromeDriver(pool *Pool, logger arbor.ILogger) *ChromeDriver {
	return &ChromeDriver{pool: pool, logger: logger}
}

// RunTest implements the protocol of spec.md §4.2 steps 1-8. Every
// blocking call is bounded by ctx so a caller-imposed deadline
// (scheduler's 120s per-job budget, or a SIGINT-driven shutdown) cancels
// navigation, the scroll loop, screenshot capture and HAR flush together
// (spec §5 "Cancellation"). chromedp.NewContext only inherits
// cancellation from the pool's long-lived allocator context, not from an
// arbitrary parent, so a watcher goroutine below cancels the tab the
// moment ctx is done.
func (d *ChromeDriver) RunTest(ctx context.Context, url, hostname, screenshotPath, harPath string) (*models.TestMeasurement, error) {
	allocCtx, release, err := d.pool.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", common.ErrDriverError)
	}
	defer release()

	// Step 1: isolated session - a fresh tab context shares no storage
	// with any other job's tab.
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	// Tie tabCtx's lifetime to the caller's ctx: without this, the
	// scheduler's per-job deadline and a run-level SIGINT never reach an
	// in-flight navigation, since tabCtx is otherwise only bounded by the
	// allocator's lifetime. The goroutine exits as soon as either side
	// finishes, including via the deferred tabCancel above.
	go func() {
		select {
		case <-ctx.Done():
			tabCancel()
		case <-tabCtx.Done():
		}
	}()

	rec := newHarRecorder(url)
	rec.attach(tabCtx)

	start := time.Now()

	navCtx, navCancel := context.WithTimeout(tabCtx, navigationTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		harPathWritten := rec.flush(harPath, d.logger)
		status := models.UrlTestStatusError
		if navCtx.Err() == context.DeadlineExceeded {
			status = models.UrlTestStatusTimeout
		}
		return d.buildMeasurement(url, hostname, "", nil, nil, status, err.Error(), screenshotPath, harPathWritten, time.Since(start), 0), nil
	}

	// Step 2/3: wait for the load event, then settle.
	loadCtx, loadCancel := context.WithTimeout(tabCtx, loadEventTimeout)
	err = chromedp.Run(loadCtx, page.Enable(), waitForLoadEvent())
	loadCancel()
	if err != nil {
		harPathWritten := rec.flush(harPath, d.logger)
		status := models.UrlTestStatusError
		if loadCtx.Err() == context.DeadlineExceeded {
			status = models.UrlTestStatusTimeout
		}
		return d.buildMeasurement(url, hostname, "", nil, nil, status, err.Error(), screenshotPath, harPathWritten, time.Since(start), 0), nil
	}

	select {
	case <-time.After(postLoadSettleTime):
	case <-tabCtx.Done():
		harPathWritten := rec.flush(harPath, d.logger)
		return d.buildMeasurement(url, hostname, "", nil, nil, models.UrlTestStatusTimeout, tabCtx.Err().Error(), screenshotPath, harPathWritten, time.Since(start), 0), nil
	}

	// Step 4: forced scroll.
	scrollDur, err := forceScroll(tabCtx)
	if err != nil && d.logger != nil {
		d.logger.Warn().Err(err).Str("url", url).Msg("scroll phase failed, continuing")
	}

	// Step 5: read Performance Timing API data.
	timing, err := readNavigationTiming(tabCtx)
	if err != nil && d.logger != nil {
		d.logger.Warn().Err(err).Str("url", url).Msg("failed to read performance timing")
	}

	// Step 6: full-page screenshot.
	var screenshotBytes []byte
	if err := chromedp.Run(tabCtx, chromedp.FullScreenshot(&screenshotBytes, 90)); err != nil {
		if d.logger != nil {
			d.logger.Warn().Err(err).Str("url", url).Msg("screenshot capture failed")
		}
	} else if err := writeFile(screenshotPath, screenshotBytes); err != nil {
		if d.logger != nil {
			d.logger.Warn().Err(err).Str("path", screenshotPath).Msg("failed to write screenshot")
		}
	}

	// Step 7: user agent and title.
	var title, userAgent string
	_ = chromedp.Run(tabCtx, chromedp.Title(&title))
	userAgent = rec.lastUserAgent()

	// Step 8: close session, flushing HAR.
	harPathWritten := rec.flush(harPath, d.logger)

	m := d.buildMeasurement(url, hostname, title, timing, rec.responseCodes(), models.UrlTestStatusPassed, "", screenshotPath, harPathWritten, time.Since(start), scrollDur)
	m.UserAgent = userAgent
	return m, nil
}

func (d *ChromeDriver) buildMeasurement(
	url, hostname, title string,
	timing *models.NavigationTiming,
	responseCodes map[string]int,
	status models.UrlTestStatus,
	errMsg string,
	screenshotPath, harPath string,
	testDuration time.Duration,
	scrollDuration time.Duration,
) *models.TestMeasurement {
	m := &models.TestMeasurement{
		URL:               url,
		Hostname:          hostname,
		Browser:           "chromium",
		TestTimestamp:     time.Now().UTC(),
		TestDurationMs:    testDuration.Milliseconds(),
		ScrollDurationMs:  scrollDuration.Milliseconds(),
		Status:            status,
		ScreenshotPath:    screenshotPath,
		HarPath:           harPath,
		ResourcesByType:   map[string]int{},
		HTTPResponseCodes: responseCodes,
	}
	if title != "" {
		m.PageTitle = &title
	}
	if errMsg != "" {
		m.ErrorMessage = &errMsg
	}
	if m.HTTPResponseCodes == nil {
		m.HTTPResponseCodes = map[string]int{}
	}
	if timing != nil {
		m.DNSLookupMs = clampPtr(timing.DNSLookupMs)
		m.TCPConnectionMs = clampPtr(timing.TCPConnectionMs)
		m.TLSNegotiationMs = clampPtr(timing.TLSNegotiationMs)
		m.TimeToFirstByteMs = clampPtr(timing.TimeToFirstByteMs)
		m.ResponseTimeMs = clampPtr(timing.ResponseTimeMs)
		m.DomContentLoadedMs = clampPtr(timing.DomContentLoadedMs)
		m.DomInteractiveMs = clampPtr(timing.DomInteractiveMs)
		m.TotalPageLoadMs = clampPtr(timing.TotalPageLoadMs)
		m.DocTransferSize = &timing.DocTransferSize
		m.DocEncodedSize = &timing.DocEncodedSize
		m.DocDecodedSize = &timing.DocDecodedSize

		byType := map[string]int{}
		var transfer, encoded int64
		for _, r := range timing.Resources {
			byType[r.InitiatorType]++
			transfer += r.TransferSize
			encoded += r.EncodedSize
		}
		m.ResourcesByType = byType
		m.TotalResources = len(timing.Resources)
		m.TotalTransferSize = transfer
		m.TotalEncodedSize = encoded
	}
	return m
}

// clampPtr clamps a negative (unmeasurable) timing phase to zero per
// spec.md §4.2: "negative values ... are clamped to zero".
func clampPtr(v float64) *float64 {
	if v < 0 {
		v = 0
	}
	return &v
}

func waitForLoadEvent() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		ch := make(chan struct{})
		chromedp.ListenTarget(ctx, func(ev interface{}) {
			if _, ok := ev.(*page.EventLoadEventFired); ok {
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		})
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// forceScroll implements spec.md §4.2 step 4: scroll down in
// scrollIncrementPx increments every scrollInterval until cumulative
// scroll >= documentHeight-viewportHeight, wait, return to top, wait.
func forceScroll(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	var maxScroll int
	if err := chromedp.Run(ctx, chromedp.Evaluate(
		`Math.max(0, document.documentElement.scrollHeight - window.innerHeight)`, &maxScroll,
	)); err != nil {
		return time.Since(start), err
	}

	scrolled := 0
	for scrolled < maxScroll {
		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-time.After(scrollInterval):
		}
		if err := chromedp.Run(ctx, chromedp.Evaluate(
			fmt.Sprintf(`window.scrollBy(0, %d)`, scrollIncrementPx), nil,
		)); err != nil {
			return time.Since(start), err
		}
		scrolled += scrollIncrementPx
	}

	select {
	case <-time.After(scrollTopWait):
	case <-ctx.Done():
		return time.Since(start), ctx.Err()
	}

	if err := chromedp.Run(ctx, chromedp.Evaluate(`window.scrollTo(0, 0)`, nil)); err != nil {
		return time.Since(start), err
	}

	select {
	case <-time.After(scrollReturnWait):
	case <-ctx.Done():
		return time.Since(start), ctx.Err()
	}

	return time.Since(start), nil
}

// harResponseRecord is one observed response, keeping the actual
// sub-resource URL alongside its status so the HAR Analyzer can report
// which request failed, not just the page that requested it.
type harResponseRecord struct {
	url    string
	status int
}

// harRecorder accumulates cdproto Network-domain response events while a
// tab is navigating and buffers the minimal entry set that writeHarFile
// (timing.go) writes out as the HAR file; internal/har only reads that
// file back.
type harRecorder struct {
	url       string
	responses map[string]int
	entries   []harResponseRecord
	ua        string
}

func newHarRecorder(url string) *harRecorder {
	return &harRecorder{url: url, responses: map[string]int{}}
}

func (r *harRecorder) attach(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Response != nil {
				code := int(e.Response.Status)
				if code > 0 {
					r.responses[fmt.Sprintf("%d", code)]++
					r.entries = append(r.entries, harResponseRecord{url: e.Response.URL, status: code})
				}
				if uaVal, ok := e.Response.RequestHeaders["User-Agent"]; ok {
					if ua, ok := uaVal.(string); ok {
						r.ua = ua
					}
				}
			}
		}
	})
	_ = chromedp.Run(ctx, network.Enable())
}

func (r *harRecorder) responseCodes() map[string]int {
	return r.responses
}

func (r *harRecorder) lastUserAgent() string {
	return r.ua
}

// flush writes the accumulated HAR document to harPath. Failures are
// logged, never fatal (HAR capture best-effort on a failed navigation).
func (r *harRecorder) flush(harPath string, logger arbor.ILogger) string {
	if err := writeHarFile(harPath, r); err != nil {
		if logger != nil {
			logger.Warn().Err(err).Str("path", harPath).Msg("failed to write HAR file")
		}
		return ""
	}
	return harPath
}
