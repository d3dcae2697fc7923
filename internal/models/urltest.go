package models

import "time"

// UrlTestStatus is final from creation: no mutation after insertion.
type UrlTestStatus string

const (
	UrlTestStatusPassed  UrlTestStatus = "PASSED"
	UrlTestStatusFailed  UrlTestStatus = "FAILED"
	UrlTestStatusTimeout UrlTestStatus = "TIMEOUT"
	UrlTestStatusError   UrlTestStatus = "ERROR"
)

// UrlTest is one URL attempt within a run.
type UrlTest struct {
	ID     int64  `json:"id"`
	UUID   string `json:"uuid"`
	RunID  int64  `json:"run_id"`

	URL       string  `json:"url"`
	Hostname  string  `json:"hostname"`
	Browser   string  `json:"browser"`
	UserAgent string  `json:"user_agent"`
	PageTitle *string `json:"page_title,omitempty"`

	TestTimestamp   time.Time     `json:"test_timestamp"`
	TestDurationMs  int64         `json:"test_duration_ms"`
	ScrollDurationMs int64        `json:"scroll_duration_ms"`
	Status          UrlTestStatus `json:"status"`
	ErrorMessage    *string       `json:"error_message,omitempty"`

	// Navigation timing, milliseconds, nullable when unmeasurable.
	DNSLookupMs        *float64 `json:"dns_lookup_ms,omitempty"`
	TCPConnectionMs    *float64 `json:"tcp_connection_ms,omitempty"`
	TLSNegotiationMs   *float64 `json:"tls_negotiation_ms,omitempty"`
	TimeToFirstByteMs  *float64 `json:"time_to_first_byte_ms,omitempty"`
	ResponseTimeMs     *float64 `json:"response_time_ms,omitempty"`
	DomContentLoadedMs *float64 `json:"dom_content_loaded_ms,omitempty"`
	DomInteractiveMs   *float64 `json:"dom_interactive_ms,omitempty"`
	TotalPageLoadMs    *float64 `json:"total_page_load_ms,omitempty"`

	DocTransferSize *int64 `json:"doc_transfer_size,omitempty"`
	DocEncodedSize  *int64 `json:"doc_encoded_size,omitempty"`
	DocDecodedSize  *int64 `json:"doc_decoded_size,omitempty"`

	TotalResources    int   `json:"total_resources"`
	TotalTransferSize int64 `json:"total_transfer_size"`
	TotalEncodedSize  int64 `json:"total_encoded_size"`

	ResourcesByType   map[string]int `json:"resources_by_type"`
	HTTPResponseCodes map[string]int `json:"http_response_codes"`

	ScreenshotPath string `json:"screenshot_path"`
	HarPath        string `json:"har_path"`

	CreatedAt time.Time `json:"created_at"`
}

// StatusHistogramEntry is the normalized satellite of UrlTest.HTTPResponseCodes.
type StatusHistogramEntry struct {
	UrlTestID     int64 `json:"url_test_id"`
	StatusCode    int   `json:"status_code"`
	ResponseCount int   `json:"response_count"`
}

// ResourceTypeEntry is the normalized satellite of UrlTest.ResourcesByType.
type ResourceTypeEntry struct {
	UrlTestID     int64  `json:"url_test_id"`
	ResourceType  string `json:"resource_type"`
	ResourceCount int    `json:"resource_count"`
}

// FailedRequest is one HAR entry with status >= 400 (spec §4.3/§4.8).
type FailedRequest struct {
	RequestURL string `json:"request_url"`
	StatusCode int    `json:"status_code"`
	Category   string `json:"category"`
}

const (
	CategoryClientError = "Client Error"
	CategoryServerError = "Server Error"
)

// CategoryForStatus returns the failed-request category for an HTTP status
// code, per spec §4.3 (400-499 Client Error, 500+ Server Error).
func CategoryForStatus(code int) string {
	if code >= 500 {
		return CategoryServerError
	}
	return CategoryClientError
}

// DailyAverage is one bucket of DailyAverageLoadTime (spec §4.8).
type DailyAverage struct {
	Date     string  `json:"date"`
	AvgMs    float64 `json:"avg_ms"`
	Count    int     `json:"count"`
}
