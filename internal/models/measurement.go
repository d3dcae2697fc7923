package models

import "time"

// TestMeasurement is the output of the Browser Driver (C2) and is consumed
// by the Ingestor (C5). The driver fills HTTPResponseCodes itself from the
// responses it records; the HAR Analyzer (C3) is not run on a measurement
// before ingestion, and FailedRequests is not populated on this path. It is
// the single in-memory structure the Ingestor writes into both the JSON
// map columns and the normalized satellite tables within one transaction
// (spec §9 "JSONB dual storage").
type TestMeasurement struct {
	URL       string
	Hostname  string
	Browser   string
	UserAgent string
	PageTitle *string

	TestTimestamp    time.Time
	TestDurationMs   int64
	ScrollDurationMs int64
	Status           UrlTestStatus
	ErrorMessage     *string

	DNSLookupMs        *float64
	TCPConnectionMs    *float64
	TLSNegotiationMs   *float64
	TimeToFirstByteMs  *float64
	ResponseTimeMs     *float64
	DomContentLoadedMs *float64
	DomInteractiveMs   *float64
	TotalPageLoadMs    *float64

	DocTransferSize *int64
	DocEncodedSize  *int64
	DocDecodedSize  *int64

	TotalResources    int
	TotalTransferSize int64
	TotalEncodedSize  int64

	ResourcesByType   map[string]int
	HTTPResponseCodes map[string]int
	FailedRequests    []FailedRequest

	ScreenshotPath string
	HarPath        string
}

// NewErrorMeasurement builds a synthetic measurement for a job that never
// completed (crash containment / timeout, spec §4.7), still carrying the
// paths the Artifact Store allocated so the directory <-> row invariant
// (I5) holds even for a failed job.
func NewErrorMeasurement(url, hostname, screenshotPath, harPath string, status UrlTestStatus, errMsg string) *TestMeasurement {
	msg := errMsg
	return &TestMeasurement{
		URL:               url,
		Hostname:          hostname,
		TestTimestamp:     time.Now().UTC(),
		Status:            status,
		ErrorMessage:      &msg,
		ResourcesByType:   map[string]int{},
		HTTPResponseCodes: map[string]int{},
		ScreenshotPath:    screenshotPath,
		HarPath:           harPath,
	}
}

// ResourceTiming is one PerformanceResourceTiming entry read from the page
// (spec §4.2 step 5).
type ResourceTiming struct {
	Name          string
	InitiatorType string
	TransferSize  int64
	EncodedSize   int64
	DecodedSize   int64
}

// NavigationTiming is the subset of PerformanceNavigationTiming fields the
// Browser Driver extracts (spec §4.2 step 5, §3 "Navigation timing").
// All values are milliseconds; negative (unmeasurable) phases are clamped
// to zero before being placed in TestMeasurement.
type NavigationTiming struct {
	DNSLookupMs        float64
	TCPConnectionMs    float64
	TLSNegotiationMs   float64
	TimeToFirstByteMs  float64
	ResponseTimeMs     float64
	DomContentLoadedMs float64
	DomInteractiveMs   float64
	TotalPageLoadMs    float64

	DocTransferSize int64
	DocEncodedSize  int64
	DocDecodedSize  int64

	Resources []ResourceTiming
}
