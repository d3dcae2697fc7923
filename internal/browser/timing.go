package browser

import (
	"context"
	"encoding/json"
	"os"

	"github.com/chromedp/chromedp"

	"github.com/ternarybob/pumpkin/internal/models"
)

// performanceScript reads window.performance.getEntriesByType for
// "navigation" and "resource" and shapes the result so it unmarshals
// directly into rawTiming (spec §4.2 step 5).
const performanceScript = `
(() => {
  const nav = performance.getEntriesByType("navigation")[0] || {};
  const resources = performance.getEntriesByType("resource").map(r => ({
    name: r.name,
    initiatorType: r.initiatorType || "other",
    transferSize: r.transferSize || 0,
    encodedBodySize: r.encodedBodySize || 0,
    decodedBodySize: r.decodedBodySize || 0,
  }));
  return JSON.stringify({
    dnsLookup: (nav.domainLookupEnd || 0) - (nav.domainLookupStart || 0),
    tcpConnection: (nav.connectEnd || 0) - (nav.connectStart || 0),
    tlsNegotiation: nav.secureConnectionStart ? (nav.connectEnd - nav.secureConnectionStart) : 0,
    timeToFirstByte: (nav.responseStart || 0) - (nav.requestStart || 0),
    responseTime: (nav.responseEnd || 0) - (nav.responseStart || 0),
    domContentLoaded: (nav.domContentLoadedEventEnd || 0) - (nav.startTime || 0),
    domInteractive: (nav.domInteractive || 0) - (nav.startTime || 0),
    totalPageLoad: (nav.loadEventEnd || 0) - (nav.startTime || 0),
    docTransferSize: nav.transferSize || 0,
    docEncodedSize: nav.encodedBodySize || 0,
    docDecodedSize: nav.decodedBodySize || 0,
    resources: resources,
  });
})()
`

type rawResourceTiming struct {
	Name            string  `json:"name"`
	InitiatorType   string  `json:"initiatorType"`
	TransferSize    int64   `json:"transferSize"`
	EncodedBodySize int64   `json:"encodedBodySize"`
	DecodedBodySize int64   `json:"decodedBodySize"`
}

type rawTiming struct {
	DNSLookup         float64             `json:"dnsLookup"`
	TCPConnection     float64             `json:"tcpConnection"`
	TLSNegotiation    float64             `json:"tlsNegotiation"`
	TimeToFirstByte   float64             `json:"timeToFirstByte"`
	ResponseTime      float64             `json:"responseTime"`
	DomContentLoaded  float64             `json:"domContentLoaded"`
	DomInteractive    float64             `json:"domInteractive"`
	TotalPageLoad     float64             `json:"totalPageLoad"`
	DocTransferSize   int64               `json:"docTransferSize"`
	DocEncodedSize    int64               `json:"docEncodedSize"`
	DocDecodedSize    int64               `json:"docDecodedSize"`
	Resources         []rawResourceTiming `json:"resources"`
}

// readNavigationTiming evaluates performanceScript in the page and decodes
// the result into models.NavigationTiming.
func readNavigationTiming(ctx context.Context) (*models.NavigationTiming, error) {
	var raw string
	if err := chromedp.Run(ctx, chromedp.Evaluate(performanceScript, &raw)); err != nil {
		return nil, err
	}

	var t rawTiming
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, err
	}

	resources := make([]models.ResourceTiming, 0, len(t.Resources))
	for _, r := range t.Resources {
		resources = append(resources, models.ResourceTiming{
			Name:          r.Name,
			InitiatorType: r.InitiatorType,
			TransferSize:  r.TransferSize,
			EncodedSize:   r.EncodedBodySize,
			DecodedSize:   r.DecodedBodySize,
		})
	}

	return &models.NavigationTiming{
		DNSLookupMs:        t.DNSLookup,
		TCPConnectionMs:    t.TCPConnection,
		TLSNegotiationMs:   t.TLSNegotiation,
		TimeToFirstByteMs:  t.TimeToFirstByte,
		ResponseTimeMs:     t.ResponseTime,
		DomContentLoadedMs: t.DomContentLoaded,
		DomInteractiveMs:   t.DomInteractive,
		TotalPageLoadMs:    t.TotalPageLoad,
		DocTransferSize:    t.DocTransferSize,
		DocEncodedSize:     t.DocEncodedSize,
		DocDecodedSize:     t.DocDecodedSize,
		Resources:          resources,
	}, nil
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// writeHarFile writes a minimal HAR 1.2 document reflecting the entries
// the recorder observed. The HAR Analyzer (internal/har) is the
// authoritative reader of this shape; kept minimal here since the driver
// only needs to persist what it already captured, not a full HAR.
//
// Each entry carries the sub-resource's own URL (rec.entries), not the
// top-level page URL: GetFailedRequestsForTest (spec.md §4.3/§4.8) is
// only useful if a failed entry says which request failed.
func writeHarFile(path string, rec *harRecorder) error {
	type harResponse struct {
		Status int `json:"status"`
	}
	type harRequest struct {
		URL string `json:"url"`
	}
	type harEntry struct {
		Request  harRequest  `json:"request"`
		Response harResponse `json:"response"`
	}
	type harLog struct {
		Entries []harEntry `json:"entries"`
	}
	type har struct {
		Log harLog `json:"log"`
	}

	doc := har{}
	for _, rr := range rec.entries {
		url := rr.url
		if url == "" {
			url = rec.url
		}
		doc.Log.Entries = append(doc.Log.Entries, harEntry{
			Request:  harRequest{URL: url},
			Response: harResponse{Status: rr.status},
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
