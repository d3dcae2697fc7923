// Package scheduler implements the Scheduler (C7): a bounded worker pool
// that drives every URL in a batch through the Browser Driver and the
// Ingestor, containing any single job's crash or timeout so the rest of
// the batch keeps running (spec.md §4.7, §5).
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/pumpkin/internal/artifacts"
	"github.com/ternarybob/pumpkin/internal/browser"
	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/ingest"
	"github.com/ternarybob/pumpkin/internal/models"
)

// perJobDeadline is the hard ceiling on one URL's Browser Driver call
// (spec.md §5); the Ingestor insert that follows runs on the caller's
// context.
const perJobDeadline = 120 * time.Second

// Job is one URL to be tested, assigned a target hostname up front so the
// Artifact Store can name its directory before the browser ever opens the
// page.
type Job struct {
	URL      string
	Hostname string
}

// Result is the per-job outcome the Scheduler reports back, win or lose.
type Result struct {
	Job     Job
	UrlTest *models.UrlTest
	Err     error
}

// Scheduler runs a flat list of jobs across a bounded pool of workers.
type Scheduler struct {
	driver    browser.Driver
	artifacts *artifacts.Store
	ingestor  *ingest.Ingestor
	logger    arbor.ILogger
}

func New(driver browser.Driver, artifactStore *artifacts.Store, ingestor *ingest.Ingestor, logger arbor.ILogger) *Scheduler {
	return &Scheduler{driver: driver, artifacts: artifactStore, ingestor: ingestor, logger: logger}
}

// Run drives every job in jobs through the Browser Driver and Ingestor
// using up to requestedWorkers concurrent goroutines (spec.md §4.7:
// "W > N leaves the excess workers idle" is satisfied by never starting
// more workers than there are jobs). An empty jobs list returns
// allPassed=true immediately with no workers started (spec.md §8 edge
// case).
func (s *Scheduler) Run(ctx context.Context, runID int64, jobs []Job, requestedWorkers int) (allPassed bool, results []Result, err error) {
	if len(jobs) == 0 {
		return true, nil, nil
	}

	workers := requestedWorkers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers < 1 {
		workers = 1
	}

	jobCh := make(chan Job, len(jobs))
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	resultCh := make(chan Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for job := range jobCh {
				resultCh <- s.runOne(gctx, runID, job)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return false, nil, fmt.Errorf("%w: %v", common.ErrRunAborted, err)
	}
	close(resultCh)

	allPassed = true
	for r := range resultCh {
		results = append(results, r)
		if r.Err != nil || r.UrlTest == nil || r.UrlTest.Status != models.UrlTestStatusPassed {
			allPassed = false
		}
	}
	return allPassed, results, nil
}

// runOne drives a single job to completion with a bounded deadline and
// panic containment (spec.md §4.7 "crash containment"): a panicking
// driver call is recovered and turned into a synthetic ERROR measurement
// rather than taking down the worker or the batch.
func (s *Scheduler) runOne(ctx context.Context, runID int64, job Job) (result Result) {
	result.Job = job

	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Error().Str("url", job.URL).Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).Msg("recovered from panic in job, recording as ERROR")
			}
			result.UrlTest, result.Err = s.recordSynthetic(ctx, runID, job, models.UrlTestStatusError, fmt.Sprintf("panic: %v", r), "", "")
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, perJobDeadline)
	defer cancel()

	allocated, err := s.artifacts.AllocateTestDir(job.URL, time.Now())
	if err != nil {
		result.UrlTest, result.Err = s.recordSynthetic(ctx, runID, job, models.UrlTestStatusError, err.Error(), "", "")
		return result
	}

	measurement, err := s.driver.RunTest(jobCtx, job.URL, job.Hostname, allocated.ScreenshotPath, allocated.HarPath)
	if err != nil {
		status := models.UrlTestStatusError
		if jobCtx.Err() == context.DeadlineExceeded {
			status = models.UrlTestStatusTimeout
		}
		result.UrlTest, result.Err = s.recordSynthetic(ctx, runID, job, status, err.Error(), allocated.ScreenshotPath, allocated.HarPath)
		return result
	}

	t, err := s.ingestor.Insert(ctx, runID, measurement)
	result.UrlTest = t
	result.Err = err
	return result
}

func (s *Scheduler) recordSynthetic(ctx context.Context, runID int64, job Job, status models.UrlTestStatus, errMsg, screenshotPath, harPath string) (*models.UrlTest, error) {
	m := models.NewErrorMeasurement(job.URL, job.Hostname, screenshotPath, harPath, status, errMsg)
	return s.ingestor.Insert(ctx, runID, m)
}
