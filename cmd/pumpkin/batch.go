package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/pumpkin/internal/artifacts"
	"github.com/ternarybob/pumpkin/internal/browser"
	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/ingest"
	"github.com/ternarybob/pumpkin/internal/runs"
	"github.com/ternarybob/pumpkin/internal/scheduler"
	"github.com/ternarybob/pumpkin/internal/storage/sqlite"
)

// gracePeriod is how long an in-flight batch gets to finish or abort its
// own jobs after a SIGINT/SIGTERM before executeBatch force-cancels the
// scheduler itself (spec.md §5 "Cancellation").
const gracePeriod = 5 * time.Second

var batchWorkers int

var batchCmd = &cobra.Command{
	Use:   "batch <url-file>",
	Short: "Run a batch of URLs end to end and persist the results",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0,
		"worker pool size (defaults to the config's scheduler.default_workers)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	urlFile := cfg.TestURL
	if len(args) == 1 {
		urlFile = args[0]
	}
	if urlFile == "" {
		return fmt.Errorf("%w: a URL list file is required (positional arg or TEST_URL)", common.ErrBadRequest)
	}

	workers := batchWorkers
	if workers <= 0 {
		workers = cfg.Scheduler.DefaultWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	allPassed, err := executeBatch(ctx, cfg, urlFile, workers)
	if err != nil {
		return err
	}
	if !allPassed {
		os.Exit(1)
	}
	return nil
}

// executeBatch runs C6+C7+C2+C3+C5 end to end over the URLs in urlFile: it
// opens the data store, resolves (or creates) the run context, drives the
// batch through the Browser Driver and Ingestor, and finalizes the run.
// Shared by the batch and schedule subcommands so a recurring schedule
// runs the exact same path a one-shot batch invocation does.
//
// ctx being cancelled (SIGINT/SIGTERM at the batch subcommand, or a
// schedule shutdown) does not tear the scheduler down immediately: the
// run is given gracePeriod to let in-flight jobs finish or time out on
// their own, and only then is the scheduler force-cancelled and the run
// marked FAILED via AbortRun (spec.md §5).
func executeBatch(ctx context.Context, cfg *common.Config, urlFile string, workers int) (allPassed bool, err error) {
	jobs, err := loadJobs(urlFile)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrRunAborted, err)
	}
	if len(jobs) == 0 {
		return false, fmt.Errorf("%w: %s contains no URLs", common.ErrRunAborted, urlFile)
	}

	db, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.Database.URL), logger)
	if err != nil {
		return false, err
	}
	defer db.Close()

	runStore := sqlite.NewRunStore(db, logger)
	coordinator := runs.New(runStore, logger)

	var explicitRunID *int64
	if cfg.TestRunID != 0 {
		id := int64(cfg.TestRunID)
		explicitRunID = &id
	}
	run, err := coordinator.EnsureRunContext(ctx, explicitRunID, len(jobs), workers)
	if err != nil {
		return false, err
	}

	pool := browser.NewPool(logger)
	if err := pool.Init(browser.PoolConfig{
		Size:      workers,
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
	}); err != nil {
		_ = coordinator.AbortRun(context.Background(), run.ID, 0)
		return false, fmt.Errorf("%w: %v", common.ErrRunAborted, err)
	}
	defer pool.Shutdown(context.Background())

	driver := browser.NewChromeDriver(pool, logger)
	artifactStore := artifacts.New(cfg.Artifacts.Root, logger)
	ingestor := ingest.New(sqlite.NewUrlTestStore(db, logger), logger)
	sched := scheduler.New(driver, artifactStore, ingestor, logger)

	// runCtx drives the scheduler and is deliberately detached from ctx's
	// cancellation: an interrupt starts the grace-period watcher below
	// rather than cutting every in-flight job off mid-navigation.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	interrupted := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			close(interrupted)
			select {
			case <-time.After(gracePeriod):
				logger.Warn().Dur("grace_period", gracePeriod).
					Msg("interrupt grace period expired, cancelling in-flight jobs")
				runCancel()
			case <-runCtx.Done():
			}
		case <-runCtx.Done():
		}
	}()

	start := time.Now()
	allPassed, results, err := sched.Run(runCtx, run.ID, jobs, workers)
	duration := time.Since(start)

	select {
	case <-interrupted:
		_ = coordinator.AbortRun(context.Background(), run.ID, duration.Milliseconds())
		return false, fmt.Errorf("%w: run interrupted by signal", common.ErrRunAborted)
	default:
	}

	if err != nil {
		_ = coordinator.AbortRun(context.Background(), run.ID, duration.Milliseconds())
		return false, err
	}
	if err := coordinator.FinalizeRun(context.Background(), run.ID, duration.Milliseconds()); err != nil {
		return false, err
	}

	logger.Info().Int64("run_id", run.ID).Int("jobs", len(results)).Bool("all_passed", allPassed).
		Dur("duration", duration).Msg("batch run complete")

	return allPassed, nil
}

// loadJobs reads a URL list file (spec.md §6): one URL per line, LF
// terminated, lines trimmed, empty lines ignored, each URL must start with
// http:// or https://.
func loadJobs(path string) ([]scheduler.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var jobs []scheduler.Job
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
			return nil, fmt.Errorf("invalid URL %q: must start with http:// or https://", line)
		}
		parsed, err := url.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", line, err)
		}
		jobs = append(jobs, scheduler.Job{URL: line, Hostname: parsed.Hostname()})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}
