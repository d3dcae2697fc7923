package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ternarybob/pumpkin/internal/common"
)

var scheduleWorkers int

var scheduleCmd = &cobra.Command{
	Use:   "schedule <cron-expr> <url-file>",
	Short: "Run a batch repeatedly on a cron schedule",
	Long: `schedule is a convenience over invoking "batch" by hand on a timer: it
parses a standard five-field cron expression and runs the same batch
logic at every tick until interrupted.`,
	Args: cobra.ExactArgs(2),
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().IntVar(&scheduleWorkers, "workers", 0,
		"worker pool size (defaults to the config's scheduler.default_workers)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cronExpr, urlFile := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	workers := scheduleWorkers
	if workers <= 0 {
		workers = cfg.Scheduler.DefaultWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	_, err = c.AddFunc(cronExpr, func() {
		logger.Info().Str("cron", cronExpr).Str("url_file", urlFile).Msg("scheduled batch starting")
		// ctx is shared across every tick: a signal received mid-batch
		// gives that tick's executeBatch call the same grace-period-then-
		// abort treatment a one-shot "batch" invocation gets.
		allPassed, err := executeBatch(ctx, cfg, urlFile, workers)
		if err != nil {
			logger.Error().Err(err).Msg("scheduled batch failed")
			return
		}
		logger.Info().Bool("all_passed", allPassed).Msg("scheduled batch finished")
	})
	if err != nil {
		return fmt.Errorf("%w: invalid cron expression %q: %v", common.ErrBadRequest, cronExpr, err)
	}

	c.Start()
	logger.Info().Str("cron", cronExpr).Str("url_file", urlFile).Msg("schedule running, waiting for ticks")

	<-ctx.Done()
	logger.Info().Msg("interrupt received, stopping cron and waiting for any in-flight batch to finish")

	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info().Msg("schedule stopped")
	return nil
}
