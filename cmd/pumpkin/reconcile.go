package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ternarybob/pumpkin/internal/artifacts"
	"github.com/ternarybob/pumpkin/internal/reconcile"
	"github.com/ternarybob/pumpkin/internal/storage/sqlite"
)

var reconcileDryRun bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Delete on-disk artifact directories no url_tests row references",
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false,
		"report orphaned directories without deleting them")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.Database.URL), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	r := reconcile.New(artifacts.New(cfg.Artifacts.Root, logger), db, sqlite.NewUrlTestStore(db, logger), logger)

	result, err := r.Clean(ctx, reconcileDryRun)
	if err != nil {
		return err
	}

	logger.Info().Int("kept", len(result.Kept)).Int("orphans", len(result.Orphans)).
		Int("deleted", len(result.Deleted)).Bool("dry_run", reconcileDryRun).Msg("reconcile complete")
	for _, path := range result.Orphans {
		logger.Info().Str("path", path).Msg("orphaned artifact directory")
	}
	return nil
}
