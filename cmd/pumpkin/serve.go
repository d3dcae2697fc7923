package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/pumpkin/internal/query"
	"github.com/ternarybob/pumpkin/internal/server"
	"github.com/ternarybob/pumpkin/internal/storage/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API against the data store",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
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

	q := query.New(sqlite.NewRunStore(db, logger), sqlite.NewUrlTestStore(db, logger), logger)
	srv := server.New(cfg, q, func() error { return db.Ping(context.Background()) }, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
