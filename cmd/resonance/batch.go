package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/resonance/internal/batch"
	"github.com/MikeSquared-Agency/resonance/internal/config"
	"github.com/MikeSquared-Agency/resonance/internal/store"
)

func newBatchCmd() *cobra.Command {
	var bc batch.Config
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Extract every conversation file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bc.Dir = args[0]
			return runBatch(cmd, bc)
		},
	}
	cmd.Flags().StringVar(&bc.StatePath, "state", batch.DefaultStatePath, "Resumable progress file")
	cmd.Flags().StringVarP(&bc.OutDir, "out", "o", "", "Write one JSON result per input into this directory")
	cmd.Flags().IntVarP(&bc.Concurrency, "concurrency", "c", 0, "Parallel extractions (default RESONANCE_BATCH_CONCURRENCY)")
	cmd.Flags().BoolVar(&bc.DryRun, "dry-run", false, "Extract without writing results or touching the database")
	return cmd
}

func runBatch(cmd *cobra.Command, bc batch.Config) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if bc.Concurrency == 0 {
		bc.Concurrency = cfg.BatchConcurrency
	}

	ext, err := buildExtractor(cfg, logger)
	if err != nil {
		return err
	}

	var writer batch.ConversationWriter
	if cfg.DatabaseURL != "" && !bc.DryRun {
		db, err := openStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		writer = db
	}

	state, err := batch.NewRunner(bc, writer, ext, logger).Run(ctx)
	if state != nil {
		fmt.Fprint(cmd.OutOrStdout(), batch.FormatSummary(state))
	}
	return err
}

func openStore(ctx context.Context, url string) (*store.Store, error) {
	db, err := store.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
