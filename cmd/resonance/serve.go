package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/resonance/internal/api"
	"github.com/MikeSquared-Agency/resonance/internal/config"
	"github.com/MikeSquared-Agency/resonance/internal/fetch"
	"github.com/MikeSquared-Agency/resonance/internal/hermes"
	"github.com/MikeSquared-Agency/resonance/internal/processor"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the share event consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	logger.Info("resonance starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ext, err := buildExtractor(cfg, logger)
	if err != nil {
		return err
	}

	fetcher, err := fetch.New(fetch.Options{
		Mode:       cfg.FetchMode,
		Timeout:    cfg.FetchTimeout,
		BrowserURL: cfg.BrowserURL,
	})
	if err != nil {
		return err
	}
	logger.Info("fetcher ready", "mode", cfg.FetchMode)

	// Database is optional; extraction works without persistence.
	var (
		writer processor.ConversationWriter
		reader api.ConversationReader
	)
	if cfg.DatabaseURL != "" {
		db, err := openStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		writer, reader = db, db
		logger.Info("database connected")
	} else {
		logger.Warn("DATABASE_URL not set, running without persistence")
	}

	// NATS/Hermes
	var (
		publisher    processor.Publisher
		hermesClient *hermes.Client
	)
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect NATS: %w", err)
		}
		defer hermesClient.Close()
		publisher = hermesClient
		logger.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		logger.Warn("NATS_URL not set, running without event bus")
	}

	proc := processor.New(ext, fetcher, writer, publisher, logger)

	if hermesClient != nil {
		if err := hermesClient.QueueSubscribe(hermes.SubjectShareSubmitted, hermes.QueueGroup, proc.HandleShareSubmitted); err != nil {
			return fmt.Errorf("subscribe to share events: %w", err)
		}
		if err := hermesClient.Publish("swarm.agent.resonance.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
		}); err != nil {
			logger.Warn("failed to publish registration", "error", err)
		}
	}

	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, reader, logger)
	if hermesClient != nil {
		srv.SetEventBus(hermesClient)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("resonance ready", "port", cfg.Port)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}
	logger.Info("resonance stopped", "processed", proc.Stats().Processed, "failed", proc.Stats().Failed)
	return nil
}
