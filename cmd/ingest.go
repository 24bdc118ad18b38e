package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/coach0/coach/internal/app"
	"github.com/coach0/coach/internal/config"
)

// runIngest fetches and ingests every registered source once, then exits.
func runIngest(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	report, err := a.Pipeline.IngestAll(ctx)
	if err != nil {
		return fmt.Errorf("ingesting sources: %w", err)
	}

	fmt.Printf("sources: %d seen, %d failed\n", report.SourcesSeen, report.SourcesFailed)
	fmt.Printf("items ingested: %d\n", report.ItemsIngested)
	fmt.Printf("chunks stored: %d\n", report.ChunksStored)
	return nil
}
