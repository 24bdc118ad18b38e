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

// runDigest runs one digest for the given user and prints the insights.
func runDigest(logger *slog.Logger, args []string) error {
	if len(args) < 1 || args[0] == "" {
		return fmt.Errorf("usage: coach digest <user_id>")
	}
	userID := args[0]

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

	result, err := a.Orchestrator.Run(ctx, userID)
	if err != nil {
		return fmt.Errorf("running digest: %w", err)
	}

	fmt.Printf("run %s: %s\n", result.RunID, result.State)
	fmt.Printf("candidates: %d generated, %d accepted, %d rejected\n",
		result.Report.Candidates, result.Report.Accepted, result.Report.Rejected)
	if result.Summary != "" {
		fmt.Printf("\n%s\n\n", result.Summary)
	}
	for i, ins := range result.Insights {
		fmt.Printf("%d. [%.2f] %s\n", i+1, ins.Score, ins.Content)
	}
	return nil
}
