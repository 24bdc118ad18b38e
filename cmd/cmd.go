// Package cmd provides the coach CLI commands.
//
// Commands:
//   - mcp: Model Context Protocol server over stdio (default)
//   - ingest: fetch and ingest every registered content source once
//   - digest: run one digest for a user and print the result
//
// Signal handling and graceful shutdown are implemented for all
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/coach0/coach/internal/app"
	"github.com/coach0/coach/internal/log"
)

// Execute is the main entry point for the coach CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	// MCP over stdio owns stdout; logs go to stderr.
	logger := log.NewWithWriter(os.Stderr, log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		return runMCP(logger)
	}

	switch os.Args[1] {
	case "mcp":
		return runMCP(logger)
	case "ingest":
		return runIngest(logger)
	case "digest":
		return runDigest(logger, os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func runVersion() {
	fmt.Printf("coach v%s\n", app.Version)
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("coach - personalized learning coach over MCP")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  coach [mcp]          Start the MCP server on stdio (default)")
	fmt.Println("  coach ingest         Fetch and ingest all registered content sources")
	fmt.Println("  coach digest <user>  Run one digest for a user and print the result")
	fmt.Println("  coach --version      Show version information")
	fmt.Println("  coach --help         Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY       Required for the gemini provider")
	fmt.Println("  COACH_*              Override any config key, e.g. COACH_POSTGRES_HOST")
	fmt.Println("  DEBUG                Enable debug logging")
}
