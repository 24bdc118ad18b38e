// Package app initializes and wires the coach's components: configuration,
// database, AI providers, stores, the ingestion pipeline, the digest
// orchestrator, and the MCP server.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coach0/coach/internal/ai"
	"github.com/coach0/coach/internal/config"
	"github.com/coach0/coach/internal/content"
	"github.com/coach0/coach/internal/digest"
	"github.com/coach0/coach/internal/ingest"
	"github.com/coach0/coach/internal/insight"
	"github.com/coach0/coach/internal/mcp"
	"github.com/coach0/coach/internal/progress"
)

// App is the application container. Setup fills it; Close releases it.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Pool     *pgxpool.Pool
	Embedder *ai.Gateway

	Progress *progress.Store
	Content  *content.Store
	Insights *insight.Store

	Pipeline     *ingest.Pipeline
	Orchestrator *digest.Orchestrator
	Server       *mcp.Server

	otelCleanup func()
	dbCleanup   func()
}

// Close shuts down resources in reverse initialization order.
func (a *App) Close() error {
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
