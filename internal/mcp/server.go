// Package mcp exposes the learning coach over the Model Context Protocol.
// Each tool validates its input, calls into the domain services, and maps
// domain errors to stable error kinds the client can branch on.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coach0/coach/internal/ai"
	"github.com/coach0/coach/internal/content"
	"github.com/coach0/coach/internal/digest"
	"github.com/coach0/coach/internal/ingest"
	"github.com/coach0/coach/internal/insight"
	"github.com/coach0/coach/internal/progress"
)

// DigestRunner runs one digest for a user.
type DigestRunner interface {
	Run(ctx context.Context, userID string) (digest.Result, error)
}

// SourceStore manages registered content sources.
type SourceStore interface {
	AddSource(ctx context.Context, src content.Source) (content.Source, error)
	ListSources(ctx context.Context) ([]content.Source, error)
}

// ProgressStore manages learner state.
type ProgressStore interface {
	Upsert(ctx context.Context, p progress.UserProgress) (progress.UserProgress, error)
	Get(ctx context.Context, userID string) (progress.UserProgress, error)
}

// InsightReader serves search and daily lookups over stored insights.
type InsightReader interface {
	Search(ctx context.Context, req insight.SearchRequest) ([]insight.Result, error)
	TodayByUser(ctx context.Context, userID string) ([]insight.Insight, error)
}

// Ingester pulls content into the chunk store.
type Ingester interface {
	IngestAll(ctx context.Context) (ingest.Report, error)
	IngestSource(ctx context.Context, src content.Source) (items, chunks int, err error)
	IngestText(ctx context.Context, sourceID uuid.NullUUID, title, text string) (int, error)
}

// Config wires the server's dependencies.
type Config struct {
	Name     string
	Version  string
	Digest   DigestRunner
	Sources  SourceStore
	Progress ProgressStore
	Insights InsightReader
	Ingester Ingester
	Embedder ai.Embedder
	Logger   *slog.Logger
}

// Server wraps the MCP SDK server around the coach services.
type Server struct {
	mcpServer *mcp.Server
	cfg       Config
	logger    *slog.Logger
}

// NewServer creates the MCP server and registers every tool.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Digest == nil || cfg.Sources == nil || cfg.Progress == nil ||
		cfg.Insights == nil || cfg.Ingester == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("all server dependencies are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{mcpServer: mcpServer, cfg: cfg, logger: cfg.Logger}
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run serves MCP on the transport. Blocks until the context is cancelled or
// the transport closes.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	type registration struct {
		name string
		fn   func() error
	}
	for _, r := range []registration{
		{"generate_daily_digest", s.registerGenerateDailyDigest},
		{"get_today_insights", s.registerGetTodayInsights},
		{"search_insights", s.registerSearchInsights},
		{"add_content_source", s.registerAddContentSource},
		{"list_content_sources", s.registerListContentSources},
		{"ingest_content", s.registerIngestContent},
		{"update_progress", s.registerUpdateProgress},
		{"get_progress", s.registerGetProgress},
	} {
		if err := r.fn(); err != nil {
			return fmt.Errorf("registering %s: %w", r.name, err)
		}
	}
	return nil
}
