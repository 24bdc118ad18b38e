package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coach0/coach/internal/content"
)

// AddContentSourceInput is the input schema for add_content_source.
type AddContentSourceInput struct {
	URL       string   `json:"url" jsonschema:"Feed or page URL, or an identifier for manual sources"`
	Type      string   `json:"type" jsonschema:"Source type: rss, blog, or manual"`
	Tags      []string `json:"tags,omitempty" jsonschema:"Free-form tags for the source"`
	IngestNow bool     `json:"ingest_now,omitempty" jsonschema:"Fetch, chunk, embed and store the source's content immediately"`
}

func (s *Server) registerAddContentSource() error {
	inputSchema, err := jsonschema.For[AddContentSourceInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "add_content_source",
		Description: "Register a learning content source and optionally ingest it right away. rss and blog sources are fetched during ingestion; manual sources receive content via ingest_content.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in AddContentSourceInput) (*mcp.CallToolResult, any, error) {
		src, err := s.cfg.Sources.AddSource(ctx, content.Source{
			URL:  in.URL,
			Type: in.Type,
			Tags: in.Tags,
		})
		if err != nil {
			return errResult(err)
		}

		s.logger.InfoContext(ctx, "source added via tool",
			slog.String("source_id", src.ID.String()),
			slog.String("type", src.Type))

		payload := map[string]any{"source": src}
		if in.IngestNow && src.Type != content.SourceManual {
			items, chunks, err := s.cfg.Ingester.IngestSource(ctx, src)
			if err != nil {
				// The source is registered regardless; report the fetch
				// failure alongside it rather than failing the call.
				payload["ingest_error"] = err.Error()
			} else {
				payload["items_ingested"] = items
				payload["chunks_stored"] = chunks
			}
		}
		return jsonResult(payload)
	})
	return nil
}

// ListContentSourcesInput is the input schema for list_content_sources.
type ListContentSourcesInput struct{}

func (s *Server) registerListContentSources() error {
	inputSchema, err := jsonschema.For[ListContentSourcesInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "list_content_sources",
		Description: "List every registered content source, newest first.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in ListContentSourcesInput) (*mcp.CallToolResult, any, error) {
		sources, err := s.cfg.Sources.ListSources(ctx)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]any{"sources": sources, "count": len(sources)})
	})
	return nil
}

// IngestContentInput is the input schema for ingest_content.
type IngestContentInput struct {
	SourceID string `json:"source_id,omitempty" jsonschema:"Optional source to attribute manual text to"`
	Title    string `json:"title,omitempty" jsonschema:"Title for manually submitted text"`
	Text     string `json:"text,omitempty" jsonschema:"Raw text to ingest; when empty, all registered sources are fetched instead"`
}

func (s *Server) registerIngestContent() error {
	inputSchema, err := jsonschema.For[IngestContentInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "ingest_content",
		Description: "Ingest learning content. Without text, fetch and ingest every registered rss and blog source. With text, chunk and store the submitted material under the given source.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in IngestContentInput) (*mcp.CallToolResult, any, error) {
		if in.Text == "" {
			report, err := s.cfg.Ingester.IngestAll(ctx)
			if err != nil {
				return errResult(err)
			}
			return jsonResult(report)
		}

		var sourceID uuid.NullUUID
		if in.SourceID != "" {
			id, err := uuid.Parse(in.SourceID)
			if err != nil {
				return errResult(fmt.Errorf("%w: source_id %q is not a UUID", content.ErrInvalidSource, in.SourceID))
			}
			sourceID = uuid.NullUUID{UUID: id, Valid: true}
		}

		chunks, err := s.cfg.Ingester.IngestText(ctx, sourceID, in.Title, in.Text)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]any{"chunks_stored": chunks})
	})
	return nil
}
