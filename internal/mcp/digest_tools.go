package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coach0/coach/internal/insight"
)

// parseTimeFilter parses an optional RFC 3339 tool argument; empty means no
// filter.
func parseTimeFilter(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not an RFC 3339 timestamp", insight.ErrInvalidQuery, field, s)
	}
	return t, nil
}

// GenerateDailyDigestInput is the input schema for generate_daily_digest.
type GenerateDailyDigestInput struct {
	UserID string `json:"user_id" jsonschema:"The learner to generate a digest for"`
}

func (s *Server) registerGenerateDailyDigest() error {
	inputSchema, err := jsonschema.For[GenerateDailyDigestInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "generate_daily_digest",
		Description: "Run the daily digest pipeline: retrieve relevant learning content, generate insight candidates, score their quality, and persist the ones that pass the gate. Returns a short digest summary, the accepted insights, and a run report. An empty digest is a valid outcome.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in GenerateDailyDigestInput) (*mcp.CallToolResult, any, error) {
		if in.UserID == "" {
			return errResult(fmt.Errorf("%w: user_id is required", insight.ErrInvalidQuery))
		}

		result, err := s.cfg.Digest.Run(ctx, in.UserID)
		if err != nil {
			return errResult(err)
		}

		s.logger.InfoContext(ctx, "digest tool complete",
			slog.String("user_id", in.UserID),
			slog.Int("insights", len(result.Insights)))
		return jsonResult(result)
	})
	return nil
}

// GetTodayInsightsInput is the input schema for get_today_insights.
type GetTodayInsightsInput struct {
	UserID string `json:"user_id" jsonschema:"The learner whose insights to return"`
}

func (s *Server) registerGetTodayInsights() error {
	inputSchema, err := jsonschema.For[GetTodayInsightsInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "get_today_insights",
		Description: "Return the insights generated for the learner since midnight, newest first.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in GetTodayInsightsInput) (*mcp.CallToolResult, any, error) {
		if in.UserID == "" {
			return errResult(fmt.Errorf("%w: user_id is required", insight.ErrInvalidQuery))
		}

		insights, err := s.cfg.Insights.TodayByUser(ctx, in.UserID)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]any{"insights": insights, "count": len(insights)})
	})
	return nil
}

// SearchInsightsInput is the input schema for search_insights.
type SearchInsightsInput struct {
	UserID string   `json:"user_id" jsonschema:"The learner whose insights to search"`
	Query  string   `json:"query" jsonschema:"Free-text search query"`
	Topics []string `json:"topics,omitempty" jsonschema:"Only insights tagged with any of these topics"`
	Week   int      `json:"week,omitempty" jsonschema:"Only insights from this week number"`
	Since  string   `json:"since,omitempty" jsonschema:"Only insights created at or after this RFC 3339 timestamp"`
	Until  string   `json:"until,omitempty" jsonschema:"Only insights created before this RFC 3339 timestamp"`
	Limit  int      `json:"limit,omitempty" jsonschema:"Maximum results, defaults to 10"`
}

func (s *Server) registerSearchInsights() error {
	inputSchema, err := jsonschema.For[SearchInsightsInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "search_insights",
		Description: "Search stored insights by meaning. Results are ranked by a blend of semantic similarity and recency; optional topic, week, and date filters narrow the set.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in SearchInsightsInput) (*mcp.CallToolResult, any, error) {
		// Reject bad input before the embedding round-trip.
		if in.UserID == "" {
			return errResult(fmt.Errorf("%w: user_id is required", insight.ErrInvalidQuery))
		}
		if in.Query == "" {
			return errResult(fmt.Errorf("%w: query is required", insight.ErrInvalidQuery))
		}
		if in.Week < 0 {
			return errResult(fmt.Errorf("%w: week %d", insight.ErrInvalidQuery, in.Week))
		}
		if in.Limit <= 0 {
			in.Limit = 10
		}
		since, err := parseTimeFilter(in.Since, "since")
		if err != nil {
			return errResult(err)
		}
		until, err := parseTimeFilter(in.Until, "until")
		if err != nil {
			return errResult(err)
		}
		if !since.IsZero() && !until.IsZero() && until.Before(since) {
			return errResult(fmt.Errorf("%w: until %s before since %s", insight.ErrInvalidQuery, in.Until, in.Since))
		}

		vec, err := s.cfg.Embedder.Embed(ctx, in.Query)
		if err != nil {
			return errResult(err)
		}

		results, err := s.cfg.Insights.Search(ctx, insight.SearchRequest{
			UserID: in.UserID,
			Query:  vec,
			Topics: in.Topics,
			Week:   in.Week,
			Since:  since,
			Until:  until,
			Limit:  in.Limit,
		})
		if err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]any{"results": results, "count": len(results)})
	})
	return nil
}
