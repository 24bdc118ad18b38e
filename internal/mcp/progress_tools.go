package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coach0/coach/internal/progress"
)

// UpdateProgressInput is the input schema for update_progress.
type UpdateProgressInput struct {
	UserID string   `json:"user_id" jsonschema:"The learner to update"`
	Week   int      `json:"week" jsonschema:"Current week number, starting at 1"`
	Topics []string `json:"topics,omitempty" jsonschema:"Topics currently being studied; replaces the stored list"`
	Goals  []string `json:"goals,omitempty" jsonschema:"Learning goals; replaces the stored list"`
}

func (s *Server) registerUpdateProgress() error {
	inputSchema, err := jsonschema.For[UpdateProgressInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "update_progress",
		Description: "Replace the learner's progress record: week number, current topics, and learning goals. The write replaces the whole record, so omitted topics and goals are cleared.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in UpdateProgressInput) (*mcp.CallToolResult, any, error) {
		saved, err := s.cfg.Progress.Upsert(ctx, progress.UserProgress{
			UserID:        in.UserID,
			CurrentWeek:   in.Week,
			CurrentTopics: in.Topics,
			LearningGoals: in.Goals,
		})
		if err != nil {
			return errResult(err)
		}

		s.logger.InfoContext(ctx, "progress updated via tool",
			slog.String("user_id", in.UserID),
			slog.Int("week", in.Week))
		return jsonResult(saved)
	})
	return nil
}

// GetProgressInput is the input schema for get_progress.
type GetProgressInput struct {
	UserID string `json:"user_id" jsonschema:"The learner to look up"`
}

func (s *Server) registerGetProgress() error {
	inputSchema, err := jsonschema.For[GetProgressInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "get_progress",
		Description: "Return the learner's stored progress: week, topics, and goals.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in GetProgressInput) (*mcp.CallToolResult, any, error) {
		p, err := s.cfg.Progress.Get(ctx, in.UserID)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(p)
	})
	return nil
}
