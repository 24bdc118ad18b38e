package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coach0/coach/internal/ai"
	"github.com/coach0/coach/internal/content"
	"github.com/coach0/coach/internal/digest"
	"github.com/coach0/coach/internal/insight"
	"github.com/coach0/coach/internal/progress"
)

// Error kinds returned to MCP clients. Clients branch on the kind, so the
// set is part of the tool contract.
const (
	kindInputInvalid    = "input_invalid"
	kindAlreadyExists   = "already_exists"
	kindNotFound        = "not_found"
	kindTransient       = "transient_unavailable"
	kindGenerationParse = "generation_parse"
	kindTimeout         = "timeout"
	kindPersistFailed   = "persist_failed"
)

// classify maps a domain error to a client-facing kind. Unknown errors get
// no kind and are propagated as protocol errors instead.
func classify(err error) (kind string, ok bool) {
	var runErr *digest.RunError
	if errors.As(err, &runErr) {
		switch runErr.Reason {
		case digest.ReasonTimeout:
			return kindTimeout, true
		case digest.ReasonPersist:
			return kindPersistFailed, true
		case digest.ReasonGeneration:
			if errors.Is(err, digest.ErrGenerationParse) {
				return kindGenerationParse, true
			}
			return kindTransient, true
		case digest.ReasonProgress:
			if errors.Is(err, progress.ErrNotFound) {
				return kindNotFound, true
			}
		}
	}

	switch {
	case errors.Is(err, progress.ErrInvalidUserID),
		errors.Is(err, progress.ErrInvalidWeek),
		errors.Is(err, content.ErrInvalidSource),
		errors.Is(err, insight.ErrInvalidQuery),
		errors.Is(err, ai.ErrEmptyInput):
		return kindInputInvalid, true
	case errors.Is(err, content.ErrSourceExists):
		return kindAlreadyExists, true
	case errors.Is(err, progress.ErrNotFound),
		errors.Is(err, content.ErrSourceNotFound):
		return kindNotFound, true
	case errors.Is(err, ai.ErrEmbeddingUnavailable),
		errors.Is(err, ai.ErrGenerationUnavailable):
		return kindTransient, true
	case errors.Is(err, digest.ErrGenerationParse):
		return kindGenerationParse, true
	case errors.Is(err, context.DeadlineExceeded):
		return kindTimeout, true
	}
	return "", false
}

// errResult turns a classified domain error into a tool error result. For
// unclassified errors it returns a protocol error so the SDK reports an
// internal failure.
func errResult(err error) (*mcp.CallToolResult, any, error) {
	kind, ok := classify(err)
	if !ok {
		return nil, nil, fmt.Errorf("internal error: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error [%s]: %v", kind, err)}},
		IsError: true,
	}, nil, nil
}

// jsonResult marshals the payload into a text content result.
func jsonResult(payload any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
