package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	genkitai "github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

const (
	// VectorDimension is the embedding width stored in pgvector columns.
	VectorDimension int32 = 768

	embedAttempts    = 3
	embedBackoffBase = 200 * time.Millisecond
)

// Gateway is an Embedder backed by a Genkit embedder. Transient backend
// failures are retried with exponential backoff; context cancellation is
// surfaced immediately without further attempts.
type Gateway struct {
	embedder genkitai.Embedder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGateway creates an embedding gateway. timeout bounds each attempt.
// If logger is nil, slog.Default() is used.
func NewGateway(embedder genkitai.Embedder, timeout time.Duration, logger *slog.Logger) (*Gateway, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{embedder: embedder, timeout: timeout, logger: logger}, nil
}

// Embed generates a 768-dimensional vector for text. It never returns a
// partial vector: on failure the caller gets ErrEmbeddingUnavailable
// wrapped around the last attempt's error.
func (g *Gateway) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	if text == "" {
		return pgvector.Vector{}, ErrEmptyInput
	}

	var lastErr error
	for attempt := range embedAttempts {
		if attempt > 0 {
			backoff := embedBackoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return pgvector.Vector{}, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			g.logger.DebugContext(ctx, "retrying embedding",
				slog.Int("attempt", attempt+1),
				slog.String("last_error", lastErr.Error()))
		}

		vec, err := g.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		// Only the parent context decides whether retrying can help; the
		// attempt error also reports DeadlineExceeded when the per-attempt
		// timeout fires, and a slow backend deserves its retries.
		if ctx.Err() != nil {
			return pgvector.Vector{}, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, ctx.Err())
		}
		lastErr = err
	}

	return pgvector.Vector{}, fmt.Errorf("%w after %d attempts: %w", ErrEmbeddingUnavailable, embedAttempts, lastErr)
}

func (g *Gateway) embedOnce(ctx context.Context, text string) (pgvector.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	dim := VectorDimension
	resp, err := g.embedder.Embed(ctx, &genkitai.EmbedRequest{
		Input:   []*genkitai.Document{genkitai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	if got := len(resp.Embeddings[0].Embedding); got != int(VectorDimension) {
		return pgvector.Vector{}, fmt.Errorf("embedding dimension %d, want %d", got, VectorDimension)
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
