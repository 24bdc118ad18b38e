// Package ai wraps the model layer behind two narrow interfaces: Embedder
// turns text into fixed-width vectors, Generator turns prompts into text.
// The rest of the application depends on these interfaces, never on a
// provider SDK directly.
package ai

import (
	"context"
	"errors"

	"github.com/pgvector/pgvector-go"
)

var (
	// ErrEmptyInput indicates the text handed to the model layer was empty.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmbeddingUnavailable indicates the embedding backend failed after
	// all retry attempts.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrGenerationUnavailable indicates the generation backend failed.
	ErrGenerationUnavailable = errors.New("generation unavailable")
)

// Embedder produces a fixed-width embedding for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
}

// Generator produces free-form text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
