// Package content manages learning material: registered sources (RSS feeds,
// blogs, manual notes) and the embedded chunks extracted from them. Chunks
// carry pgvector embeddings and are retrieved by cosine similarity with a
// hard floor so weak matches never reach the generator.
package content

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

var (
	// ErrInvalidSource indicates a source failed validation.
	ErrInvalidSource = errors.New("invalid source")

	// ErrSourceExists indicates the source URL is already registered.
	ErrSourceExists = errors.New("source already exists")

	// ErrSourceNotFound indicates no source with the given ID exists.
	ErrSourceNotFound = errors.New("source not found")

	// ErrInvalidChunk indicates a chunk failed validation before storage.
	ErrInvalidChunk = errors.New("invalid chunk")
)

// Source types accepted by AddSource.
const (
	SourceRSS    = "rss"
	SourceBlog   = "blog"
	SourceManual = "manual"
)

// Source is a registered provider of learning material.
type Source struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"source_url"`
	Type      string    `json:"source_type"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the source before it touches storage. Manual sources may
// use any non-empty URL-shaped identifier; rss and blog sources need an
// http(s) URL.
func (s *Source) Validate() error {
	switch s.Type {
	case SourceRSS, SourceBlog, SourceManual:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSource, s.Type)
	}
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidSource)
	}
	if s.Type == SourceManual {
		return nil
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidSource, s.URL)
	}
	return nil
}

// Chunk is one embedded fragment of learning material.
type Chunk struct {
	ID        uuid.UUID       `json:"id"`
	SourceID  uuid.NullUUID   `json:"source_id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Embedding pgvector.Vector `json:"-"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks the chunk before it touches storage.
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidChunk)
	}
	if len(c.Embedding.Slice()) == 0 {
		return fmt.Errorf("%w: missing embedding", ErrInvalidChunk)
	}
	return nil
}

// Match is a chunk returned from similarity search together with its cosine
// similarity to the query vector, in [0, 1].
type Match struct {
	Chunk
	Similarity float64 `json:"similarity"`
}
