package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/coach0/coach/internal/ai"
	"github.com/coach0/coach/internal/content"
)

// ChunkSearcher is the slice of the content store retrieval needs.
type ChunkSearcher interface {
	SearchByEmbedding(ctx context.Context, query pgvector.Vector, threshold float64, limit int) ([]content.Match, error)
}

// Retriever fans retrieval queries out concurrently and merges the results
// into one deduplicated context set.
type Retriever struct {
	searcher  ChunkSearcher
	embedder  ai.Embedder
	threshold float64
	maxChunks int
	logger    *slog.Logger
}

// NewRetriever creates a retriever. threshold is the similarity floor;
// maxChunks caps the merged result.
func NewRetriever(searcher ChunkSearcher, embedder ai.Embedder, threshold float64, maxChunks int, logger *slog.Logger) (*Retriever, error) {
	if searcher == nil || embedder == nil {
		return nil, fmt.Errorf("searcher and embedder are required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0, 1]", threshold)
	}
	if maxChunks < 1 {
		return nil, fmt.Errorf("max chunks must be positive, got %d", maxChunks)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		searcher:  searcher,
		embedder:  embedder,
		threshold: threshold,
		maxChunks: maxChunks,
		logger:    logger,
	}, nil
}

// Retrieve runs every query concurrently and returns the union of matches,
// best similarity first. A chunk matched by several queries appears once
// with its best similarity. An empty result is legitimate: the corpus holds
// nothing relevant today.
func (r *Retriever) Retrieve(ctx context.Context, queries []string) ([]content.Match, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries to retrieve")
	}

	var mu sync.Mutex
	best := make(map[uuid.UUID]content.Match)

	g, gctx := errgroup.WithContext(ctx)
	for _, query := range queries {
		g.Go(func() error {
			vec, err := r.embedder.Embed(gctx, query)
			if err != nil {
				return fmt.Errorf("embedding query %q: %w", query, err)
			}
			matches, err := r.searcher.SearchByEmbedding(gctx, vec, r.threshold, r.maxChunks)
			if err != nil {
				return fmt.Errorf("searching for %q: %w", query, err)
			}

			mu.Lock()
			for _, m := range matches {
				if prev, ok := best[m.ID]; !ok || m.Similarity > prev.Similarity {
					best[m.ID] = m
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]content.Match, 0, len(best))
	for _, m := range best {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Similarity > merged[j].Similarity })
	if len(merged) > r.maxChunks {
		merged = merged[:r.maxChunks]
	}

	r.logger.DebugContext(ctx, "retrieval complete",
		slog.Int("queries", len(queries)),
		slog.Int("chunks", len(merged)))
	return merged, nil
}
