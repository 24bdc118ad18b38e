package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/coach0/coach/internal/ai"
	"github.com/coach0/coach/internal/content"
)

// ContentStore is the slice of the content store the pipeline needs.
type ContentStore interface {
	ListSources(ctx context.Context) ([]content.Source, error)
	StoreChunks(ctx context.Context, chunks []content.Chunk) error
}

// Report summarizes one ingestion pass.
type Report struct {
	SourcesSeen   int `json:"sources_seen"`
	SourcesFailed int `json:"sources_failed"`
	ItemsIngested int `json:"items_ingested"`
	ChunksStored  int `json:"chunks_stored"`
}

// Pipeline runs fetch, chunk, embed, store for registered sources. A failing
// source or item is logged and skipped; one bad feed never aborts the pass.
type Pipeline struct {
	store    ContentStore
	embedder ai.Embedder
	fetcher  *Fetcher
	chunker  *Chunker
	maxItems int
	logger   *slog.Logger
}

// NewPipeline wires an ingestion pipeline. maxItems caps feed items taken
// per source. If logger is nil, slog.Default() is used.
func NewPipeline(store ContentStore, embedder ai.Embedder, fetcher *Fetcher, chunker *Chunker, maxItems int, logger *slog.Logger) (*Pipeline, error) {
	if store == nil || embedder == nil || fetcher == nil || chunker == nil {
		return nil, fmt.Errorf("store, embedder, fetcher and chunker are required")
	}
	if maxItems < 1 {
		return nil, fmt.Errorf("max items must be positive, got %d", maxItems)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		fetcher:  fetcher,
		chunker:  chunker,
		maxItems: maxItems,
		logger:   logger,
	}, nil
}

// IngestAll processes every registered rss and blog source. Manual sources
// hold no fetchable material and are skipped.
func (p *Pipeline) IngestAll(ctx context.Context) (Report, error) {
	sources, err := p.store.ListSources(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing sources: %w", err)
	}

	var report Report
	for _, src := range sources {
		if src.Type == content.SourceManual {
			continue
		}
		report.SourcesSeen++

		items, chunks, err := p.IngestSource(ctx, src)
		if err != nil {
			report.SourcesFailed++
			p.logger.WarnContext(ctx, "source ingestion failed",
				slog.String("source_id", src.ID.String()),
				slog.String("url", src.URL),
				slog.String("error", err.Error()))
			continue
		}
		report.ItemsIngested += items
		report.ChunksStored += chunks
	}

	p.logger.InfoContext(ctx, "ingestion pass complete",
		slog.Int("sources", report.SourcesSeen),
		slog.Int("failed", report.SourcesFailed),
		slog.Int("items", report.ItemsIngested),
		slog.Int("chunks", report.ChunksStored))
	return report, nil
}

// IngestSource processes one source and returns how many items and chunks
// landed.
func (p *Pipeline) IngestSource(ctx context.Context, src content.Source) (items, chunks int, err error) {
	switch src.Type {
	case content.SourceRSS:
		return p.ingestFeed(ctx, src)
	case content.SourceBlog:
		n, err := p.ingestPage(ctx, src, src.URL)
		if err != nil {
			return 0, 0, err
		}
		return 1, n, nil
	default:
		return 0, 0, fmt.Errorf("%w: cannot fetch type %q", content.ErrInvalidSource, src.Type)
	}
}

func (p *Pipeline) ingestFeed(ctx context.Context, src content.Source) (items, chunks int, err error) {
	feed, err := p.fetcher.FetchFeed(ctx, src.URL)
	if err != nil {
		return 0, 0, err
	}
	if len(feed) > p.maxItems {
		feed = feed[:p.maxItems]
	}

	for _, item := range feed {
		text, title := p.itemText(ctx, item)
		n, err := p.IngestText(ctx, uuid.NullUUID{UUID: src.ID, Valid: true}, title, text)
		if err != nil {
			p.logger.WarnContext(ctx, "item ingestion failed",
				slog.String("link", item.Link),
				slog.String("error", err.Error()))
			continue
		}
		if n > 0 {
			items++
			chunks += n
		}
	}
	return items, chunks, nil
}

// itemText resolves the fullest available text for a feed item: the linked
// article when it can be fetched, the feed summary otherwise.
func (p *Pipeline) itemText(ctx context.Context, item Item) (text, title string) {
	art, err := p.fetcher.FetchArticle(ctx, item.Link)
	if err == nil {
		title = art.Title
		if title == "" {
			title = item.Title
		}
		return art.Text, title
	}
	p.logger.DebugContext(ctx, "falling back to feed summary",
		slog.String("link", item.Link),
		slog.String("error", err.Error()))
	return item.Summary, item.Title
}

func (p *Pipeline) ingestPage(ctx context.Context, src content.Source, pageURL string) (int, error) {
	art, err := p.fetcher.FetchArticle(ctx, pageURL)
	if err != nil {
		return 0, err
	}
	return p.IngestText(ctx, uuid.NullUUID{UUID: src.ID, Valid: true}, art.Title, art.Text)
}

// IngestText chunks, embeds, and stores raw text. Used both by the fetch
// paths and by manual content submission. Returns the number of chunks
// stored; text too short to chunk stores nothing and is not an error.
func (p *Pipeline) IngestText(ctx context.Context, sourceID uuid.NullUUID, title, text string) (int, error) {
	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		return 0, nil
	}

	chunks := make([]content.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		vec, err := p.embedder.Embed(ctx, piece)
		if err != nil {
			return 0, fmt.Errorf("embedding chunk %d of %q: %w", i, title, err)
		}
		chunks = append(chunks, content.Chunk{
			SourceID:  sourceID,
			Title:     title,
			Content:   piece,
			Embedding: vec,
			Metadata:  map[string]any{"chunk_index": i, "chunk_total": len(pieces)},
		})
	}

	if err := p.store.StoreChunks(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
