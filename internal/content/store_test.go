package content_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/coach0/coach/internal/content"
	"github.com/coach0/coach/internal/log"
	"github.com/coach0/coach/internal/testutil"
)

func TestSourceValidate(t *testing.T) {
	tests := []struct {
		name    string
		src     content.Source
		wantErr error
	}{
		{
			name: "valid rss",
			src:  content.Source{URL: "https://go.dev/blog/feed.atom", Type: content.SourceRSS},
		},
		{
			name: "valid blog",
			src:  content.Source{URL: "https://dave.cheney.net/practical-go", Type: content.SourceBlog},
		},
		{
			name: "valid manual",
			src:  content.Source{URL: "notes/week-3", Type: content.SourceManual},
		},
		{
			name:    "unknown type",
			src:     content.Source{URL: "https://example.com", Type: "podcast"},
			wantErr: content.ErrInvalidSource,
		},
		{
			name:    "empty url",
			src:     content.Source{URL: "  ", Type: content.SourceRSS},
			wantErr: content.ErrInvalidSource,
		},
		{
			name:    "non-http scheme for rss",
			src:     content.Source{URL: "ftp://example.com/feed", Type: content.SourceRSS},
			wantErr: content.ErrInvalidSource,
		},
		{
			name:    "missing host",
			src:     content.Source{URL: "https://", Type: content.SourceBlog},
			wantErr: content.ErrInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreSources(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()

	store, err := content.NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	src, err := store.AddSource(ctx, content.Source{
		URL:  "https://go.dev/blog/feed.atom",
		Type: content.SourceRSS,
		Tags: []string{"go", "official"},
	})
	if err != nil {
		t.Fatalf("AddSource() error = %v", err)
	}
	if src.ID == uuid.Nil {
		t.Error("AddSource() returned nil ID")
	}

	// Duplicate URL must be rejected.
	_, err = store.AddSource(ctx, content.Source{
		URL:  "https://go.dev/blog/feed.atom",
		Type: content.SourceRSS,
	})
	if !errors.Is(err, content.ErrSourceExists) {
		t.Errorf("AddSource() duplicate = %v, want %v", err, content.ErrSourceExists)
	}

	got, err := store.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("GetSource() error = %v", err)
	}
	if got.URL != src.URL || got.Type != content.SourceRSS {
		t.Errorf("GetSource() = %+v, want URL %q type rss", got, src.URL)
	}

	if _, err := store.GetSource(ctx, uuid.New()); !errors.Is(err, content.ErrSourceNotFound) {
		t.Errorf("GetSource() missing = %v, want %v", err, content.ErrSourceNotFound)
	}

	list, err := store.ListSources(ctx)
	if err != nil {
		t.Fatalf("ListSources() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListSources() = %d sources, want 1", len(list))
	}
}

func TestStoreChunksAndSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()

	store, err := content.NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	chunks := []content.Chunk{
		{
			Title:     "Goroutine leaks",
			Content:   "goroutine leaks happen when channels block forever",
			Embedding: testutil.EmbedText("goroutine leaks happen when channels block forever"),
		},
		{
			Title:     "Context cancellation",
			Content:   "context cancellation propagates deadlines through call trees",
			Embedding: testutil.EmbedText("context cancellation propagates deadlines through call trees"),
		},
		{
			Title:     "Gardening",
			Content:   "tomatoes prefer well drained soil and full sun",
			Embedding: testutil.EmbedText("tomatoes prefer well drained soil and full sun"),
		},
	}
	if err := store.StoreChunks(ctx, chunks); err != nil {
		t.Fatalf("StoreChunks() error = %v", err)
	}

	n, err := store.CountChunks(ctx)
	if err != nil {
		t.Fatalf("CountChunks() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("CountChunks() = %d, want 3", n)
	}

	query := testutil.EmbedText("why do goroutine leaks happen with blocked channels")
	matches, err := store.SearchByEmbedding(ctx, query, 0.25, 10)
	if err != nil {
		t.Fatalf("SearchByEmbedding() error = %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("SearchByEmbedding() returned no matches")
	}
	if matches[0].Title != "Goroutine leaks" {
		t.Errorf("best match = %q, want %q", matches[0].Title, "Goroutine leaks")
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Errorf("matches not ordered: %v then %v", matches[i-1].Similarity, matches[i].Similarity)
		}
	}
	for _, m := range matches {
		if m.Similarity < 0.25 {
			t.Errorf("match %q below threshold: %v", m.Title, m.Similarity)
		}
	}

	// Raising the floor can only shrink the result set.
	strict, err := store.SearchByEmbedding(ctx, query, 0.9, 10)
	if err != nil {
		t.Fatalf("SearchByEmbedding() strict error = %v", err)
	}
	if len(strict) > len(matches) {
		t.Errorf("stricter threshold returned more matches: %d > %d", len(strict), len(matches))
	}
}

func TestStoreChunksRejectsInvalid(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := testutil.SetupTestDB(t)
	store, err := content.NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	err = store.StoreChunks(context.Background(), []content.Chunk{
		{Title: "no embedding", Content: "text without a vector"},
	})
	if !errors.Is(err, content.ErrInvalidChunk) {
		t.Errorf("StoreChunks() = %v, want %v", err, content.ErrInvalidChunk)
	}
}
