package ingest

import (
	"fmt"
	"strings"
	"testing"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewChunkerValidation(t *testing.T) {
	if _, err := NewChunker(0, 0); err == nil {
		t.Error("NewChunker(0, 0) = nil error, want error")
	}
	if _, err := NewChunker(100, 100); err == nil {
		t.Error("NewChunker(100, 100) = nil error, want error")
	}
	if _, err := NewChunker(100, -1); err == nil {
		t.Error("NewChunker(100, -1) = nil error, want error")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		overlap    int
		tokens     int
		wantChunks int
	}{
		{name: "empty", size: 512, overlap: 50, tokens: 0, wantChunks: 0},
		{name: "below minimum", size: 512, overlap: 50, tokens: 19, wantChunks: 0},
		{name: "at minimum", size: 512, overlap: 50, tokens: 20, wantChunks: 1},
		{name: "single window", size: 512, overlap: 50, tokens: 512, wantChunks: 1},
		{name: "just over one window", size: 512, overlap: 50, tokens: 513, wantChunks: 2},
		{name: "two full strides", size: 512, overlap: 50, tokens: 974, wantChunks: 2},
		{name: "three windows", size: 512, overlap: 50, tokens: 1200, wantChunks: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			if err != nil {
				t.Fatalf("NewChunker() error = %v", err)
			}
			got := c.Split(words(tt.tokens))
			if len(got) != tt.wantChunks {
				t.Errorf("Split(%d tokens) = %d chunks, want %d", tt.tokens, len(got), tt.wantChunks)
			}
		})
	}
}

func TestSplitOverlap(t *testing.T) {
	c, err := NewChunker(30, 10)
	if err != nil {
		t.Fatalf("NewChunker() error = %v", err)
	}

	chunks := c.Split(words(50))
	if len(chunks) != 2 {
		t.Fatalf("Split() = %d chunks, want 2", len(chunks))
	}

	// The second window starts one stride (20 tokens) in, so the last 10
	// tokens of chunk 0 open chunk 1.
	tail := strings.Fields(chunks[0])[20:]
	head := strings.Fields(chunks[1])[:10]
	for i := range tail {
		if tail[i] != head[i] {
			t.Fatalf("overlap mismatch at %d: %q vs %q", i, tail[i], head[i])
		}
	}
}

func TestSplitDropsShortTail(t *testing.T) {
	c, err := NewChunker(30, 10)
	if err != nil {
		t.Fatalf("NewChunker() error = %v", err)
	}

	// 45 tokens: second window would hold tokens 20-44, 25 tokens, kept.
	// 35 tokens: second window would hold tokens 20-34, 15 tokens, dropped.
	if got := c.Split(words(45)); len(got) != 2 {
		t.Errorf("Split(45 tokens) = %d chunks, want 2", len(got))
	}
	if got := c.Split(words(35)); len(got) != 1 {
		t.Errorf("Split(35 tokens) = %d chunks, want 1", len(got))
	}
}
