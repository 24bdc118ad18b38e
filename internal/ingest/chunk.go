// Package ingest pulls learning material from registered sources, splits it
// into overlapping chunks, embeds them, and stores them for retrieval.
package ingest

import (
	"fmt"
	"strings"
)

// minChunkTokens is the floor below which a fragment carries too little
// signal to be worth embedding.
const minChunkTokens = 20

// Chunker splits text into fixed-size windows of whitespace tokens with
// overlap between consecutive windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. overlap must be smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the chunks of text. Fragments shorter than 20 tokens are
// dropped, so short or empty input yields no chunks.
func (c *Chunker) Split(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) < minChunkTokens {
		return nil
	}

	stride := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(tokens); start += stride {
		end := min(start+c.size, len(tokens))
		if end-start >= minChunkTokens {
			chunks = append(chunks, strings.Join(tokens[start:end], " "))
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
