package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/pgvector/pgvector-go"

	"github.com/coach0/coach/internal/ai"
)

// FakeEmbedder is a deterministic ai.Embedder. Each whitespace token is
// hashed into one of 768 buckets and the resulting vector is L2-normalized,
// so texts sharing tokens have high cosine similarity and the same text
// always embeds identically.
type FakeEmbedder struct {
	mu    sync.Mutex
	Calls int
	// Err, when set, is returned by every Embed call.
	Err error
}

// Embed implements ai.Embedder.
func (f *FakeEmbedder) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	f.mu.Lock()
	f.Calls++
	err := f.Err
	f.mu.Unlock()
	if err != nil {
		return pgvector.Vector{}, err
	}
	if text == "" {
		return pgvector.Vector{}, ai.ErrEmptyInput
	}
	return EmbedText(text), nil
}

// EmbedText returns the deterministic vector for text without going through
// an Embedder. Useful for asserting expected similarity in tests.
func EmbedText(text string) pgvector.Vector {
	vec := make([]float32, ai.VectorDimension)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(ai.VectorDimension)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	} else {
		vec[0] = 1
	}
	return pgvector.NewVector(vec)
}

// ScriptedGenerator is an ai.Generator that replays canned responses in
// order. When Fn is set it takes precedence; when the script runs out, the
// last response repeats.
type ScriptedGenerator struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	Fn        func(ctx context.Context, prompt string) (string, error)
	Prompts   []string
	Calls     int
}

// Generate implements ai.Generator.
func (s *ScriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	idx := s.Calls
	s.Calls++
	s.Prompts = append(s.Prompts, prompt)
	s.mu.Unlock()

	if s.Fn != nil {
		return s.Fn(ctx, prompt)
	}
	if idx < len(s.Errs) && s.Errs[idx] != nil {
		return "", s.Errs[idx]
	}
	if len(s.Responses) == 0 {
		return "", fmt.Errorf("scripted generator has no responses")
	}
	if idx >= len(s.Responses) {
		idx = len(s.Responses) - 1
	}
	return s.Responses[idx], nil
}

var (
	_ ai.Embedder  = (*FakeEmbedder)(nil)
	_ ai.Generator = (*ScriptedGenerator)(nil)
)
