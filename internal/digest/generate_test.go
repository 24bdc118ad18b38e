package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/coach0/coach/internal/content"
	"github.com/coach0/coach/internal/log"
	"github.com/coach0/coach/internal/progress"
	"github.com/coach0/coach/internal/testutil"
)

func testChunks(n int) []content.Match {
	chunks := make([]content.Match, n)
	for i := range chunks {
		chunks[i] = content.Match{
			Chunk: content.Chunk{
				ID:      uuid.New(),
				Title:   fmt.Sprintf("chunk %d", i),
				Content: fmt.Sprintf("source text %d about channels", i),
			},
			Similarity: 0.8,
		}
	}
	return chunks
}

func cite(ids ...uuid.UUID) []uuid.UUID { return ids }

func candidateJSON(items ...Candidate) string {
	out := "["
	for i, c := range items {
		if i > 0 {
			out += ","
		}
		ids := make([]string, len(c.ChunkIDs))
		for j, id := range c.ChunkIDs {
			ids[j] = fmt.Sprintf("%q", id)
		}
		out += fmt.Sprintf(`{"content":%q,"chunk_ids":[%s],"topics":["concurrency"]}`,
			c.Content, strings.Join(ids, ","))
	}
	return out + "]"
}

func TestGeneratorGenerate(t *testing.T) {
	chunks := testChunks(2)
	prog := progress.UserProgress{UserID: "u", CurrentWeek: 2, CurrentTopics: []string{"concurrency"}}

	reply := candidateJSON(
		Candidate{Content: "Close channels from the sender.", ChunkIDs: cite(chunks[0].ID)},
		Candidate{Content: "Use select with a timeout case.", ChunkIDs: cite(chunks[1].ID, chunks[0].ID)},
	)
	gen, err := NewGenerator(&testutil.ScriptedGenerator{Responses: []string{reply}}, 6, log.NewNop())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	got, err := gen.Generate(context.Background(), prog, chunks)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Generate() = %d candidates, want 2", len(got))
	}
	if got[0].ChunkIDs[0] != chunks[0].ID {
		t.Errorf("candidate 0 cites %s, want %s", got[0].ChunkIDs[0], chunks[0].ID)
	}
	if len(got[1].ChunkIDs) != 2 {
		t.Errorf("candidate 1 has %d citations, want 2", len(got[1].ChunkIDs))
	}
}

func TestGeneratorPromptContainsChunkIDs(t *testing.T) {
	chunks := testChunks(1)
	script := &testutil.ScriptedGenerator{
		Responses: []string{candidateJSON(Candidate{Content: "x is y", ChunkIDs: cite(chunks[0].ID)})},
	}
	gen, err := NewGenerator(script, 6, log.NewNop())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	if _, err := gen.Generate(context.Background(), progress.UserProgress{CurrentWeek: 1}, chunks); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	prompt := script.Prompts[0]
	want := fmt.Sprintf("[%s]", chunks[0].ID)
	if !strings.Contains(prompt, want) {
		t.Errorf("prompt missing chunk label %q", want)
	}
	if !strings.Contains(prompt, chunks[0].Content) {
		t.Error("prompt missing chunk content")
	}
}

func TestGeneratorSummarize(t *testing.T) {
	intro := "Two weeks in and your channel instincts are sharpening."
	script := &testutil.ScriptedGenerator{Responses: []string{intro}}
	gen, err := NewGenerator(script, 6, log.NewNop())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	prog := progress.UserProgress{UserID: "u", CurrentWeek: 2, CurrentTopics: []string{"concurrency"}}
	got, err := gen.Summarize(context.Background(), prog, []string{"Close channels from the sender.", "Prefer select with a timeout."})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != intro {
		t.Errorf("Summarize() = %q, want %q", got, intro)
	}

	prompt := script.Prompts[0]
	if !strings.Contains(prompt, "Week 2") {
		t.Error("summary prompt missing the learner's week")
	}
	if !strings.Contains(prompt, "Close channels from the sender.") {
		t.Error("summary prompt missing the insights")
	}
}

func TestGeneratorSummarizeEmptyReply(t *testing.T) {
	gen, err := NewGenerator(&testutil.ScriptedGenerator{Responses: []string{"<think>hmm</think>"}}, 6, log.NewNop())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	_, err = gen.Summarize(context.Background(), progress.UserProgress{CurrentWeek: 1}, []string{"a"})
	if !errors.Is(err, ErrGenerationParse) {
		t.Errorf("Summarize() error = %v, want %v", err, ErrGenerationParse)
	}
}

func TestParseCandidates(t *testing.T) {
	chunks := testChunks(2)
	valid := candidateJSON(Candidate{Content: "grounded claim", ChunkIDs: cite(chunks[0].ID)})

	tests := []struct {
		name    string
		reply   string
		want    int
		wantErr error
	}{
		{
			name:  "plain json",
			reply: valid,
			want:  1,
		},
		{
			name:  "fenced json",
			reply: "```json\n" + valid + "\n```",
			want:  1,
		},
		{
			name:  "think block before json",
			reply: "<think>planning</think>" + valid,
			want:  1,
		},
		{
			name:  "multiple citations kept in order",
			reply: candidateJSON(Candidate{Content: "broad claim", ChunkIDs: cite(chunks[1].ID, chunks[0].ID)}),
			want:  1,
		},
		{
			name:  "duplicate citations collapsed",
			reply: candidateJSON(Candidate{Content: "claim", ChunkIDs: cite(chunks[0].ID, chunks[0].ID)}),
			want:  1,
		},
		{
			name: "fabricated citation dropped",
			reply: candidateJSON(
				Candidate{Content: "grounded", ChunkIDs: cite(chunks[0].ID)},
				Candidate{Content: "hallucinated", ChunkIDs: cite(uuid.New())},
			),
			want: 1,
		},
		{
			name: "one fabricated citation poisons the candidate",
			reply: candidateJSON(
				Candidate{Content: "half grounded", ChunkIDs: cite(chunks[0].ID, uuid.New())},
				Candidate{Content: "kept", ChunkIDs: cite(chunks[1].ID)},
			),
			want: 1,
		},
		{
			name:  "empty content dropped",
			reply: candidateJSON(Candidate{Content: "  ", ChunkIDs: cite(chunks[0].ID)}, Candidate{Content: "kept", ChunkIDs: cite(chunks[1].ID)}),
			want:  1,
		},
		{
			name:    "no citations",
			reply:   `[{"content":"uncited","chunk_ids":[],"topics":[]}]`,
			wantErr: ErrGenerationParse,
		},
		{
			name:    "all citations fabricated",
			reply:   candidateJSON(Candidate{Content: "made up", ChunkIDs: cite(uuid.New())}),
			wantErr: ErrGenerationParse,
		},
		{
			name:    "not json",
			reply:   "Here are some insights: first, ...",
			wantErr: ErrGenerationParse,
		},
		{
			name:    "empty reply",
			reply:   "  ",
			wantErr: ErrGenerationParse,
		},
		{
			name:    "malformed chunk id",
			reply:   `[{"content":"x","chunk_ids":["not-a-uuid"],"topics":[]}]`,
			wantErr: ErrGenerationParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCandidates(tt.reply, chunks)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseCandidates() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCandidates() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("parseCandidates() = %d candidates, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseCitationsDeduplicates(t *testing.T) {
	id := uuid.New()
	known := map[uuid.UUID]bool{id: true}

	ids, ok := parseCitations([]string{id.String(), id.String()}, known)
	if !ok {
		t.Fatal("parseCitations() rejected valid duplicate citations")
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("parseCitations() = %v, want single %s", ids, id)
	}
}
