package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/coach0/coach/internal/ai"
	"github.com/coach0/coach/internal/content"
	"github.com/coach0/coach/internal/progress"
)

// maxCandidateBytes limits the model reply size before JSON parsing (32 KB).
const maxCandidateBytes = 32 * 1024

// insightPrompt asks for grounded insights as a JSON array. Chunks are
// labeled with their IDs so each candidate can cite the ones it draws on.
// %d placeholder: target count. %s placeholders: (1) week, (2) topics,
// (3) goals, (4) labeled chunks.
const insightPrompt = `You are a learning coach. From the source material below, write exactly %d short, actionable learning insights for this learner.

Learner context:
- Week: %s
- Current topics: %s
- Learning goals: %s

Rules:
- Every insight must be grounded in one or more source chunks and cite them via their ids
- Never invent facts that are not in the cited chunks
- Each insight is 1-3 sentences, concrete and actionable
- Tag each insight with 1-3 topics drawn from the learner's topics where they fit

Source material:
%s

Output format: JSON array, nothing else.
Example: [{"content": "Close channels from the sender side only.", "chunk_ids": ["3f1a..."], "topics": ["concurrency"]}]`

// summaryPrompt asks for a short digest introduction. Placeholders: week,
// topics, insight count, bulleted insights.
const summaryPrompt = `Write a brief, motivating introduction for today's learning digest.

Context:
- Week %d of the learning journey
- Focus topics: %s
- Number of insights: %d

Write 2-3 sentences that acknowledge the learner's progress and point at the key theme of today's insights. Reply with the introduction only.

Today's insights:
%s`

// Generator turns retrieved chunks into candidate insights.
type Generator struct {
	model  ai.Generator
	target int
	logger *slog.Logger
}

// NewGenerator creates a candidate generator asking for target insights per
// run. The target is clamped to 5-7.
func NewGenerator(model ai.Generator, target int, logger *slog.Logger) (*Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if target < 5 {
		target = 5
	}
	if target > 7 {
		target = 7
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: model, target: target, logger: logger}, nil
}

// Generate asks the model for candidates grounded in chunks. Candidates
// citing a chunk that was not retrieved are dropped; if nothing valid
// remains the reply counts as unparseable.
func (g *Generator) Generate(ctx context.Context, p progress.UserProgress, chunks []content.Match) ([]Candidate, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to generate from")
	}

	reply, err := g.model.Generate(ctx, g.buildPrompt(p, chunks))
	if err != nil {
		return nil, err
	}

	candidates, err := parseCandidates(reply, chunks)
	if err != nil {
		return nil, err
	}

	g.logger.DebugContext(ctx, "candidates generated", slog.Int("count", len(candidates)))
	return candidates, nil
}

// Summarize writes a short introduction over the day's accepted insights.
func (g *Generator) Summarize(ctx context.Context, p progress.UserProgress, insights []string) (string, error) {
	var b strings.Builder
	for _, s := range insights {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	topics := strings.Join(p.CurrentTopics, ", ")
	if topics == "" {
		topics = "(none)"
	}

	reply, err := g.model.Generate(ctx, fmt.Sprintf(summaryPrompt, p.CurrentWeek, topics, len(insights), b.String()))
	if err != nil {
		return "", err
	}
	summary := ai.CleanResponse(reply)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary reply", ErrGenerationParse)
	}
	return summary, nil
}

func (g *Generator) buildPrompt(p progress.UserProgress, chunks []content.Match) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", c.ID, c.Title, c.Content)
	}

	topics := strings.Join(p.CurrentTopics, ", ")
	if topics == "" {
		topics = "(none)"
	}
	goals := strings.Join(p.LearningGoals, "; ")
	if goals == "" {
		goals = "(none)"
	}

	return fmt.Sprintf(insightPrompt, g.target,
		fmt.Sprintf("%d", p.CurrentWeek), topics, goals, b.String())
}

// parseCandidates decodes the model reply and validates every citation
// against the retrieved chunk IDs.
func parseCandidates(reply string, chunks []content.Match) ([]Candidate, error) {
	text := ai.StripCodeFences(ai.CleanResponse(reply))
	if text == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrGenerationParse)
	}
	if len(text) > maxCandidateBytes {
		return nil, fmt.Errorf("%w: reply too large (%d bytes)", ErrGenerationParse, len(text))
	}

	var raw []struct {
		Content  string   `json:"content"`
		ChunkIDs []string `json:"chunk_ids"`
		Topics   []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v (raw: %q)", ErrGenerationParse, err, ai.Truncate(text, 200))
	}

	known := make(map[uuid.UUID]bool, len(chunks))
	for _, c := range chunks {
		known[c.ID] = true
	}

	candidates := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		ids, ok := parseCitations(r.ChunkIDs, known)
		if !ok {
			// Fabricated or mangled citation: the candidate is not grounded.
			continue
		}
		candidates = append(candidates, Candidate{
			Content:  strings.TrimSpace(r.Content),
			ChunkIDs: ids,
			Topics:   r.Topics,
		})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no validly cited candidates in reply", ErrGenerationParse)
	}
	return candidates, nil
}

// parseCitations resolves cited IDs against the retrieved set, preserving
// citation order and dropping duplicates. A candidate with no citations or
// any citation outside the set is not grounded.
func parseCitations(cited []string, known map[uuid.UUID]bool) ([]uuid.UUID, bool) {
	if len(cited) == 0 {
		return nil, false
	}
	ids := make([]uuid.UUID, 0, len(cited))
	seen := make(map[uuid.UUID]bool, len(cited))
	for _, s := range cited {
		id, err := uuid.Parse(s)
		if err != nil || !known[id] {
			return nil, false
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, true
}
