package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/coach0/coach/internal/ai"
	"github.com/coach0/coach/internal/content"
	"github.com/coach0/coach/internal/progress"
)

// judgeFallbackScore is used when the judge replies with something that is
// not a number. A neutral score keeps one flaky reply from skewing the gate
// in either direction.
const judgeFallbackScore = 0.5

// Judge scores a candidate on the two LLM-judged dimensions.
type Judge interface {
	// Faithfulness scores how well the candidate is supported by the cited
	// chunk text, in [0, 1].
	Faithfulness(ctx context.Context, candidate, chunkText string) (float64, error)
	// Relevance scores how useful the candidate is for the learner's
	// stated topics and goals, in [0, 1].
	Relevance(ctx context.Context, candidate string, topics, goals []string) (float64, error)
}

const faithfulnessPrompt = `Rate how faithfully the insight below is supported by the source text.
1.0 means every claim appears in the source, 0.0 means the insight contradicts or invents facts.

Source:
%s

Insight:
%s

Reply with only a number between 0.0 and 1.0.`

const relevancePrompt = `Rate how relevant the insight below is to a learner currently studying: %s.
Learning goals: %s.
1.0 means directly useful for those topics and goals, 0.0 means unrelated.

Insight:
%s

Reply with only a number between 0.0 and 1.0.`

// LLMJudge scores candidates by asking a model for a bare number.
type LLMJudge struct {
	model  ai.Generator
	logger *slog.Logger
}

// NewLLMJudge creates a judge. If logger is nil, slog.Default() is used.
func NewLLMJudge(model ai.Generator, logger *slog.Logger) (*LLMJudge, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMJudge{model: model, logger: logger}, nil
}

// Faithfulness implements Judge.
func (j *LLMJudge) Faithfulness(ctx context.Context, candidate, chunkText string) (float64, error) {
	reply, err := j.model.Generate(ctx, fmt.Sprintf(faithfulnessPrompt, chunkText, candidate))
	if err != nil {
		return 0, fmt.Errorf("judging faithfulness: %w", err)
	}
	return j.parseScore(ctx, reply), nil
}

// Relevance implements Judge.
func (j *LLMJudge) Relevance(ctx context.Context, candidate string, topics, goals []string) (float64, error) {
	joinedTopics := strings.Join(topics, ", ")
	if joinedTopics == "" {
		joinedTopics = "general software engineering"
	}
	joinedGoals := strings.Join(goals, "; ")
	if joinedGoals == "" {
		joinedGoals = "(none stated)"
	}
	reply, err := j.model.Generate(ctx, fmt.Sprintf(relevancePrompt, joinedTopics, joinedGoals, candidate))
	if err != nil {
		return 0, fmt.Errorf("judging relevance: %w", err)
	}
	return j.parseScore(ctx, reply), nil
}

// parseScore extracts a number from the reply and clamps it to [0, 1].
// Unparseable replies fall back to a neutral 0.5.
func (j *LLMJudge) parseScore(ctx context.Context, reply string) float64 {
	text := ai.StripCodeFences(ai.CleanResponse(reply))
	// Some models prepend words ("Score: 0.8"); take the first numeric field.
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	}) {
		if score, err := strconv.ParseFloat(field, 64); err == nil {
			return clamp01(score)
		}
	}
	j.logger.WarnContext(ctx, "judge reply not numeric, using fallback",
		slog.String("reply", ai.Truncate(text, 100)))
	return judgeFallbackScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// QualityWeights mixes the three dimensions into the composite score. The
// weights are normalized at evaluation time, so only their ratios matter.
type QualityWeights struct {
	Faithfulness float64
	Relevance    float64
	Precision    float64
}

// Evaluator scores candidates and applies the acceptance gate.
type Evaluator struct {
	judge     Judge
	weights   QualityWeights
	threshold float64 // similarity floor used during retrieval
	gate      float64 // composite score a candidate must reach, inclusive
	logger    *slog.Logger
}

// NewEvaluator creates an evaluator. retrievalThreshold rescales context
// precision; gate is the inclusive acceptance bound.
func NewEvaluator(judge Judge, weights QualityWeights, retrievalThreshold, gate float64, logger *slog.Logger) (*Evaluator, error) {
	if judge == nil {
		return nil, fmt.Errorf("judge is required")
	}
	if weights.Faithfulness <= 0 || weights.Relevance <= 0 || weights.Precision <= 0 {
		return nil, fmt.Errorf("quality weights must be positive, got %+v", weights)
	}
	if retrievalThreshold < 0 || retrievalThreshold >= 1 {
		return nil, fmt.Errorf("retrieval threshold %v outside [0, 1)", retrievalThreshold)
	}
	if gate < 0 || gate > 1 {
		return nil, fmt.Errorf("gate %v outside [0, 1]", gate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		judge:     judge,
		weights:   weights,
		threshold: retrievalThreshold,
		gate:      gate,
		logger:    logger,
	}, nil
}

// Evaluate scores one candidate against the learner's stated topics and
// goals. chunks must contain every cited chunk.
func (e *Evaluator) Evaluate(ctx context.Context, c Candidate, prog progress.UserProgress, chunks map[uuid.UUID]content.Match) (Evaluated, error) {
	if len(c.ChunkIDs) == 0 {
		return Evaluated{}, fmt.Errorf("candidate cites no chunks")
	}
	cited := make([]content.Match, 0, len(c.ChunkIDs))
	for _, id := range c.ChunkIDs {
		m, ok := chunks[id]
		if !ok {
			return Evaluated{}, fmt.Errorf("candidate cites unknown chunk %s", id)
		}
		cited = append(cited, m)
	}

	faith, err := e.judge.Faithfulness(ctx, c.Content, citedText(cited))
	if err != nil {
		return Evaluated{}, err
	}
	rel, err := e.judge.Relevance(ctx, c.Content, prog.CurrentTopics, prog.LearningGoals)
	if err != nil {
		return Evaluated{}, err
	}
	precision := e.contextPrecision(cited)

	wSum := e.weights.Faithfulness + e.weights.Relevance + e.weights.Precision
	composite := (e.weights.Faithfulness*faith + e.weights.Relevance*rel + e.weights.Precision*precision) / wSum

	scores := Scores{
		Faithfulness:     faith,
		Relevance:        rel,
		ContextPrecision: precision,
		Composite:        composite,
	}
	return Evaluated{
		Candidate: c,
		Scores:    scores,
		Accepted:  composite >= e.gate,
	}, nil
}

// contextPrecision rescales the mean similarity of the cited chunks from
// the live range [threshold, 1] to [0, 1]. A candidate grounded only in
// chunks that barely cleared retrieval scores 0 here, perfect matches
// score 1.
func (e *Evaluator) contextPrecision(cited []content.Match) float64 {
	var sum float64
	for _, m := range cited {
		sum += m.Similarity
	}
	mean := sum / float64(len(cited))
	return clamp01((mean - e.threshold) / (1 - e.threshold))
}

// citedText joins the cited chunks for the faithfulness judge, in citation
// order.
func citedText(cited []content.Match) string {
	parts := make([]string, len(cited))
	for i, m := range cited {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n\n")
}
