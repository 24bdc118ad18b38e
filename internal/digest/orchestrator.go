package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/coach0/coach/internal/ai"
	"github.com/coach0/coach/internal/content"
	"github.com/coach0/coach/internal/insight"
	"github.com/coach0/coach/internal/progress"
)

// compensateTimeout bounds the cleanup delete after an aborted run. It runs
// on a fresh context because the run's own context is already dead.
const compensateTimeout = 5 * time.Second

// Summaries for runs that complete without persisting anything.
const (
	emptyDigestSummary    = "No relevant content found for your topics today."
	rejectedDigestSummary = "Today's candidates did not meet the quality bar. Check back after new content is ingested."
)

// InsightWriter is the slice of the insight store the orchestrator needs.
type InsightWriter interface {
	InsertRun(ctx context.Context, runID uuid.UUID, insights []insight.Insight) error
	DeleteRun(ctx context.Context, runID uuid.UUID) (int64, error)
}

// ProgressReader loads learner state.
type ProgressReader interface {
	Get(ctx context.Context, userID string) (progress.UserProgress, error)
}

// Orchestrator drives a digest run through its states under one wall-clock
// budget. Aborted runs remove their own writes before returning.
type Orchestrator struct {
	progress  ProgressReader
	retriever *Retriever
	generator *Generator
	evaluator *Evaluator
	embedder  ai.Embedder
	insights  InsightWriter
	pool      *ants.Pool
	budget    time.Duration
	logger    *slog.Logger
}

// NewOrchestrator wires a digest orchestrator. budget is the wall-clock
// limit per run; evalWorkers bounds concurrent candidate evaluations.
func NewOrchestrator(
	progressReader ProgressReader,
	retriever *Retriever,
	generator *Generator,
	evaluator *Evaluator,
	embedder ai.Embedder,
	insights InsightWriter,
	budget time.Duration,
	evalWorkers int,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if progressReader == nil || retriever == nil || generator == nil ||
		evaluator == nil || embedder == nil || insights == nil {
		return nil, fmt.Errorf("all orchestrator dependencies are required")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %v", budget)
	}
	if evalWorkers < 1 {
		return nil, fmt.Errorf("eval workers must be positive, got %d", evalWorkers)
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(evalWorkers)
	if err != nil {
		return nil, fmt.Errorf("creating evaluation pool: %w", err)
	}

	return &Orchestrator{
		progress:  progressReader,
		retriever: retriever,
		generator: generator,
		evaluator: evaluator,
		embedder:  embedder,
		insights:  insights,
		pool:      pool,
		budget:    budget,
		logger:    logger,
	}, nil
}

// Close releases the evaluation pool.
func (o *Orchestrator) Close() {
	o.pool.Release()
}

// Run executes one digest run for the user. An empty corpus or a day where
// nothing clears the quality gate completes successfully with an empty
// digest; any failure aborts the run and compensates whatever it wrote.
func (o *Orchestrator) Run(ctx context.Context, userID string) (Result, error) {
	runID := uuid.New()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	logger := o.logger.With(slog.String("run_id", runID.String()), slog.String("user_id", userID))
	logger.InfoContext(ctx, "digest run started", slog.String("state", string(StateStarted)))

	var report Report

	prog, err := o.progress.Get(ctx, userID)
	if err != nil {
		return Result{}, o.abort(ctx, runID, StateStarted, ReasonProgress, err, false)
	}

	queries := FormulateQueries(prog)
	report.Queries = len(queries)
	logger.DebugContext(ctx, "queries formulated",
		slog.String("state", string(StateQueryFormulated)),
		slog.Int("queries", len(queries)))

	matches, err := o.retriever.Retrieve(ctx, queries)
	if err != nil {
		return Result{}, o.abort(ctx, runID, StateQueryFormulated, ReasonRetrieval, err, false)
	}
	report.Chunks = len(matches)
	logger.DebugContext(ctx, "chunks retrieved",
		slog.String("state", string(StateRetrieved)),
		slog.Int("chunks", len(matches)))

	if len(matches) == 0 {
		report.Elapsed = time.Since(start)
		logger.InfoContext(ctx, "digest run complete with empty digest: no relevant content")
		return Result{
			RunID:   runID,
			State:   StatePersisted,
			Summary: emptyDigestSummary,
			Report:  report,
		}, nil
	}

	candidates, err := o.generateWithRetry(ctx, logger, prog, matches)
	if err != nil {
		return Result{}, o.abort(ctx, runID, StateRetrieved, ReasonGeneration, err, false)
	}
	report.Candidates = len(candidates)
	logger.DebugContext(ctx, "candidates generated",
		slog.String("state", string(StateGenerated)),
		slog.Int("candidates", len(candidates)))

	evaluated, err := o.evaluateAll(ctx, logger, candidates, prog, matches)
	if err != nil {
		return Result{}, o.abort(ctx, runID, StateGenerated, ReasonEvaluation, err, false)
	}
	logger.DebugContext(ctx, "candidates evaluated", slog.String("state", string(StateEvaluated)))

	var accepted []Evaluated
	for _, ev := range evaluated {
		if ev.Accepted {
			accepted = append(accepted, ev)
		}
	}
	report.Accepted = len(accepted)
	report.Rejected = len(evaluated) - len(accepted)
	logger.InfoContext(ctx, "quality gate applied",
		slog.String("state", string(StateFiltered)),
		slog.Int("accepted", len(accepted)),
		slog.Int("rejected", report.Rejected))

	if len(accepted) == 0 {
		report.Elapsed = time.Since(start)
		logger.InfoContext(ctx, "digest run complete with empty digest: nothing cleared the gate")
		return Result{
			RunID:   runID,
			State:   StatePersisted,
			Summary: rejectedDigestSummary,
			Report:  report,
		}, nil
	}

	insights, err := o.buildInsights(ctx, runID, userID, prog, accepted)
	if err != nil {
		return Result{}, o.abort(ctx, runID, StateFiltered, ReasonPersist, err, true)
	}
	if err := o.insights.InsertRun(ctx, runID, insights); err != nil {
		return Result{}, o.abort(ctx, runID, StateFiltered, ReasonPersist, err, true)
	}

	summary := o.summarize(ctx, logger, prog, insights)

	report.Elapsed = time.Since(start)
	logger.InfoContext(ctx, "digest run persisted",
		slog.String("state", string(StatePersisted)),
		slog.Int("insights", len(insights)),
		slog.Duration("elapsed", report.Elapsed))
	return Result{RunID: runID, State: StatePersisted, Summary: summary, Insights: insights, Report: report}, nil
}

// generateWithRetry retries generation once: a single malformed reply is
// common enough that one more attempt is worth part of the budget.
func (o *Orchestrator) generateWithRetry(ctx context.Context, logger *slog.Logger, prog progress.UserProgress, matches []content.Match) ([]Candidate, error) {
	candidates, err := o.generator.Generate(ctx, prog, matches)
	if err == nil || ctx.Err() != nil {
		return candidates, err
	}
	logger.WarnContext(ctx, "generation failed, retrying once", slog.String("error", err.Error()))
	return o.generator.Generate(ctx, prog, matches)
}

// evaluateAll scores candidates concurrently on the bounded pool. A judge
// failure rejects that candidate; only a fully failed evaluation (or the
// deadline) aborts the run.
func (o *Orchestrator) evaluateAll(ctx context.Context, logger *slog.Logger, candidates []Candidate, prog progress.UserProgress, matches []content.Match) ([]Evaluated, error) {
	chunkMap := make(map[uuid.UUID]content.Match, len(matches))
	for _, m := range matches {
		chunkMap[m.ID] = m
	}

	results := make([]Evaluated, len(candidates))
	errs := make([]error, len(candidates))

	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i], errs[i] = o.evaluator.Evaluate(ctx, c, prog, chunkMap)
		}
		if err := o.pool.Submit(task); err != nil {
			// Pool rejected the task (released or overloaded): run inline.
			task()
		}
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	evaluated := make([]Evaluated, 0, len(candidates))
	failed := 0
	for i := range candidates {
		if errs[i] != nil {
			failed++
			logger.WarnContext(ctx, "candidate evaluation failed, rejecting",
				slog.Int("candidate", i),
				slog.String("error", errs[i].Error()))
			continue
		}
		evaluated = append(evaluated, results[i])
	}
	if failed == len(candidates) {
		return nil, fmt.Errorf("all %d candidate evaluations failed, last: %w", failed, errs[len(errs)-1])
	}
	return evaluated, nil
}

// buildInsights embeds accepted candidates and shapes them for storage.
// The stored chunk reference is the first-cited (primary) grounding chunk.
func (o *Orchestrator) buildInsights(ctx context.Context, runID uuid.UUID, userID string, prog progress.UserProgress, accepted []Evaluated) ([]insight.Insight, error) {
	insights := make([]insight.Insight, 0, len(accepted))
	for _, ev := range accepted {
		vec, err := o.embedder.Embed(ctx, ev.Content)
		if err != nil {
			return nil, fmt.Errorf("embedding insight: %w", err)
		}
		insights = append(insights, insight.Insight{
			UserID:    userID,
			RunID:     runID,
			Content:   ev.Content,
			ChunkID:   uuid.NullUUID{UUID: ev.ChunkIDs[0], Valid: true},
			Embedding: vec,
			Score:     ev.Composite,
			Week:      prog.CurrentWeek,
			Topics:    ev.Topics,
		})
	}
	return insights, nil
}

// summarize asks the model for a digest introduction. The insights are
// already persisted at this point, so a summary failure degrades to a plain
// fallback line instead of aborting the run.
func (o *Orchestrator) summarize(ctx context.Context, logger *slog.Logger, prog progress.UserProgress, insights []insight.Insight) string {
	contents := make([]string, len(insights))
	for i, in := range insights {
		contents[i] = in.Content
	}

	summary, err := o.generator.Summarize(ctx, prog, contents)
	if err != nil {
		logger.WarnContext(ctx, "digest summary failed, using fallback", slog.String("error", err.Error()))
		return fmt.Sprintf("Week %d digest: %d insights on %s.",
			prog.CurrentWeek, len(insights), strings.Join(prog.CurrentTopics, ", "))
	}
	return summary
}

// abort classifies the failure, optionally compensates, and returns the
// RunError. Deadline expiry overrides the phase-specific reason.
func (o *Orchestrator) abort(ctx context.Context, runID uuid.UUID, state State, reason Reason, err error, compensate bool) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = ReasonTimeout
	}

	if compensate {
		o.compensate(runID)
	}

	runErr := &RunError{RunID: runID, State: state, Reason: reason, Err: err}
	o.logger.ErrorContext(ctx, "digest run aborted",
		slog.String("run_id", runID.String()),
		slog.String("state", string(state)),
		slog.String("reason", string(reason)),
		slog.String("error", err.Error()))
	return runErr
}

// compensate removes whatever the run wrote. It runs on a fresh context so
// cleanup still happens after the run's deadline fired.
func (o *Orchestrator) compensate(runID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()

	if _, err := o.insights.DeleteRun(ctx, runID); err != nil {
		o.logger.ErrorContext(ctx, "compensation failed, run may have orphaned insights",
			slog.String("run_id", runID.String()),
			slog.String("error", err.Error()))
	}
}
