// Package digest orchestrates one daily digest run: formulate retrieval
// queries from the learner's progress, retrieve matching content chunks,
// generate candidate insights grounded in those chunks, score each candidate
// on three quality dimensions, and persist only the candidates that clear
// the quality gate. A run either completes, completes empty, or aborts and
// removes everything it wrote.
package digest

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coach0/coach/internal/insight"
)

// State names the phases of a digest run, in order of progress.
type State string

const (
	StateStarted         State = "started"
	StateQueryFormulated State = "query_formulated"
	StateRetrieved       State = "retrieved"
	StateGenerated       State = "generated"
	StateEvaluated       State = "evaluated"
	StateFiltered        State = "filtered"
	StatePersisted       State = "persisted"
	StateAborted         State = "aborted"
)

// Reason classifies why a run aborted.
type Reason string

const (
	ReasonProgress   Reason = "progress_unavailable"
	ReasonRetrieval  Reason = "retrieval_failed"
	ReasonGeneration Reason = "generation_failed"
	ReasonEvaluation Reason = "evaluation_failed"
	ReasonPersist    Reason = "persist_failed"
	ReasonTimeout    Reason = "timeout"
)

// ErrGenerationParse indicates the model reply could not be turned into
// valid, correctly cited candidates.
var ErrGenerationParse = errors.New("generation parse failed")

// RunError reports an aborted run: the phase it died in, why, and the
// underlying cause.
type RunError struct {
	RunID  uuid.UUID
	State  State
	Reason Reason
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("digest run %s aborted in %s (%s): %v", e.RunID, e.State, e.Reason, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Candidate is one insight proposed by the generator before evaluation.
// ChunkIDs lists the retrieved chunks it is grounded in, in citation order;
// it is never empty.
type Candidate struct {
	Content  string      `json:"content"`
	ChunkIDs []uuid.UUID `json:"chunk_ids"`
	Topics   []string    `json:"topics"`
}

// Scores holds the three quality dimensions and their weighted composite,
// all in [0, 1].
type Scores struct {
	Faithfulness     float64 `json:"faithfulness"`
	Relevance        float64 `json:"relevance"`
	ContextPrecision float64 `json:"context_precision"`
	Composite        float64 `json:"composite"`
}

// Evaluated pairs a candidate with its scores and the gate decision.
type Evaluated struct {
	Candidate
	Scores
	Accepted bool `json:"accepted"`
}

// Report summarizes what a run did.
type Report struct {
	Queries    int           `json:"queries"`
	Chunks     int           `json:"chunks"`
	Candidates int           `json:"candidates"`
	Accepted   int           `json:"accepted"`
	Rejected   int           `json:"rejected"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Result is the outcome of a completed run. An empty Insights slice with
// state persisted is a legitimate result: nothing cleared the gate today.
// Summary is a short model-written introduction over the day's insights.
type Result struct {
	RunID    uuid.UUID         `json:"run_id"`
	State    State             `json:"state"`
	Summary  string            `json:"summary"`
	Insights []insight.Insight `json:"insights"`
	Report   Report            `json:"report"`
}
