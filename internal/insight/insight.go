// Package insight stores the accepted outputs of digest runs and serves
// search over them. Rows are tagged with the run that produced them so an
// aborted run can remove its own writes without touching anything else.
package insight

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

var (
	// ErrInvalidInsight indicates an insight failed validation.
	ErrInvalidInsight = errors.New("invalid insight")

	// ErrInvalidQuery indicates a search request failed validation.
	ErrInvalidQuery = errors.New("invalid query")
)

// Insight is one accepted learning insight.
type Insight struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	RunID     uuid.UUID       `json:"run_id"`
	Content   string          `json:"content"`
	ChunkID   uuid.NullUUID   `json:"chunk_id"`
	Embedding pgvector.Vector `json:"-"`
	Score     float64         `json:"score"`
	Week      int             `json:"week"`
	Topics    []string        `json:"topics"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks the insight before it touches storage.
func (i *Insight) Validate() error {
	if strings.TrimSpace(i.UserID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInsight)
	}
	if i.RunID == uuid.Nil {
		return fmt.Errorf("%w: missing run id", ErrInvalidInsight)
	}
	if strings.TrimSpace(i.Content) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidInsight)
	}
	if len(i.Embedding.Slice()) == 0 {
		return fmt.Errorf("%w: missing embedding", ErrInvalidInsight)
	}
	if i.Score < 0 || i.Score > 1 {
		return fmt.Errorf("%w: score %v outside [0, 1]", ErrInvalidInsight, i.Score)
	}
	if i.Week < 1 {
		return fmt.Errorf("%w: week %d", ErrInvalidInsight, i.Week)
	}
	return nil
}

// SearchRequest describes an insight search. Query text is embedded by the
// caller; filters are optional.
type SearchRequest struct {
	UserID string
	Query  pgvector.Vector
	Topics []string  // match insights tagged with any of these
	Week   int       // 0 means any week
	Since  time.Time // zero means no lower bound on creation time
	Until  time.Time // zero means no upper bound on creation time
	Limit  int
}

// Validate checks the request.
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidQuery)
	}
	if len(r.Query.Slice()) == 0 {
		return fmt.Errorf("%w: missing query embedding", ErrInvalidQuery)
	}
	if r.Week < 0 {
		return fmt.Errorf("%w: week %d", ErrInvalidQuery, r.Week)
	}
	if !r.Since.IsZero() && !r.Until.IsZero() && r.Until.Before(r.Since) {
		return fmt.Errorf("%w: until %s before since %s", ErrInvalidQuery,
			r.Until.Format(time.RFC3339), r.Since.Format(time.RFC3339))
	}
	if r.Limit < 1 {
		return fmt.Errorf("%w: limit %d", ErrInvalidQuery, r.Limit)
	}
	return nil
}

// Result is an insight returned from search with its blended relevance.
type Result struct {
	Insight
	Relevance float64 `json:"relevance"`
}
