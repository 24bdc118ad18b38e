package insight

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// psql builds queries with PostgreSQL $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// BlendWeights controls search ranking: relevance is
// Similarity*cosine + Recency*exp(-ln2/halfLife * age).
type BlendWeights struct {
	Similarity float64
	Recency    float64
	// HalfLifeHours is the age at which the recency component halves.
	HalfLifeHours float64
}

// Store persists insights in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	blend  BlendWeights
	logger *slog.Logger
}

// NewStore creates an insight store. If logger is nil, slog.Default() is used.
func NewStore(pool *pgxpool.Pool, blend BlendWeights, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if blend.Similarity < 0 || blend.Recency < 0 || blend.Similarity+blend.Recency <= 0 {
		return nil, fmt.Errorf("blend weights %v/%v are not a valid mix", blend.Similarity, blend.Recency)
	}
	if blend.HalfLifeHours <= 0 {
		return nil, fmt.Errorf("half life must be positive, got %v", blend.HalfLifeHours)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, blend: blend, logger: logger}, nil
}

// InsertRun persists all insights of one digest run in a transaction. Every
// row carries runID so DeleteRun can undo the whole write.
func (s *Store) InsertRun(ctx context.Context, runID uuid.UUID, insights []Insight) error {
	if runID == uuid.Nil {
		return fmt.Errorf("%w: missing run id", ErrInvalidInsight)
	}
	if len(insights) == 0 {
		return nil
	}
	for i := range insights {
		insights[i].RunID = runID
		if insights[i].ID == uuid.Nil {
			insights[i].ID = uuid.New()
		}
		if err := insights[i].Validate(); err != nil {
			return fmt.Errorf("insight %d: %w", i, err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning insight transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
		INSERT INTO insights (id, user_id, run_id, content, chunk_id, embedding, score, week, topics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, in := range insights {
		_, err := tx.Exec(ctx, q,
			in.ID, in.UserID, in.RunID, in.Content, in.ChunkID, in.Embedding, in.Score, in.Week, in.Topics)
		if err != nil {
			return fmt.Errorf("inserting insight %s: %w", in.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing insights: %w", err)
	}

	s.logger.InfoContext(ctx, "insights persisted",
		slog.String("run_id", runID.String()),
		slog.Int("count", len(insights)))
	return nil
}

// DeleteRun removes every insight a run wrote. Deleting a run that wrote
// nothing is not an error.
func (s *Store) DeleteRun(ctx context.Context, runID uuid.UUID) (int64, error) {
	if runID == uuid.Nil {
		return 0, fmt.Errorf("%w: missing run id", ErrInvalidInsight)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM insights WHERE run_id = $1`, runID)
	if err != nil {
		return 0, fmt.Errorf("deleting run %s: %w", runID, err)
	}

	if n := tag.RowsAffected(); n > 0 {
		s.logger.WarnContext(ctx, "run compensated",
			slog.String("run_id", runID.String()),
			slog.Int64("removed", n))
		return n, nil
	}
	return 0, nil
}

// TodayByUser returns the user's insights created since local midnight,
// newest first.
func (s *Store) TodayByUser(ctx context.Context, userID string) ([]Insight, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidQuery)
	}

	const q = `
		SELECT id, user_id, run_id, content, chunk_id, score, week, topics, created_at
		FROM insights
		WHERE user_id = $1 AND created_at >= date_trunc('day', now())
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("loading today's insights: %w", err)
	}
	defer rows.Close()

	var insights []Insight
	for rows.Next() {
		var in Insight
		if err := rows.Scan(&in.ID, &in.UserID, &in.RunID, &in.Content, &in.ChunkID,
			&in.Score, &in.Week, &in.Topics, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning insight: %w", err)
		}
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating insights: %w", err)
	}
	return insights, nil
}

// Search ranks the user's insights by a blend of vector similarity and
// recency. Optional topic, week, and creation-date filters narrow the
// candidate set before ranking.
func (s *Store) Search(ctx context.Context, req SearchRequest) ([]Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// exp decays the recency term by half every HalfLifeHours.
	lambda := math.Ln2 / s.blend.HalfLifeHours

	builder := psql.
		Select(
			"id", "user_id", "run_id", "content", "chunk_id", "score", "week", "topics", "created_at",
		).
		Column(sq.Expr(
			"? * (1 - (embedding <=> ?)) + ? * exp(-? * extract(epoch from now() - created_at) / 3600.0) AS relevance",
			s.blend.Similarity, req.Query, s.blend.Recency, lambda,
		)).
		From("insights").
		Where(sq.Eq{"user_id": req.UserID}).
		OrderBy("relevance DESC").
		Limit(uint64(req.Limit))

	if len(req.Topics) > 0 {
		builder = builder.Where(sq.Expr("topics && ?", req.Topics))
	}
	if req.Week > 0 {
		builder = builder.Where(sq.Eq{"week": req.Week})
	}
	if !req.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": req.Since})
	}
	if !req.Until.IsZero() {
		builder = builder.Where(sq.Lt{"created_at": req.Until})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building search query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching insights: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.UserID, &r.RunID, &r.Content, &r.ChunkID,
			&r.Score, &r.Week, &r.Topics, &r.CreatedAt, &r.Relevance); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	s.logger.DebugContext(ctx, "insight search complete",
		slog.String("user_id", req.UserID),
		slog.Int("results", len(results)))
	return results, nil
}
