package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Store persists sources and chunks in PostgreSQL with pgvector.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a content store. If logger is nil, slog.Default() is used.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// AddSource registers a new source. Duplicate URLs return ErrSourceExists.
func (s *Store) AddSource(ctx context.Context, src Source) (Source, error) {
	if err := src.Validate(); err != nil {
		return Source{}, err
	}
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}

	const q = `
		INSERT INTO content_sources (id, source_url, source_type, tags)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := s.pool.QueryRow(ctx, q, src.ID, src.URL, src.Type, src.Tags).Scan(&src.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Source{}, fmt.Errorf("%w: %q", ErrSourceExists, src.URL)
		}
		return Source{}, fmt.Errorf("inserting source %q: %w", src.URL, err)
	}

	s.logger.InfoContext(ctx, "source registered",
		slog.String("source_id", src.ID.String()),
		slog.String("type", src.Type),
		slog.String("url", src.URL))
	return src, nil
}

// GetSource returns one source by ID, or ErrSourceNotFound.
func (s *Store) GetSource(ctx context.Context, id uuid.UUID) (Source, error) {
	const q = `
		SELECT id, source_url, source_type, tags, created_at
		FROM content_sources
		WHERE id = $1`

	var src Source
	err := s.pool.QueryRow(ctx, q, id).Scan(&src.ID, &src.URL, &src.Type, &src.Tags, &src.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Source{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	if err != nil {
		return Source{}, fmt.Errorf("loading source %s: %w", id, err)
	}
	return src, nil
}

// ListSources returns all registered sources, newest first.
func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	const q = `
		SELECT id, source_url, source_type, tags, created_at
		FROM content_sources
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.URL, &src.Type, &src.Tags, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}

// StoreChunks inserts chunks in one transaction. Either all chunks land or
// none do.
func (s *Store) StoreChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		if chunks[i].ID == uuid.Nil {
			chunks[i].ID = uuid.New()
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning chunk transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
		INSERT INTO content_chunks (id, source_id, title, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, c := range chunks {
		if _, err := tx.Exec(ctx, q, c.ID, c.SourceID, c.Title, c.Content, c.Embedding, c.Metadata); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}

	s.logger.InfoContext(ctx, "chunks stored", slog.Int("count", len(chunks)))
	return nil
}

// SearchByEmbedding returns the chunks most similar to the query vector,
// best first. Only chunks with cosine similarity at or above threshold are
// returned; an empty result is not an error.
func (s *Store) SearchByEmbedding(ctx context.Context, query pgvector.Vector, threshold float64, limit int) ([]Match, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	const q = `
		SELECT id, source_id, title, content, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM content_chunks
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := s.pool.Query(ctx, q, query, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.SourceID, &m.Title, &m.Content, &m.Metadata, &m.CreatedAt, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	s.logger.DebugContext(ctx, "chunk search complete",
		slog.Int("matches", len(matches)),
		slog.Float64("threshold", threshold))
	return matches, nil
}

// CountChunks returns the number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM content_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}
