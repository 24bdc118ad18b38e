package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists user progress in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a progress store. If logger is nil, slog.Default() is used.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Upsert replaces the user's progress record in a single statement. A
// concurrent Get observes either the old or the new record, never a mix.
func (s *Store) Upsert(ctx context.Context, p UserProgress) (UserProgress, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return UserProgress{}, err
	}

	const q = `
		INSERT INTO user_progress (user_id, current_week, current_topics, learning_goals, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			current_week   = EXCLUDED.current_week,
			current_topics = EXCLUDED.current_topics,
			learning_goals = EXCLUDED.learning_goals,
			updated_at     = now()
		RETURNING updated_at`

	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, q, p.UserID, p.CurrentWeek, p.CurrentTopics, p.LearningGoals).Scan(&updatedAt)
	if err != nil {
		return UserProgress{}, fmt.Errorf("upserting progress for %q: %w", p.UserID, err)
	}
	p.UpdatedAt = updatedAt

	s.logger.InfoContext(ctx, "progress updated",
		slog.String("user_id", p.UserID),
		slog.Int("week", p.CurrentWeek),
		slog.Int("topics", len(p.CurrentTopics)))
	return p, nil
}

// Get returns the user's progress, or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID string) (UserProgress, error) {
	if userID == "" {
		return UserProgress{}, ErrInvalidUserID
	}

	const q = `
		SELECT user_id, current_week, current_topics, learning_goals, updated_at
		FROM user_progress
		WHERE user_id = $1`

	var p UserProgress
	err := s.pool.QueryRow(ctx, q, userID).Scan(
		&p.UserID, &p.CurrentWeek, &p.CurrentTopics, &p.LearningGoals, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserProgress{}, fmt.Errorf("%w: %q", ErrNotFound, userID)
	}
	if err != nil {
		return UserProgress{}, fmt.Errorf("loading progress for %q: %w", userID, err)
	}
	return p, nil
}
