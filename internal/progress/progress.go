// Package progress stores learner state: the current week, active topics,
// and learning goals. One row per user; writes replace the whole record.
package progress

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidUserID indicates an empty or blank user identifier.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidWeek indicates a week number below 1.
	ErrInvalidWeek = errors.New("invalid week")

	// ErrNotFound indicates no progress record exists for the user.
	ErrNotFound = errors.New("progress not found")
)

// UserProgress is a learner's current state.
type UserProgress struct {
	UserID        string    `json:"user_id"`
	CurrentWeek   int       `json:"current_week"`
	CurrentTopics []string  `json:"current_topics"`
	LearningGoals []string  `json:"learning_goals"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the record before it touches storage.
func (p *UserProgress) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrInvalidUserID
	}
	if p.CurrentWeek < 1 {
		return fmt.Errorf("%w: %d (want >= 1)", ErrInvalidWeek, p.CurrentWeek)
	}
	return nil
}

// Normalize trims whitespace from topics and goals and drops empty entries.
func (p *UserProgress) Normalize() {
	p.CurrentTopics = cleanList(p.CurrentTopics)
	p.LearningGoals = cleanList(p.LearningGoals)
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
