package digest

import (
	"reflect"
	"testing"

	"github.com/coach0/coach/internal/progress"
)

func TestFormulateQueries(t *testing.T) {
	tests := []struct {
		name string
		prog progress.UserProgress
		want []string
	}{
		{
			name: "one query per topic",
			prog: progress.UserProgress{
				UserID:        "u",
				CurrentWeek:   3,
				CurrentTopics: []string{"goroutines", "channels"},
				LearningGoals: []string{"build a worker pool"},
			},
			want: []string{
				"practical guidance on goroutines to build a worker pool",
				"practical guidance on channels to build a worker pool",
			},
		},
		{
			name: "topics capped at three",
			prog: progress.UserProgress{
				UserID:        "u",
				CurrentWeek:   4,
				CurrentTopics: []string{"testing", "benchmarks", "fuzzing", "profiling"},
				LearningGoals: []string{"harden a library"},
			},
			want: []string{
				"practical guidance on testing to harden a library",
				"practical guidance on benchmarks to harden a library",
				"practical guidance on fuzzing to harden a library",
			},
		},
		{
			name: "topics only",
			prog: progress.UserProgress{UserID: "u", CurrentWeek: 1, CurrentTopics: []string{"testing"}},
			want: []string{
				"week 1 practical guidance on testing",
			},
		},
		{
			name: "goals only",
			prog: progress.UserProgress{UserID: "u", CurrentWeek: 2, LearningGoals: []string{"read pgx source"}},
			want: []string{"how to read pgx source"},
		},
		{
			name: "empty progress falls back",
			prog: progress.UserProgress{UserID: "u", CurrentWeek: 5},
			want: []string{"week 5 software engineering essentials"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormulateQueries(tt.prog)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FormulateQueries() = %v, want %v", got, tt.want)
			}
			if len(got) > 3 {
				t.Errorf("FormulateQueries() produced %d queries, max is 3", len(got))
			}

			// Determinism: same progress, same queries.
			again := FormulateQueries(tt.prog)
			if !reflect.DeepEqual(got, again) {
				t.Errorf("FormulateQueries() not deterministic: %v vs %v", got, again)
			}
		})
	}
}
