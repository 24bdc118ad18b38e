package progress_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/coach0/coach/internal/log"
	"github.com/coach0/coach/internal/progress"
	"github.com/coach0/coach/internal/testutil"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       progress.UserProgress
		wantErr error
	}{
		{
			name: "valid",
			p:    progress.UserProgress{UserID: "user-1", CurrentWeek: 3},
		},
		{
			name:    "empty user id",
			p:       progress.UserProgress{UserID: "", CurrentWeek: 3},
			wantErr: progress.ErrInvalidUserID,
		},
		{
			name:    "blank user id",
			p:       progress.UserProgress{UserID: "   ", CurrentWeek: 3},
			wantErr: progress.ErrInvalidUserID,
		},
		{
			name:    "week zero",
			p:       progress.UserProgress{UserID: "user-1", CurrentWeek: 0},
			wantErr: progress.ErrInvalidWeek,
		},
		{
			name:    "negative week",
			p:       progress.UserProgress{UserID: "user-1", CurrentWeek: -2},
			wantErr: progress.ErrInvalidWeek,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	p := progress.UserProgress{
		UserID:        "user-1",
		CurrentWeek:   1,
		CurrentTopics: []string{" goroutines ", "", "channels"},
		LearningGoals: []string{"\t", "ship a service"},
	}
	p.Normalize()

	if want := []string{"goroutines", "channels"}; !reflect.DeepEqual(p.CurrentTopics, want) {
		t.Errorf("CurrentTopics = %v, want %v", p.CurrentTopics, want)
	}
	if want := []string{"ship a service"}; !reflect.DeepEqual(p.LearningGoals, want) {
		t.Errorf("LearningGoals = %v, want %v", p.LearningGoals, want)
	}
}

func TestStoreUpsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()

	store, err := progress.NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	first := progress.UserProgress{
		UserID:        "user-1",
		CurrentWeek:   2,
		CurrentTopics: []string{"goroutines", "channels"},
		LearningGoals: []string{"build a worker pool"},
	}
	saved, err := store.Upsert(ctx, first)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if saved.UpdatedAt.IsZero() {
		t.Error("Upsert() returned zero UpdatedAt")
	}

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.CurrentWeek != 2 || !reflect.DeepEqual(got.CurrentTopics, first.CurrentTopics) {
		t.Errorf("Get() = %+v, want week 2 topics %v", got, first.CurrentTopics)
	}
	if !reflect.DeepEqual(got.LearningGoals, first.LearningGoals) {
		t.Errorf("LearningGoals = %v, want %v", got.LearningGoals, first.LearningGoals)
	}

	// Full replace: topics not mentioned again must disappear.
	second := progress.UserProgress{
		UserID:      "user-1",
		CurrentWeek: 3,
		// no topics, no goals
	}
	if _, err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert() replace error = %v", err)
	}

	got, err = store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() after replace error = %v", err)
	}
	if got.CurrentWeek != 3 {
		t.Errorf("CurrentWeek = %d, want 3", got.CurrentWeek)
	}
	if len(got.CurrentTopics) != 0 {
		t.Errorf("CurrentTopics = %v, want empty after full replace", got.CurrentTopics)
	}
	if len(got.LearningGoals) != 0 {
		t.Errorf("LearningGoals = %v, want empty after full replace", got.LearningGoals)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := testutil.SetupTestDB(t)
	store, err := progress.NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	_, err = store.Get(context.Background(), "nobody")
	if !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("Get() = %v, want %v", err, progress.ErrNotFound)
	}
}

func TestStoreUpsertRejectsInvalid(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := testutil.SetupTestDB(t)
	store, err := progress.NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	_, err = store.Upsert(context.Background(), progress.UserProgress{UserID: "user-1", CurrentWeek: 0})
	if !errors.Is(err, progress.ErrInvalidWeek) {
		t.Errorf("Upsert() = %v, want %v", err, progress.ErrInvalidWeek)
	}
}
