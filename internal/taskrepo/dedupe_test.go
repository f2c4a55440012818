package taskrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/daybook-app/daybook/internal/model"
	"github.com/daybook-app/daybook/internal/store"
)

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"exact", "buy milk", "buy milk", true},
		{"case and whitespace", "  Buy Milk ", "buy milk", true},
		{"containment forward", "buy milk", "buy milk today", true},
		{"containment reverse", "buy milk today", "buy milk", true},
		{"distinct", "buy milk", "call dentist", false},
		{"both empty", "", "  ", true},
		{"one empty", "", "buy milk", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicate(tt.a, tt.b); got != tt.want {
				t.Errorf("IsDuplicate(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// seedDuplicate writes a task with explicit fields, bypassing Create's
// duplicate check so the store actually contains duplicates to clean up.
func seedDuplicate(t *testing.T, repo *Repository, task *model.Task) *model.Task {
	t.Helper()
	task.SetDefaults()
	if err := repo.write(context.Background(), task); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}
	return task
}

func TestDeduplicateConverges(t *testing.T) {
	repo, _, remote := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	completedAt := base.Add(time.Hour)

	// Three copies of the same task: one completed, one detailed, one bare.
	completed := seedDuplicate(t, repo, &model.Task{
		Text: "water plants", Section: model.SectionToday,
		Completed: true, CompletedAt: &completedAt,
		CreatedAt: base.Add(2 * time.Minute),
	})
	detailed := seedDuplicate(t, repo, &model.Task{
		Text: "Water Plants", Section: model.SectionToday,
		SubTasks:  []string{"balcony", "kitchen"},
		CreatedAt: base.Add(time.Minute),
	})
	bare := seedDuplicate(t, repo, &model.Task{
		Text: "water plants  ", Section: model.SectionToday,
		CreatedAt: base,
	})
	unique := seedDuplicate(t, repo, &model.Task{
		Text: "call dentist", Section: model.SectionToday,
		CreatedAt: base,
	})

	result, err := repo.Deduplicate(ctx)
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if result.Scanned != 4 || result.Removed != 2 || result.Remaining != 2 {
		t.Fatalf("unexpected result: scanned=%d removed=%d remaining=%d",
			result.Scanned, result.Removed, result.Remaining)
	}

	// The completed copy wins even though it is not the oldest.
	if _, err := repo.Get(ctx, completed.ID); err != nil {
		t.Errorf("expected completed copy to survive: %v", err)
	}
	for _, loser := range []*model.Task{detailed, bare} {
		if _, err := repo.Get(ctx, loser.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected %s removed, got %v", loser.ID, err)
		}
	}
	if _, err := repo.Get(ctx, unique.ID); err != nil {
		t.Errorf("expected unrelated task untouched: %v", err)
	}

	// A second pass is a no-op: the store has converged.
	again, err := repo.Deduplicate(ctx)
	if err != nil {
		t.Fatalf("second Deduplicate failed: %v", err)
	}
	if again.Removed != 0 {
		t.Errorf("expected converged store, removed %d", again.Removed)
	}
	if remote.Count(Collection) != 2 {
		t.Errorf("expected 2 remote docs, got %d", remote.Count(Collection))
	}
}

func TestDeduplicateSurvivorPreference(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	// No completed copy: the one with the most attached detail wins.
	detailed := seedDuplicate(t, repo, &model.Task{
		Text: "plan trip", Section: model.SectionUpcoming,
		Details:   []model.Note{{Tag: "note", Text: "check flights"}},
		CreatedAt: base.Add(time.Hour),
	})
	seedDuplicate(t, repo, &model.Task{
		Text: "plan trip", Section: model.SectionUpcoming,
		CreatedAt: base,
	})

	// Equal on everything: the earliest created copy wins.
	oldest := seedDuplicate(t, repo, &model.Task{
		Text: "renew passport", Section: model.SectionUpcoming,
		CreatedAt: base,
	})
	seedDuplicate(t, repo, &model.Task{
		Text: "renew passport", Section: model.SectionUpcoming,
		CreatedAt: base.Add(time.Minute),
	})

	if _, err := repo.Deduplicate(ctx); err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if _, err := repo.Get(ctx, detailed.ID); err != nil {
		t.Errorf("expected detailed copy to survive: %v", err)
	}
	if _, err := repo.Get(ctx, oldest.ID); err != nil {
		t.Errorf("expected oldest copy to survive: %v", err)
	}
}

func TestDeduplicateLeavesContainmentPairs(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	seedDuplicate(t, repo, &model.Task{
		Text: "buy milk", Section: model.SectionToday, CreatedAt: base,
	})
	seedDuplicate(t, repo, &model.Task{
		Text: "buy milk today", Section: model.SectionToday, CreatedAt: base,
	})

	result, err := repo.Deduplicate(ctx)
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if result.Removed != 0 {
		t.Errorf("containment pairs must not be merged, removed %d", result.Removed)
	}
}
