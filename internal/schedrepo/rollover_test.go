package schedrepo

import (
	"context"
	"testing"

	"github.com/daybook-app/daybook/internal/model"
)

func TestIsRecurringCategory(t *testing.T) {
	tests := []struct {
		category string
		want     bool
	}{
		{"daily", true},
		{"dailyRoutines", true},
		{"Weekly-review", true},
		{"monthly goals", true},
		{"errand", false},
		{"work", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isRecurringCategory(tt.category); got != tt.want {
			t.Errorf("isRecurringCategory(%q) = %v, want %v", tt.category, got, tt.want)
		}
	}
}

func TestCheckForRollovers(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	saveDay(t, repo, "2024-06-01",
		model.ScheduleItem{Time: "10:00", Text: "pick up package", Category: "errand"},
		model.ScheduleItem{Time: "07:00", Text: "morning routine", Category: "dailyRoutines"},
		model.ScheduleItem{Time: "14:00", Text: "ship release", Category: "work", Completed: true},
	)

	rollovers, err := repo.CheckForRollovers(ctx, "2024-06-02")
	if err != nil {
		t.Fatalf("CheckForRollovers failed: %v", err)
	}
	if len(rollovers) != 1 {
		t.Fatalf("expected exactly the errand to roll over, got %d items", len(rollovers))
	}
	item := rollovers[0]
	if item.Text != "pick up package" {
		t.Errorf("unexpected rollover item %q", item.Text)
	}
	if !item.IsRollover || item.RolloverFrom != "2024-06-01" {
		t.Errorf("expected rollover tagged from 2024-06-01, got %+v", item)
	}
	if item.Time != "" {
		t.Errorf("expected carried item unslotted, got time %q", item.Time)
	}
}

func TestCheckForRolloversNoPreviousDay(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	rollovers, err := repo.CheckForRollovers(context.Background(), "2024-06-02")
	if err != nil {
		t.Fatalf("CheckForRollovers failed: %v", err)
	}
	if len(rollovers) != 0 {
		t.Fatalf("expected no rollovers without a previous schedule, got %d", len(rollovers))
	}
}

func TestGetIncompleteTasksExcludesRecurring(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	saveDay(t, repo, "2024-06-01",
		model.ScheduleItem{Text: "errand", Category: "errand"},
		model.ScheduleItem{Text: "stretch", Category: "daily"},
		model.ScheduleItem{Text: "done", Completed: true},
	)

	incomplete, err := repo.GetIncompleteTasks(ctx, "2024-06-01")
	if err != nil {
		t.Fatalf("GetIncompleteTasks failed: %v", err)
	}
	if len(incomplete) != 1 || incomplete[0].Text != "errand" {
		t.Fatalf("expected only the errand, got %+v", incomplete)
	}
}

func TestMergeRolloversIsIdempotent(t *testing.T) {
	items := []model.ScheduleItem{
		{Text: "Ship Release"},
		{Text: "water plants"},
	}
	rollovers := []model.ScheduleItem{
		{Text: "ship release", IsRollover: true, RolloverFrom: "2024-06-01"}, // already planned
		{Text: "pick up package", IsRollover: true, RolloverFrom: "2024-06-01"},
	}

	merged := MergeRollovers(items, rollovers)
	if len(merged) != 3 {
		t.Fatalf("expected 3 items after merge, got %d", len(merged))
	}
	if merged[2].Text != "pick up package" {
		t.Errorf("expected new rollover appended, got %+v", merged[2])
	}

	// Merging the same rollovers again adds nothing.
	again := MergeRollovers(merged, rollovers)
	if len(again) != 3 {
		t.Fatalf("expected merge to be idempotent, got %d items", len(again))
	}
}
