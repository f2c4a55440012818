package taskrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/daybook-app/daybook/internal/model"
	"github.com/daybook-app/daybook/internal/store"
	"github.com/daybook-app/daybook/internal/store/storetest"
	"github.com/daybook-app/daybook/internal/syncer"
)

func newTestRepo(t *testing.T) (*Repository, *storetest.Local, *storetest.Remote) {
	t.Helper()
	local := storetest.NewLocal()
	remote := storetest.NewRemote()
	logger := log.New(io.Discard, "", 0)
	coord := syncer.New(local, remote, logger)
	repo := New(coord, remote, local, &Config{
		CacheLimit:         200,
		AvgTaskBytes:       512,
		StaleLockThreshold: 10 * time.Minute,
		Logger:             logger,
	})
	return repo, local, remote
}

func TestCreateAndGet(t *testing.T) {
	repo, _, remote := newTestRepo(t)
	ctx := context.Background()

	task, err := repo.Create(ctx, CreateInput{Text: "Buy groceries", Section: model.SectionToday})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.ID == "" {
		t.Fatal("expected generated id")
	}
	if task.Priority != model.PriorityMedium {
		t.Errorf("expected default priority medium, got %s", task.Priority)
	}
	if task.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
	if remote.Count(Collection) != 1 {
		t.Errorf("expected 1 remote doc, got %d", remote.Count(Collection))
	}

	got, err := repo.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Text != "Buy groceries" {
		t.Errorf("expected text round-trip, got %q", got.Text)
	}
}

func TestCreateEmptyTextRejected(t *testing.T) {
	repo, _, _ := newTestRepo(t)

	_, err := repo.Create(context.Background(), CreateInput{Text: "   ", Section: model.SectionToday})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	repo, _, remote := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, CreateInput{Text: "Water plants", Section: model.SectionToday})
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	second, err := repo.Create(ctx, CreateInput{Text: "  Water Plants ", Section: model.SectionToday})
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected second create to resolve to %s, got %s", first.ID, second.ID)
	}
	if remote.Count(Collection) != 1 {
		t.Errorf("expected 1 stored task, got %d", remote.Count(Collection))
	}
}

func TestCreateContainmentResolvesToExisting(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, CreateInput{Text: "buy milk", Section: model.SectionToday})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := repo.Create(ctx, CreateInput{Text: "Buy milk today", Section: model.SectionToday})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Error("expected containment match to resolve to the existing task")
	}
}

func TestCreateSameTextDifferentSections(t *testing.T) {
	repo, _, remote := newTestRepo(t)
	ctx := context.Background()

	a, err := repo.Create(ctx, CreateInput{Text: "review notes", Section: model.SectionToday})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b, err := repo.Create(ctx, CreateInput{Text: "review notes", Section: model.SectionWeekly})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.ID == b.ID {
		t.Error("duplicate check must be scoped to one section")
	}
	if remote.Count(Collection) != 2 {
		t.Errorf("expected 2 stored tasks, got %d", remote.Count(Collection))
	}
}

func TestUpdateCompletionStampsTimestamp(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()

	task, err := repo.Create(ctx, CreateInput{Text: "File taxes", Section: model.SectionUpcoming})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	done := true
	updated, err := repo.Update(ctx, task.ID, Patch{Completed: &done})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.Completed || updated.CompletedAt == nil {
		t.Fatal("expected completion to stamp CompletedAt")
	}

	undone := false
	updated, err = repo.Update(ctx, task.ID, Patch{Completed: &undone})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Completed || updated.CompletedAt != nil {
		t.Fatal("expected re-opening to clear CompletedAt")
	}
}

func TestUpdateDuplicateTextFails(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, CreateInput{Text: "call dentist", Section: model.SectionToday}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	other, err := repo.Create(ctx, CreateInput{Text: "pick up parcel", Section: model.SectionToday})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	text := "Call Dentist"
	_, err = repo.Update(ctx, other.ID, Patch{Text: &text})
	var dup *DuplicateTaskError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateTaskError, got %v", err)
	}

	// The failed update must leave the task untouched.
	got, err := repo.Get(ctx, other.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Text != "pick up parcel" {
		t.Errorf("expected original text preserved, got %q", got.Text)
	}
}

func TestDelete(t *testing.T) {
	repo, _, remote := newTestRepo(t)
	ctx := context.Background()

	task, err := repo.Create(ctx, CreateInput{Text: "old task", Section: model.SectionUndated})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, task.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if remote.Count(Collection) != 0 {
		t.Errorf("expected remote doc removed, got %d", remote.Count(Collection))
	}
}

// seedTasks writes n distinct tasks directly through the coordinator,
// bypassing Create's duplicate check.
func seedTasks(t *testing.T, repo *Repository, n int) map[string]bool {
	t.Helper()
	ctx := context.Background()
	ids := make(map[string]bool, n)
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		task := &model.Task{
			Text:      fmt.Sprintf("task %03d", i),
			Section:   model.SectionToday,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		task.SetDefaults()
		if err := repo.write(ctx, task); err != nil {
			t.Fatalf("seed write failed: %v", err)
		}
		ids[task.ID] = true
	}
	return ids
}

func TestPaginationCompleteness(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	want := seedTasks(t, repo, 25)

	seen := make(map[string]bool)
	var cursor string
	pages := 0
	for {
		page, err := repo.GetAllPaginated(ctx, PageOptions{Limit: 10, Cursor: cursor})
		if err != nil {
			t.Fatalf("GetAllPaginated failed: %v", err)
		}
		pages++
		for _, task := range page.Tasks {
			if seen[task.ID] {
				t.Fatalf("task %s returned twice", task.ID)
			}
			seen[task.ID] = true
		}
		if !page.HasMore {
			if page.NextCursor != "" {
				t.Error("expected empty cursor on final page")
			}
			break
		}
		cursor = page.NextCursor
	}

	if pages != 3 {
		t.Errorf("expected 3 pages, got %d", pages)
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d tasks across pages, got %d", len(want), len(seen))
	}
	for id := range want {
		if !seen[id] {
			t.Errorf("task %s missing from pagination", id)
		}
	}
}

func TestPaginationContinuesAcrossOutage(t *testing.T) {
	repo, _, remote := newTestRepo(t)
	ctx := context.Background()
	want := seedTasks(t, repo, 12)

	first, err := repo.GetAllPaginated(ctx, PageOptions{Limit: 5})
	if err != nil {
		t.Fatalf("online page failed: %v", err)
	}
	if !first.HasMore {
		t.Fatal("expected more pages")
	}

	// The remote goes away mid-listing; the cursor must keep working
	// against the local store.
	remote.Fail(store.ErrRemoteUnavailable)

	seen := make(map[string]bool)
	for _, task := range first.Tasks {
		seen[task.ID] = true
	}
	cursor := first.NextCursor
	for cursor != "" {
		page, err := repo.GetAllPaginated(ctx, PageOptions{Limit: 5, Cursor: cursor})
		if err != nil {
			t.Fatalf("offline page failed: %v", err)
		}
		for _, task := range page.Tasks {
			if seen[task.ID] {
				t.Fatalf("task %s returned twice", task.ID)
			}
			seen[task.ID] = true
		}
		cursor = page.NextCursor
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(seen))
	}
}

func TestGetBySection(t *testing.T) {
	repo, _, remote := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, CreateInput{Text: "today one", Section: model.SectionToday}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Create(ctx, CreateInput{Text: "weekly one", Section: model.SectionWeekly}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	today, err := repo.GetBySection(ctx, model.SectionToday)
	if err != nil {
		t.Fatalf("GetBySection failed: %v", err)
	}
	if len(today) != 1 || today[0].Text != "today one" {
		t.Fatalf("expected the single today task, got %d", len(today))
	}

	// Same answer from the offline fallback.
	remote.Fail(store.ErrRemoteUnavailable)
	today, err = repo.GetBySection(ctx, model.SectionToday)
	if err != nil {
		t.Fatalf("offline GetBySection failed: %v", err)
	}
	if len(today) != 1 || today[0].Text != "today one" {
		t.Fatalf("expected the single today task offline, got %d", len(today))
	}
}
