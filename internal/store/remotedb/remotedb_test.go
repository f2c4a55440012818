package remotedb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/daybook-app/daybook/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "remote.db")
	db, err := Open(dbPath, "user-1")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, "tasks", "t-1", []byte(`{"id":"t-1"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := db.Get(ctx, "tasks", "t-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"id":"t-1"}` {
		t.Errorf("Get = %s", got)
	}

	if err := db.Delete(ctx, "tasks", "t-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := db.Get(ctx, "tasks", "t-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	// Idempotent delete.
	if err := db.Delete(ctx, "tasks", "t-1"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestUpdateRequiresExisting(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Update(ctx, "tasks", "absent", []byte("{}")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := db.Set(ctx, "tasks", "t-1", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := db.Update(ctx, "tasks", "t-1", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := db.Get(ctx, "tasks", "t-1")
	if string(got) != `{"v":2}` {
		t.Errorf("after update = %s", got)
	}
}

func TestQueryOrderAndCursor(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		key := fmt.Sprintf("t-%d", i)
		doc := fmt.Sprintf(`{"id":"%s","created_at":"2024-06-0%dT00:00:00Z"}`, key, i)
		if err := db.Set(ctx, "tasks", key, []byte(doc)); err != nil {
			t.Fatalf("Set %s failed: %v", key, err)
		}
	}

	// First page of 2, ascending by created_at.
	page, err := db.Query(ctx, "tasks", store.QueryOptions{
		OrderBy: "created_at",
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(page.Docs) != 2 {
		t.Fatalf("page 1 len = %d, want 2", len(page.Docs))
	}
	if page.Docs[0].Key != "t-1" || page.Docs[1].Key != "t-2" {
		t.Errorf("page 1 keys = %s, %s", page.Docs[0].Key, page.Docs[1].Key)
	}
	if page.NextCursor == "" {
		t.Fatal("expected continuation cursor on full page")
	}

	// Second page continues after the cursor.
	page2, err := db.Query(ctx, "tasks", store.QueryOptions{
		OrderBy:    "created_at",
		Limit:      2,
		StartAfter: page.NextCursor,
	})
	if err != nil {
		t.Fatalf("Query page 2 failed: %v", err)
	}
	if len(page2.Docs) != 2 || page2.Docs[0].Key != "t-3" || page2.Docs[1].Key != "t-4" {
		t.Errorf("page 2 = %+v", page2.Docs)
	}

	// Descending order.
	desc, err := db.Query(ctx, "tasks", store.QueryOptions{
		OrderBy:    "created_at",
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		t.Fatalf("Query desc failed: %v", err)
	}
	if len(desc.Docs) != 1 || desc.Docs[0].Key != "t-5" {
		t.Errorf("desc page = %+v", desc.Docs)
	}
}

func TestQueryWhereFilter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	docs := map[string]string{
		"t-1": `{"id":"t-1","section":"today"}`,
		"t-2": `{"id":"t-2","section":"upcoming"}`,
		"t-3": `{"id":"t-3","section":"today"}`,
	}
	for k, v := range docs {
		if err := db.Set(ctx, "tasks", k, []byte(v)); err != nil {
			t.Fatalf("Set %s failed: %v", k, err)
		}
	}

	page, err := db.Query(ctx, "tasks", store.QueryOptions{
		Where: []store.Where{{Field: "section", Value: "today"}},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(page.Docs) != 2 {
		t.Errorf("filtered count = %d, want 2", len(page.Docs))
	}
}

func TestBatchWrite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var ops []store.Op
	for i := 0; i < 10; i++ {
		ops = append(ops, store.Op{
			Kind:       store.OpSet,
			Collection: "tasks",
			Key:        fmt.Sprintf("t-%d", i),
			Value:      []byte(`{}`),
		})
	}
	if err := db.BatchWrite(ctx, ops); err != nil {
		t.Fatalf("BatchWrite failed: %v", err)
	}

	count, err := db.Count(ctx, "tasks")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 10 {
		t.Errorf("count = %d, want 10", count)
	}
}

func TestBatchWriteTooLarge(t *testing.T) {
	db := openTestDB(t)

	ops := make([]store.Op, store.MaxBatchSize+1)
	for i := range ops {
		ops[i] = store.Op{Kind: store.OpSet, Collection: "tasks", Key: fmt.Sprintf("t-%d", i), Value: []byte("{}")}
	}
	if err := db.BatchWrite(context.Background(), ops); !errors.Is(err, store.ErrBatchTooLarge) {
		t.Errorf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestFaultInjection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.SetFailure(errors.New("network down"))
	if err := db.Set(ctx, "tasks", "t-1", []byte("{}")); !errors.Is(err, store.ErrRemoteUnavailable) {
		t.Errorf("expected ErrRemoteUnavailable, got %v", err)
	}
	if _, err := db.Get(ctx, "tasks", "t-1"); !errors.Is(err, store.ErrRemoteUnavailable) {
		t.Errorf("expected ErrRemoteUnavailable on get, got %v", err)
	}

	db.SetFailure(nil)
	if err := db.Set(ctx, "tasks", "t-1", []byte("{}")); err != nil {
		t.Errorf("Set after recovery failed: %v", err)
	}
}

func TestUserIsolation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "remote.db")

	a, err := Open(dbPath, "alice")
	if err != nil {
		t.Fatalf("open alice: %v", err)
	}
	defer a.Close()
	b, err := Open(dbPath, "bob")
	if err != nil {
		t.Fatalf("open bob: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	if err := a.Set(ctx, "tasks", "t-1", []byte("{}")); err != nil {
		t.Fatalf("alice Set failed: %v", err)
	}
	if _, err := b.Get(ctx, "tasks", "t-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("bob should not see alice's documents, got %v", err)
	}
}
