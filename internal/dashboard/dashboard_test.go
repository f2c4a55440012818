package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/daybook-app/daybook/internal/taskrepo"
)

// fakePending is a fixed pending-write counter for stats assertions.
type fakePending struct{ n int }

func (f *fakePending) PendingCount() (int, error) { return f.n, nil }

func newTestServer(t *testing.T, pending PendingCounter) *Server {
	t.Helper()
	server := NewServer(pending, &Config{
		Port:   0, // random available port
		Logger: log.New(io.Discard, "", 0),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	time.Sleep(50 * time.Millisecond)
	return server
}

func TestServerStartStop(t *testing.T) {
	server := newTestServer(t, nil)
	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}
}

func TestWebSocketWelcomeMessage(t *testing.T) {
	server := newTestServer(t, &fakePending{n: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeStats {
		t.Errorf("Expected welcome type %s, got %s", MessageTypeStats, msg.Type)
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats["pending_writes"] != float64(3) {
		t.Errorf("Expected 3 pending writes in welcome stats, got %v", stats["pending_writes"])
	}
}

func TestHandlerBroadcastsMigration(t *testing.T) {
	server := newTestServer(t, nil)
	handler := NewHandler(server, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Drain the welcome message first.
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	handler.MigrationCompleted(&taskrepo.MigrationResult{Migrated: 7, Skipped: 2, Errored: 1})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeMigration {
		t.Fatalf("Expected %s, got %s", MessageTypeMigration, msg.Type)
	}
	var payload MigrationData
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if payload.Migrated != 7 || payload.Skipped != 2 || payload.Errored != 1 {
		t.Errorf("Unexpected payload: %+v", payload)
	}

	// A stats message follows every event broadcast.
	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read stats broadcast: %v", err)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal stats message: %v", err)
	}
	if msg.Type != MessageTypeStats {
		t.Errorf("Expected trailing stats message, got %s", msg.Type)
	}
}

func TestHandlerTracksTotals(t *testing.T) {
	server := newTestServer(t, nil)
	handler := NewHandler(server, log.New(io.Discard, "", 0))

	handler.MigrationCompleted(&taskrepo.MigrationResult{Migrated: 5, Errored: 1})
	handler.MigrationCompleted(&taskrepo.MigrationResult{Migrated: 3})
	handler.ReplayCompleted(4, 2)

	stats := handler.GetStats()
	if stats.MigrationRuns != 2 || stats.TotalMigrated != 8 || stats.RecordErrors != 1 {
		t.Errorf("Unexpected migration totals: %+v", stats)
	}
	if stats.ReplayRuns != 1 || stats.TotalReplayed != 4 || stats.PendingWrites != 2 {
		t.Errorf("Unexpected replay totals: %+v", stats)
	}
}

func TestHealthAndStatsEndpoints(t *testing.T) {
	server := newTestServer(t, &fakePending{n: 5})
	base := "http://" + server.GetAddr()

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()
	var health map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("Expected ok status, got %v", health["status"])
	}

	resp, err = http.Get(base + "/stats")
	if err != nil {
		t.Fatalf("Stats request failed: %v", err)
	}
	defer resp.Body.Close()
	var stats map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats["pending_writes"] != float64(5) {
		t.Errorf("Expected 5 pending writes, got %v", stats["pending_writes"])
	}
}
