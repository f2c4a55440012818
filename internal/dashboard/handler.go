package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/daybook-app/daybook/internal/taskrepo"
)

// Handler bridges daemon events onto the WebSocket server. It satisfies the
// daemon's Events interface and keeps running totals for the stats feed.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates an event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		server: server,
		logger: logger,
	}
}

// MigrationCompleted broadcasts the outcome of an inbox migration pass.
func (h *Handler) MigrationCompleted(result *taskrepo.MigrationResult) {
	h.logger.Printf("Migration: %d migrated, %d skipped, %d errored",
		result.Migrated, result.Skipped, result.Errored)

	h.mu.Lock()
	h.stats.MigrationRuns++
	h.stats.TotalMigrated += result.Migrated
	h.stats.RecordErrors += result.Errored
	h.mu.Unlock()

	h.broadcast(MessageTypeMigration, MigrationData{
		Migrated: result.Migrated,
		Skipped:  result.Skipped,
		Errored:  result.Errored,
	})
	h.broadcastStats()
}

// ReplayCompleted broadcasts the outcome of a pending-write replay pass.
func (h *Handler) ReplayCompleted(synced, pending int) {
	h.logger.Printf("Replay: %d synced, %d pending", synced, pending)

	h.mu.Lock()
	h.stats.ReplayRuns++
	h.stats.TotalReplayed += synced
	h.stats.PendingWrites = pending
	h.mu.Unlock()

	h.broadcast(MessageTypeReplay, ReplayData{Synced: synced, Pending: pending})
	h.broadcastStats()
}

// GetStats returns a copy of the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handler) broadcast(msgType MessageType, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", msgType, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

func (h *Handler) broadcastStats() {
	h.mu.Lock()
	stats := h.stats
	h.mu.Unlock()
	h.broadcast(MessageTypeStats, stats)
}
