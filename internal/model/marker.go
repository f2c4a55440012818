package model

import "time"

// SyncStatus is the replication state of a locally written entity.
type SyncStatus string

const (
	// SyncStatusSynced means the remote copy matches the local write.
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusPending means the remote write has not succeeded yet.
	SyncStatusPending SyncStatus = "pending"
)

// SyncOp is the kind of remote operation a marker tracks.
type SyncOp string

const (
	SyncOpSet    SyncOp = "set"
	SyncOpDelete SyncOp = "delete"
)

// SyncMarker records the sync state of one locally written entity key.
// A marker is created on every local write and flipped to synced once the
// corresponding remote write succeeds.
type SyncMarker struct {
	// Key is the entity key in "collection/id" form.
	Key    string     `json:"key"`
	Op     SyncOp     `json:"op"`
	Status SyncStatus `json:"status"`

	SyncedAt  *time.Time `json:"synced_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Error holds the last remote failure for pending markers.
	Error string `json:"error,omitempty"`
}
