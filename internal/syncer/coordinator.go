package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/daybook-app/daybook/internal/model"
	"github.com/daybook-app/daybook/internal/store"
)

// markerPrefix scopes sync markers inside the local store. Markers are an
// explicit table keyed by entity, iterated directly during replay rather
// than pattern-matched against all stored keys.
const markerPrefix = "markers/"

// Coordinator dual-writes entities to the local and remote stores and tracks
// per-entity sync status.
type Coordinator struct {
	local  store.Local
	remote store.Remote
	logger *log.Logger
}

// New creates a Coordinator over the given stores.
//
// If logger is nil, a default logger writing to stderr is used.
func New(local store.Local, remote store.Remote, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	return &Coordinator{local: local, remote: remote, logger: logger}
}

func localKey(collection, key string) string {
	return collection + "/" + key
}

func markerKey(collection, key string) string {
	return markerPrefix + collection + "/" + key
}

// Write stores value locally, then attempts the remote write.
//
// A local failure is fatal and returned immediately; there is no fallback
// beneath local storage. A remote failure is absorbed: the entity's marker is
// set to pending and Write returns nil, so callers are never blocked or
// failed by network state.
func (c *Coordinator) Write(ctx context.Context, collection, key string, value []byte) error {
	if err := c.local.Set(localKey(collection, key), value); err != nil {
		return fmt.Errorf("local write %s/%s failed: %w", collection, key, err)
	}

	marker := &model.SyncMarker{
		Key:       collection + "/" + key,
		Op:        model.SyncOpSet,
		UpdatedAt: time.Now().UTC(),
	}

	if err := c.remote.Set(ctx, collection, key, value); err != nil {
		marker.Status = model.SyncStatusPending
		marker.Error = err.Error()
		c.logger.Printf("Remote write deferred: %s/%s (%v)", collection, key, err)
	} else {
		now := time.Now().UTC()
		marker.Status = model.SyncStatusSynced
		marker.SyncedAt = &now
	}

	return c.putMarker(marker)
}

// Read returns the current value for the entity, preferring the remote copy
// and falling back to the local one on any remote error. A successful remote
// read refreshes the local copy. Returns store.ErrNotFound when the entity
// exists in neither store.
func (c *Coordinator) Read(ctx context.Context, collection, key string) ([]byte, error) {
	value, err := c.remote.Get(ctx, collection, key)
	if err == nil {
		if err := c.local.Set(localKey(collection, key), value); err != nil {
			c.logger.Printf("Warning: failed to refresh local copy of %s/%s: %v", collection, key, err)
		}
		return value, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		c.logger.Printf("Remote read failed, using local copy: %s/%s (%v)", collection, key, err)
	}

	value, lerr := c.local.Get(localKey(collection, key))
	if lerr == nil {
		return value, nil
	}
	if errors.Is(lerr, store.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	return nil, fmt.Errorf("local read %s/%s failed: %w", collection, key, lerr)
}

// Delete removes the entity from both stores. As with Write, the local
// delete is fatal on failure while a remote failure leaves a pending
// delete marker for replay.
func (c *Coordinator) Delete(ctx context.Context, collection, key string) error {
	if err := c.local.Delete(localKey(collection, key)); err != nil {
		return fmt.Errorf("local delete %s/%s failed: %w", collection, key, err)
	}

	if err := c.remote.Delete(ctx, collection, key); err != nil {
		marker := &model.SyncMarker{
			Key:       collection + "/" + key,
			Op:        model.SyncOpDelete,
			Status:    model.SyncStatusPending,
			Error:     err.Error(),
			UpdatedAt: time.Now().UTC(),
		}
		c.logger.Printf("Remote delete deferred: %s/%s (%v)", collection, key, err)
		return c.putMarker(marker)
	}

	// Remote copy is gone, nothing left to track.
	if err := c.local.Delete(markerKey(collection, key)); err != nil {
		return fmt.Errorf("failed to clear marker for %s/%s: %w", collection, key, err)
	}
	return nil
}

// Status returns the sync marker for one entity, or store.ErrNotFound if the
// entity was never written through the coordinator.
func (c *Coordinator) Status(collection, key string) (*model.SyncMarker, error) {
	data, err := c.local.Get(markerKey(collection, key))
	if err != nil {
		return nil, err
	}
	var marker model.SyncMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("corrupt marker for %s/%s: %w", collection, key, err)
	}
	return &marker, nil
}

// Pending returns all markers whose remote write has not succeeded yet.
func (c *Coordinator) Pending() ([]*model.SyncMarker, error) {
	keys, err := c.local.Keys(markerPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}

	var pending []*model.SyncMarker
	for _, k := range keys {
		data, err := c.local.Get(k)
		if err != nil {
			continue
		}
		var marker model.SyncMarker
		if err := json.Unmarshal(data, &marker); err != nil {
			c.logger.Printf("Warning: skipping corrupt marker %s: %v", k, err)
			continue
		}
		if marker.Status == model.SyncStatusPending {
			pending = append(pending, &marker)
		}
	}
	return pending, nil
}

// PendingCount returns the number of entities awaiting a remote write.
func (c *Coordinator) PendingCount() (int, error) {
	pending, err := c.Pending()
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// ReplayPending re-attempts the remote operation for every pending marker
// and returns how many were synced. Entities that fail again stay pending
// for the next replay; the call is idempotent and safe to run repeatedly.
func (c *Coordinator) ReplayPending(ctx context.Context) (int, error) {
	pending, err := c.Pending()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	c.logger.Printf("Replaying %d pending writes", len(pending))

	replayed := 0
	for _, marker := range pending {
		collection, key, ok := splitEntityKey(marker.Key)
		if !ok {
			c.logger.Printf("Warning: malformed marker key %q", marker.Key)
			continue
		}

		if err := c.replayOne(ctx, collection, key, marker); err != nil {
			marker.Error = err.Error()
			marker.UpdatedAt = time.Now().UTC()
			if perr := c.putMarker(marker); perr != nil {
				return replayed, perr
			}
			c.logger.Printf("Replay failed, still pending: %s (%v)", marker.Key, err)
			continue
		}
		replayed++
	}

	c.logger.Printf("Replay complete: %d synced, %d still pending", replayed, len(pending)-replayed)
	return replayed, nil
}

// replayOne re-attempts a single marker's remote operation and updates the
// marker on success.
func (c *Coordinator) replayOne(ctx context.Context, collection, key string, marker *model.SyncMarker) error {
	switch marker.Op {
	case model.SyncOpDelete:
		if err := c.remote.Delete(ctx, collection, key); err != nil {
			return err
		}
		return c.local.Delete(markerKey(collection, key))

	default: // set
		value, err := c.local.Get(localKey(collection, key))
		if errors.Is(err, store.ErrNotFound) {
			// Local value was deleted after the marker was written;
			// nothing to push anymore.
			return c.local.Delete(markerKey(collection, key))
		}
		if err != nil {
			return err
		}
		if err := c.remote.Set(ctx, collection, key, value); err != nil {
			return err
		}
		now := time.Now().UTC()
		marker.Status = model.SyncStatusSynced
		marker.SyncedAt = &now
		marker.Error = ""
		marker.UpdatedAt = now
		return c.putMarker(marker)
	}
}

func (c *Coordinator) putMarker(marker *model.SyncMarker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("failed to marshal marker %s: %w", marker.Key, err)
	}
	if err := c.local.Set(markerPrefix+marker.Key, data); err != nil {
		return fmt.Errorf("failed to store marker %s: %w", marker.Key, err)
	}
	return nil
}

// splitEntityKey parses "collection/id" into its parts.
func splitEntityKey(key string) (collection, id string, ok bool) {
	i := strings.Index(key, "/")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
