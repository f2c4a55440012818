package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/daybook-app/daybook/internal/model"
	"github.com/daybook-app/daybook/internal/store"
)

// BatchItem is one entity in a batched write.
type BatchItem struct {
	Key   string
	Value []byte
}

// WriteBatch writes a set of entities locally, then pushes them to the remote
// store in chunks bounded by store.MaxBatchSize, flushing and starting a new
// batch when the cap is reached.
//
// Chunking exists for network efficiency, not atomicity: a failure mid-way
// leaves earlier chunks synced and later ones pending, which is safe because
// callers (migration) are idempotent and re-runnable. As with Write, local
// failures are fatal while remote failures only leave pending markers.
func (c *Coordinator) WriteBatch(ctx context.Context, collection string, items []BatchItem) error {
	if len(items) == 0 {
		return nil
	}

	// Durability first: every item lands locally before any remote traffic.
	for _, item := range items {
		if err := c.local.Set(localKey(collection, item.Key), item.Value); err != nil {
			return fmt.Errorf("local write %s/%s failed: %w", collection, item.Key, err)
		}
	}

	for start := 0; start < len(items); start += store.MaxBatchSize {
		end := start + store.MaxBatchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		ops := make([]store.Op, 0, len(chunk))
		for _, item := range chunk {
			ops = append(ops, store.Op{
				Kind:       store.OpSet,
				Collection: collection,
				Key:        item.Key,
				Value:      item.Value,
			})
		}

		batchErr := c.remote.BatchWrite(ctx, ops)
		if batchErr != nil {
			c.logger.Printf("Remote batch deferred: %s (%d ops, %v)", collection, len(ops), batchErr)
		}

		now := time.Now().UTC()
		for _, item := range chunk {
			marker := &model.SyncMarker{
				Key:       collection + "/" + item.Key,
				Op:        model.SyncOpSet,
				UpdatedAt: now,
			}
			if batchErr != nil {
				marker.Status = model.SyncStatusPending
				marker.Error = batchErr.Error()
			} else {
				marker.Status = model.SyncStatusSynced
				marker.SyncedAt = &now
			}
			if err := c.putMarker(marker); err != nil {
				return err
			}
		}
	}

	return nil
}
