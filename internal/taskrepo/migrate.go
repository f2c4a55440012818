package taskrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/daybook-app/daybook/internal/model"
	"github.com/daybook-app/daybook/internal/store"
	"github.com/daybook-app/daybook/internal/syncer"
)

// migrationLockKey guards against two processes migrating at once.
const migrationLockKey = "locks/migration"

// SectionTally counts migration outcomes within one section.
type SectionTally struct {
	Migrated int
	Skipped  int
	Errored  int
}

// MigrationResult summarizes one MigrateBatch run.
type MigrationResult struct {
	Migrated int
	Skipped  int
	Errored  int

	// BySection breaks the totals down per target section.
	BySection map[model.Section]*SectionTally

	// Errors holds one entry per failed record; a failed record never
	// aborts the run.
	Errors []*MigrationError
}

// MigrateBatch imports legacy task records in chunks of at most
// store.MaxBatchSize writes.
//
// The run is idempotent: records whose id or normalized (section, text) pair
// already exists are skipped, so re-running after a partial failure migrates
// only what is missing. Malformed records are counted and reported without
// stopping the batch. All writes land locally first and sync to the remote
// store per chunk; replay covers any chunk whose remote push failed.
//
// A lock in the local store serializes concurrent runs. A lock older than
// Config.StaleLockThreshold is treated as abandoned and reclaimed.
func (r *Repository) MigrateBatch(ctx context.Context, records []model.RawTask) (*MigrationResult, error) {
	if err := r.acquireMigrationLock(); err != nil {
		return nil, err
	}
	defer r.releaseMigrationLock()

	existing, err := r.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: load existing tasks: %w", err)
	}
	byID := make(map[string]bool, len(existing))
	byPair := make(map[string]bool, len(existing))
	for _, task := range existing {
		byID[task.ID] = true
		byPair[dedupeKey(task.Section, task.NormalizedText())] = true
	}

	result := &MigrationResult{BySection: make(map[model.Section]*SectionTally)}
	var items []syncer.BatchItem
	var migrated []*model.Task

	for i, record := range records {
		section := record.EffectiveSection()
		tally := result.BySection[section]
		if tally == nil {
			tally = &SectionTally{}
			result.BySection[section] = tally
		}

		task := &model.Task{
			ID:                record.ID,
			Text:              record.EffectiveText(),
			Section:           section,
			Priority:          record.EffectivePriority(),
			Completed:         record.Completed,
			SubTasks:          record.SubTasks,
			Details:           record.Details,
			EstimatedDuration: record.EstimatedDuration,
		}
		task.SetDefaults()
		if task.Completed && task.CompletedAt == nil {
			now := time.Now().UTC()
			task.CompletedAt = &now
		}
		if record.Date != "" {
			// Legacy dates are free-form; only canonical dates survive the
			// import, anything else is kept as task text context by the
			// inbox source before it gets here.
			if _, err := time.Parse(model.DateLayout, record.Date); err == nil {
				task.Date = record.Date
			}
		}

		if err := task.Validate(); err != nil {
			result.Errored++
			tally.Errored++
			result.Errors = append(result.Errors, &MigrationError{
				Index:   i,
				Section: string(section),
				Text:    record.EffectiveText(),
				Reason:  err.Error(),
			})
			continue
		}

		pair := dedupeKey(task.Section, task.NormalizedText())
		if byID[task.ID] || byPair[pair] {
			result.Skipped++
			tally.Skipped++
			continue
		}

		data, err := json.Marshal(task)
		if err != nil {
			result.Errored++
			tally.Errored++
			result.Errors = append(result.Errors, &MigrationError{
				Index:   i,
				Section: string(section),
				Text:    task.Text,
				Reason:  err.Error(),
			})
			continue
		}

		byID[task.ID] = true
		byPair[pair] = true
		items = append(items, syncer.BatchItem{Key: task.ID, Value: data})
		migrated = append(migrated, task)
		result.Migrated++
		tally.Migrated++
	}

	if err := r.coord.WriteBatch(ctx, Collection, items); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	for _, task := range migrated {
		r.cache.Set(task.ID, task)
	}
	r.cache.EvictOverflow(r.cfg.CacheLimit)

	r.logger.Printf("Migration complete: %d migrated, %d skipped, %d errored",
		result.Migrated, result.Skipped, result.Errored)
	return result, nil
}

// acquireMigrationLock claims the migration lock or fails with
// ErrMigrationInProgress when a fresh lock is already held.
func (r *Repository) acquireMigrationLock() error {
	data, err := r.local.Get(migrationLockKey)
	if err == nil {
		lockedAt, parseErr := time.Parse(time.RFC3339Nano, string(data))
		if parseErr == nil && time.Since(lockedAt) < r.cfg.StaleLockThreshold {
			return ErrMigrationInProgress
		}
		r.logger.Printf("Reclaiming stale migration lock from %s", string(data))
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("migration lock: %w", err)
	}
	return r.local.Set(migrationLockKey, []byte(time.Now().UTC().Format(time.RFC3339Nano)))
}

func (r *Repository) releaseMigrationLock() {
	if err := r.local.Delete(migrationLockKey); err != nil {
		r.logger.Printf("Failed to release migration lock: %v", err)
	}
}
