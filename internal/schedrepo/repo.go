// Package schedrepo implements daily-schedule persistence: versioned saves
// with derived metadata and an archival history trail, completion tracking,
// rollover of unfinished items across days, capacity estimation from
// free-form durations, and multi-day context assembly.
//
// Schedules are keyed by calendar date (YYYY-MM-DD). Every save also writes a
// history record carrying the schedule plus a completion snapshot, so a
// date's outcome survives even after its current schedule is superseded.
package schedrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/daybook-app/daybook/internal/cache"
	"github.com/daybook-app/daybook/internal/model"
	"github.com/daybook-app/daybook/internal/store"
	"github.com/daybook-app/daybook/internal/syncer"
)

const (
	// CollectionSchedules holds the current schedule per date.
	CollectionSchedules = "schedules"
	// CollectionHistory holds the latest archival record per date.
	CollectionHistory = "schedule_history"
)

// Config holds tunables for the schedule repository.
type Config struct {
	// CacheLimit bounds the in-memory schedule working set (entries).
	CacheLimit int

	// AvgScheduleBytes tunes the cache memory estimate.
	AvgScheduleBytes int

	// DefaultItemMinutes is assumed for items whose duration cannot be
	// parsed.
	DefaultItemMinutes int

	// OverloadThresholdMinutes marks a day as overloaded when its estimated
	// total exceeds it.
	OverloadThresholdMinutes int

	// Logger for diagnostics. If nil, a default logger is used.
	Logger *log.Logger
}

// DefaultConfig returns the default schedule repository configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheLimit:               60,
		AvgScheduleBytes:         4096,
		DefaultItemMinutes:       30,
		OverloadThresholdMinutes: 8 * 60,
	}
}

// Repository provides schedule persistence and analysis.
//
// Example:
//
//	repo := schedrepo.New(coord, remote, local, nil)
//	saved, err := repo.Save(ctx, &model.Schedule{
//		Date:  "2024-06-01",
//		Items: []model.ScheduleItem{{Text: "standup", Time: "09:00"}},
//	})
type Repository struct {
	coord   *syncer.Coordinator
	remote  store.Remote
	local   store.Local
	current *cache.Cache[string, *model.Schedule]
	history *cache.Cache[string, *model.HistoryRecord]
	cfg     *Config
	logger  *log.Logger
}

// New creates a schedule repository. Pass nil cfg for defaults.
func New(coord *syncer.Coordinator, remote store.Remote, local store.Local, cfg *Config) *Repository {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[schedrepo] ", log.LstdFlags)
	}
	return &Repository{
		coord:   coord,
		remote:  remote,
		local:   local,
		current: cache.New[string, *model.Schedule](cfg.AvgScheduleBytes),
		history: cache.New[string, *model.HistoryRecord](cfg.AvgScheduleBytes),
		cfg:     cfg,
		logger:  logger,
	}
}

// Save persists a schedule as the current plan for its date.
//
// The version is incremented from the stored schedule (not the caller's
// copy), the metadata block is recomputed from the items, and a history
// record with a fresh completion snapshot is written alongside. The caller's
// schedule is updated in place with the derived fields.
func (r *Repository) Save(ctx context.Context, s *model.Schedule) (*model.Schedule, error) {
	return r.SaveWithSnapshot(ctx, s, nil)
}

// SaveWithSnapshot is Save with a caller-supplied completion snapshot for the
// history record. Callers that track completion outside the schedule items
// pass their own snapshot; nil derives one from the item flags.
func (r *Repository) SaveWithSnapshot(ctx context.Context, s *model.Schedule, snapshot *model.CompletionSnapshot) (*model.Schedule, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}

	version := 1
	if existing, err := r.Load(ctx, s.Date); err == nil {
		version = existing.Version + 1
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("save schedule %s: %w", s.Date, err)
	}

	now := time.Now().UTC()
	s.Version = version
	s.SavedAt = now
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = now
	}
	s.Metadata = s.ComputeMetadata(r.estimateItemMinutes)

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode schedule %s: %w", s.Date, err)
	}
	if err := r.coord.Write(ctx, CollectionSchedules, s.Date, data); err != nil {
		return nil, err
	}

	if snapshot == nil {
		snapshot = model.SnapshotFromSchedule(s)
	}
	record := &model.HistoryRecord{
		Date:     s.Date,
		Schedule: *s,
		Snapshot: snapshot,
		SavedAt:  now,
		Version:  version,
	}
	recordData, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode history %s: %w", s.Date, err)
	}
	if err := r.coord.Write(ctx, CollectionHistory, s.Date, recordData); err != nil {
		return nil, err
	}

	r.current.Set(s.Date, s)
	r.history.Set(s.Date, record)
	r.current.EvictOverflow(r.cfg.CacheLimit)
	r.history.EvictOverflow(r.cfg.CacheLimit)
	return s, nil
}

// Load returns the current schedule for a date, falling back to the archival
// history record when the current copy is missing. The fallback covers dates
// whose current schedule was pruned but whose history survives.
func (r *Repository) Load(ctx context.Context, date string) (*model.Schedule, error) {
	if s, ok := r.current.Get(date); ok {
		return s, nil
	}

	data, err := r.coord.Read(ctx, CollectionSchedules, date)
	if err == nil {
		var s model.Schedule
		if jsonErr := json.Unmarshal(data, &s); jsonErr != nil {
			return nil, fmt.Errorf("schedule %s: %w", date, jsonErr)
		}
		r.current.Set(date, &s)
		return &s, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	record, err := r.loadHistory(ctx, date)
	if err != nil {
		return nil, err
	}
	s := record.Schedule
	r.current.Set(date, &s)
	return &s, nil
}

// loadHistory returns the archival record for a date.
func (r *Repository) loadHistory(ctx context.Context, date string) (*model.HistoryRecord, error) {
	if record, ok := r.history.Get(date); ok {
		return record, nil
	}
	data, err := r.coord.Read(ctx, CollectionHistory, date)
	if err != nil {
		return nil, err
	}
	var record model.HistoryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("history %s: %w", date, err)
	}
	r.history.Set(date, &record)
	return &record, nil
}

// HistoryOptions selects a slice of the schedule history.
type HistoryOptions struct {
	// StartDate and EndDate bound the range, inclusive (empty = unbounded).
	StartDate string
	EndDate   string

	// Limit caps the returned records (0 = 30).
	Limit int

	// Offset skips records from the newest end, for stepping through pages.
	Offset int
}

// HistoryPage is one page of history records, newest first.
type HistoryPage struct {
	Records []*model.HistoryRecord

	// Total is the number of records matching the range before paging.
	Total   int
	HasMore bool
}

// GetHistory lists archival records in a date range, newest date first.
//
// History volumes are small (one record per planned day), so the range is
// materialized and paged in memory; Total is therefore exact.
func (r *Repository) GetHistory(ctx context.Context, opts HistoryOptions) (*HistoryPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 30
	}

	records, err := r.listHistory(ctx)
	if err != nil {
		return nil, err
	}

	matched := records[:0]
	for _, record := range records {
		if opts.StartDate != "" && record.Date < opts.StartDate {
			continue
		}
		if opts.EndDate != "" && record.Date > opts.EndDate {
			continue
		}
		matched = append(matched, record)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Date > matched[j].Date })

	page := &HistoryPage{Total: len(matched)}
	start := opts.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Records = matched[start:end]
	page.HasMore = end < len(matched)
	return page, nil
}

// listHistory loads every archival record, from the remote store when
// reachable and the local store otherwise.
func (r *Repository) listHistory(ctx context.Context) ([]*model.HistoryRecord, error) {
	var records []*model.HistoryRecord
	var cursor string
	for {
		page, err := r.remote.Query(ctx, CollectionHistory, store.QueryOptions{
			OrderBy:    "date",
			Descending: true,
			StartAfter: cursor,
			Limit:      store.MaxBatchSize,
		})
		if err != nil {
			if !errors.Is(err, store.ErrRemoteUnavailable) {
				return nil, err
			}
			return r.listHistoryLocal()
		}
		for _, doc := range page.Docs {
			var record model.HistoryRecord
			if err := json.Unmarshal(doc.Value, &record); err != nil {
				r.logger.Printf("Skipping corrupt history record %s: %v", doc.Key, err)
				continue
			}
			records = append(records, &record)
		}
		if page.NextCursor == "" {
			return records, nil
		}
		cursor = page.NextCursor
	}
}

func (r *Repository) listHistoryLocal() ([]*model.HistoryRecord, error) {
	keys, err := r.local.Keys(CollectionHistory + "/")
	if err != nil {
		return nil, err
	}
	records := make([]*model.HistoryRecord, 0, len(keys))
	for _, key := range keys {
		data, err := r.local.Get(key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		var record model.HistoryRecord
		if err := json.Unmarshal(data, &record); err != nil {
			r.logger.Printf("Skipping corrupt local history record %s: %v", key, err)
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

// UpdateTaskCompletion marks one schedule item complete (or re-opens it) and
// re-saves the schedule, which refreshes the history record and snapshot.
//
// The item is located by task id first. Legacy schedules predate task ids, so
// when no id matches, the reference is matched as a case-insensitive
// substring of the item text. actualMinutes records time spent (0 = keep the
// stored value).
func (r *Repository) UpdateTaskCompletion(ctx context.Context, date, taskRef string, completed bool, actualMinutes int) (*model.Schedule, error) {
	s, err := r.Load(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("update completion %s: %w", date, err)
	}

	idx := findItem(s.Items, taskRef)
	if idx < 0 {
		return nil, fmt.Errorf("update completion %s: no item matches %q: %w", date, taskRef, store.ErrNotFound)
	}

	// Mutate a copy so a failed save leaves the cached schedule intact.
	updated := *s
	updated.Items = make([]model.ScheduleItem, len(s.Items))
	copy(updated.Items, s.Items)

	item := &updated.Items[idx]
	item.Completed = completed
	if completed {
		now := time.Now().UTC()
		item.CompletedAt = &now
		if actualMinutes > 0 {
			item.ActualDuration = actualMinutes
		}
	} else {
		item.CompletedAt = nil
	}

	return r.Save(ctx, &updated)
}

// findItem locates a schedule item by task id, then by case-insensitive
// substring of the item text.
func findItem(items []model.ScheduleItem, taskRef string) int {
	for i, item := range items {
		if item.TaskID != "" && item.TaskID == taskRef {
			return i
		}
	}
	ref := model.NormalizeText(taskRef)
	if ref == "" {
		return -1
	}
	for i, item := range items {
		if strings.Contains(model.NormalizeText(item.Text), ref) {
			return i
		}
	}
	return -1
}

// estimateItemMinutes resolves an item's estimated minutes from its free-form
// duration string, falling back to the configured default.
func (r *Repository) estimateItemMinutes(item model.ScheduleItem) int {
	return ParseDurationMinutes(item.Duration, r.cfg.DefaultItemMinutes)
}
