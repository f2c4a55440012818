// Package taskrepo implements task persistence on top of the sync
// coordinator: idempotent creates with duplicate detection, cursor-based
// pagination that works online and offline, chunked batch migration from
// legacy exports, and duplicate merging.
//
// All writes flow through the coordinator, so every operation here is safe to
// run without remote connectivity: the data lands locally and replays later.
package taskrepo

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

// Collection is the remote collection and local key prefix for tasks.
const Collection = "tasks"

// DefaultPageSize bounds list pages when the caller does not pick a limit.
const DefaultPageSize = 50

// Config holds tunables for the task repository.
type Config struct {
	// CacheLimit is the bounded working set size (number of tasks).
	CacheLimit int

	// AvgTaskBytes tunes the cache memory estimate.
	AvgTaskBytes int

	// StaleLockThreshold is the age after which a migration lock left by a
	// crashed process is reclaimed.
	StaleLockThreshold time.Duration

	// Logger for diagnostics. If nil, a default logger is used.
	Logger *log.Logger
}

// DefaultConfig returns the default repository configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheLimit:         200,
		AvgTaskBytes:       512,
		StaleLockThreshold: 10 * time.Minute,
	}
}

// Repository provides task CRUD, pagination, migration and deduplication.
//
// Example:
//
//	repo := taskrepo.New(coord, remote, local, nil)
//	task, err := repo.Create(ctx, taskrepo.CreateInput{
//		Text:    "Buy groceries",
//		Section: model.SectionToday,
//	})
type Repository struct {
	coord  *syncer.Coordinator
	remote store.Remote
	local  store.Local
	cache  *cache.Cache[string, *model.Task]
	cfg    *Config
	logger *log.Logger
}

// New creates a task repository. Pass nil cfg for defaults.
func New(coord *syncer.Coordinator, remote store.Remote, local store.Local, cfg *Config) *Repository {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[taskrepo] ", log.LstdFlags)
	}
	return &Repository{
		coord:  coord,
		remote: remote,
		local:  local,
		cache:  cache.New[string, *model.Task](cfg.AvgTaskBytes),
		cfg:    cfg,
		logger: logger,
	}
}

// CreateInput is the caller-supplied portion of a new task.
type CreateInput struct {
	ID       string // optional; generated when empty
	Text     string
	Section  model.Section
	Priority model.Priority
	Date     string
	SubTasks []string
	Details  []model.Note

	// EstimatedDuration in minutes (0 = unknown).
	EstimatedDuration int
}

// Create adds a task, or returns the already existing task when the section
// holds a duplicate. Callers can therefore retry Create freely: re-submitting
// the same text converges on one stored task instead of accumulating copies.
//
// The duplicate check compares normalized text against every task in the
// target section (see IsDuplicate for the matching rule). It runs before any
// write, so a duplicate create performs no storage mutation at all.
func (r *Repository) Create(ctx context.Context, input CreateInput) (*model.Task, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	task := &model.Task{
		ID:                input.ID,
		Text:              input.Text,
		Section:           input.Section,
		Priority:          input.Priority,
		Date:              input.Date,
		SubTasks:          input.SubTasks,
		Details:           input.Details,
		EstimatedDuration: input.EstimatedDuration,
	}
	task.SetDefaults()
	if err := task.Validate(); err != nil {
		return nil, &ValidationError{Field: "task", Reason: err.Error()}
	}

	existing, err := r.GetBySection(ctx, task.Section)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	for _, other := range existing {
		if IsDuplicate(task.Text, other.Text) {
			r.logger.Printf("Create resolved to existing task %s (%q)", other.ID, other.Text)
			r.cache.Set(other.ID, other)
			return other, nil
		}
	}

	if err := r.write(ctx, task); err != nil {
		return nil, err
	}
	r.cache.Set(task.ID, task)
	return task, nil
}

// Get returns the task by id, checking the cache before the stores.
func (r *Repository) Get(ctx context.Context, id string) (*model.Task, error) {
	if task, ok := r.cache.Get(id); ok {
		return task, nil
	}
	data, err := r.coord.Read(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	task, err := decodeTask(data)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	r.cache.Set(id, task)
	return task, nil
}

// Patch is a partial task update. Nil pointer fields are left unchanged;
// nil slices are left unchanged (pass an empty slice to clear).
type Patch struct {
	Text              *string
	Section           *model.Section
	Priority          *model.Priority
	Date              *string
	Completed         *bool
	SubTasks          []string
	Details           []model.Note
	EstimatedDuration *int
	ActualDuration    *int
}

// Update applies a partial update to an existing task.
//
// Changing the text (or moving the task to another section) re-runs the
// duplicate check against the target section, excluding the task itself;
// a collision fails with DuplicateTaskError and leaves the task untouched.
// Completion transitions stamp or clear CompletedAt.
func (r *Repository) Update(ctx context.Context, id string, patch Patch) (*model.Task, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Work on a copy so a failed validation or duplicate check does not
	// corrupt the cached task.
	updated := *current

	if patch.Text != nil {
		updated.Text = *patch.Text
	}
	if patch.Section != nil {
		updated.Section = *patch.Section
	}
	if patch.Priority != nil {
		updated.Priority = *patch.Priority
	}
	if patch.Date != nil {
		updated.Date = *patch.Date
	}
	if patch.SubTasks != nil {
		updated.SubTasks = patch.SubTasks
	}
	if patch.Details != nil {
		updated.Details = patch.Details
	}
	if patch.EstimatedDuration != nil {
		updated.EstimatedDuration = *patch.EstimatedDuration
	}
	if patch.ActualDuration != nil {
		updated.ActualDuration = *patch.ActualDuration
	}
	if patch.Completed != nil && *patch.Completed != current.Completed {
		updated.Completed = *patch.Completed
		if updated.Completed {
			now := time.Now().UTC()
			updated.CompletedAt = &now
		} else {
			updated.CompletedAt = nil
		}
	}

	if err := updated.Validate(); err != nil {
		return nil, &ValidationError{Field: "task", Reason: err.Error()}
	}

	textChanged := updated.NormalizedText() != current.NormalizedText()
	sectionChanged := updated.Section != current.Section
	if textChanged || sectionChanged {
		peers, err := r.GetBySection(ctx, updated.Section)
		if err != nil {
			return nil, fmt.Errorf("duplicate check failed: %w", err)
		}
		for _, other := range peers {
			if other.ID == id {
				continue
			}
			if IsDuplicate(updated.Text, other.Text) {
				return nil, &DuplicateTaskError{
					ExistingID: other.ID,
					Section:    updated.Section,
					Text:       updated.Text,
				}
			}
		}
	}

	updated.Touch()
	if err := r.write(ctx, &updated); err != nil {
		return nil, err
	}
	r.cache.Set(id, &updated)
	return &updated, nil
}

// Delete removes a task from both stores and the cache.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.coord.Delete(ctx, Collection, id); err != nil {
		return err
	}
	r.cache.Delete(id)
	return nil
}

// PageOptions configures a paginated listing.
type PageOptions struct {
	// Limit is the page size (0 = DefaultPageSize).
	Limit int

	// Cursor continues a previous page; pass TaskPage.NextCursor verbatim.
	Cursor string

	// OrderBy is one of "created_at", "modified_at", "text", "date".
	// Empty = "created_at".
	OrderBy string

	Descending bool
}

// TaskPage is one page of tasks plus a continuation cursor.
type TaskPage struct {
	Tasks   []*model.Task
	HasMore bool

	// NextCursor is set only when HasMore is true.
	NextCursor string
}

// GetAllPaginated returns one page of tasks ordered by the requested field.
//
// It fetches limit+1 records and uses the presence of the extra record to
// decide HasMore, so the flag is exact without a separate count. The cursor
// format is shared with the offline path: a page started online can be
// continued offline and vice versa.
func (r *Repository) GetAllPaginated(ctx context.Context, opts PageOptions) (*TaskPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}

	page, err := r.remote.Query(ctx, Collection, store.QueryOptions{
		OrderBy:    orderBy,
		Descending: opts.Descending,
		StartAfter: opts.Cursor,
		Limit:      limit + 1,
	})
	if err != nil {
		if !errors.Is(err, store.ErrRemoteUnavailable) {
			return nil, err
		}
		r.logger.Printf("Remote query unavailable, listing from local store: %v", err)
		return r.paginateLocal(opts, limit, orderBy)
	}

	tasks := make([]*model.Task, 0, len(page.Docs))
	for _, doc := range page.Docs {
		task, err := decodeTask(doc.Value)
		if err != nil {
			r.logger.Printf("Skipping corrupt task %s: %v", doc.Key, err)
			continue
		}
		tasks = append(tasks, task)
	}
	return r.buildPage(tasks, limit, orderBy)
}

// GetAll returns every task by walking GetAllPaginated to completion.
// Intended for migration and deduplication, not hot paths.
func (r *Repository) GetAll(ctx context.Context) ([]*model.Task, error) {
	var all []*model.Task
	var cursor string
	for {
		page, err := r.GetAllPaginated(ctx, PageOptions{
			Limit:  store.MaxBatchSize,
			Cursor: cursor,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Tasks...)
		if !page.HasMore {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// GetBySection returns every task in one section, ordered by creation time.
// The filter runs server-side when the remote store is reachable and falls
// back to a local scan otherwise.
func (r *Repository) GetBySection(ctx context.Context, section model.Section) ([]*model.Task, error) {
	var results []*model.Task
	var cursor string
	for {
		page, err := r.remote.Query(ctx, Collection, store.QueryOptions{
			Where:      []store.Where{{Field: "section", Value: string(section)}},
			OrderBy:    "created_at",
			StartAfter: cursor,
			Limit:      store.MaxBatchSize,
		})
		if err != nil {
			if !errors.Is(err, store.ErrRemoteUnavailable) {
				return nil, err
			}
			return r.sectionLocal(section)
		}
		for _, doc := range page.Docs {
			task, err := decodeTask(doc.Value)
			if err != nil {
				r.logger.Printf("Skipping corrupt task %s: %v", doc.Key, err)
				continue
			}
			results = append(results, task)
		}
		if page.NextCursor == "" {
			return results, nil
		}
		cursor = page.NextCursor
	}
}

// write serializes the task and routes it through the sync coordinator.
func (r *Repository) write(ctx context.Context, task *model.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	return r.coord.Write(ctx, Collection, task.ID, data)
}

// buildPage trims the limit+1 probe result into a page and mints the cursor
// from the last *kept* task, not the probe record.
func (r *Repository) buildPage(tasks []*model.Task, limit int, orderBy string) (*TaskPage, error) {
	page := &TaskPage{Tasks: tasks}
	if len(tasks) > limit {
		page.Tasks = tasks[:limit]
		page.HasMore = true
		last := page.Tasks[limit-1]
		page.NextCursor = store.EncodeCursor(orderValue(last, orderBy), last.ID)
	}
	for _, task := range page.Tasks {
		r.cache.Set(task.ID, task)
	}
	r.cache.EvictOverflow(r.cfg.CacheLimit)
	return page, nil
}

// listLocal loads every task stored locally.
func (r *Repository) listLocal() ([]*model.Task, error) {
	keys, err := r.local.Keys(Collection + "/")
	if err != nil {
		return nil, err
	}
	tasks := make([]*model.Task, 0, len(keys))
	for _, key := range keys {
		data, err := r.local.Get(key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		task, err := decodeTask(data)
		if err != nil {
			r.logger.Printf("Skipping corrupt local task %s: %v", key, err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// paginateLocal serves GetAllPaginated from the local store with the same
// ordering, cursor and limit+1 semantics as the remote path.
func (r *Repository) paginateLocal(opts PageOptions, limit int, orderBy string) (*TaskPage, error) {
	tasks, err := r.listLocal()
	if err != nil {
		return nil, err
	}
	sortTasks(tasks, orderBy, opts.Descending)

	if opts.Cursor != "" {
		afterValue, afterKey, err := store.DecodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		start := len(tasks)
		for i, task := range tasks {
			if cursorBefore(afterValue, afterKey, orderValue(task, orderBy), task.ID, opts.Descending) {
				start = i
				break
			}
		}
		tasks = tasks[start:]
	}

	if len(tasks) > limit+1 {
		tasks = tasks[:limit+1]
	}
	return r.buildPage(tasks, limit, orderBy)
}

func (r *Repository) sectionLocal(section model.Section) ([]*model.Task, error) {
	tasks, err := r.listLocal()
	if err != nil {
		return nil, err
	}
	filtered := tasks[:0]
	for _, task := range tasks {
		if task.Section == section {
			filtered = append(filtered, task)
		}
	}
	sortTasks(filtered, "created_at", false)
	return filtered, nil
}

// orderValue returns the comparable string the given field serializes to,
// matching the representation the remote store orders by.
func orderValue(task *model.Task, orderBy string) string {
	switch orderBy {
	case "modified_at":
		return task.ModifiedAt.Format(time.RFC3339Nano)
	case "text":
		return task.Text
	case "date":
		return task.Date
	default:
		return task.CreatedAt.Format(time.RFC3339Nano)
	}
}

// sortTasks orders tasks by the given field with the id as tie-breaker,
// mirroring the remote query order.
func sortTasks(tasks []*model.Task, orderBy string, descending bool) {
	sort.SliceStable(tasks, func(i, j int) bool {
		vi, vj := orderValue(tasks[i], orderBy), orderValue(tasks[j], orderBy)
		if vi != vj {
			if descending {
				return vi > vj
			}
			return vi < vj
		}
		if descending {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// cursorBefore reports whether (value, key) sorts strictly after the cursor
// position, i.e. belongs on the next page.
func cursorBefore(afterValue, afterKey, value, key string, descending bool) bool {
	if value != afterValue {
		if descending {
			return value < afterValue
		}
		return value > afterValue
	}
	if descending {
		return key < afterKey
	}
	return key > afterKey
}

func decodeTask(data []byte) (*model.Task, error) {
	var task model.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}
