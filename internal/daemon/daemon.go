// Package daemon runs the background sync loop: it watches the inbox
// directory for new task exports, migrates them into the repositories as the
// files settle, and periodically replays pending writes so offline edits
// reach the remote store once connectivity returns.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/daybook-app/daybook/internal/source"
	"github.com/daybook-app/daybook/internal/syncer"
	"github.com/daybook-app/daybook/internal/taskrepo"
)

// Events receives daemon lifecycle notifications. Implementations must not
// block; the dashboard uses this to push live updates.
type Events interface {
	// MigrationCompleted fires after each inbox migration pass.
	MigrationCompleted(result *taskrepo.MigrationResult)

	// ReplayCompleted fires after each replay pass with the number of
	// writes synced and the number still pending.
	ReplayCompleted(synced, pending int)
}

// Config holds daemon tunables.
type Config struct {
	// ReplayInterval is how often pending writes are replayed.
	ReplayInterval time.Duration

	// DebounceInterval is how long an inbox file must sit unchanged before
	// a migration pass runs. This batches rapid exports together.
	DebounceInterval time.Duration

	// Events receives notifications (nil = none).
	Events Events

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReplayInterval:   30 * time.Second,
		DebounceInterval: 200 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates inbox watching, migration and pending-write replay.
type Daemon struct {
	repo     *taskrepo.Repository
	coord    *syncer.Coordinator
	src      source.Source
	inboxDir string
	config   *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> last event
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon over an inbox directory. Use Start to begin.
func New(repo *taskrepo.Repository, coord *syncer.Coordinator, inboxDir string, config *Config) (*Daemon, error) {
	if repo == nil {
		return nil, fmt.Errorf("repo cannot be nil")
	}
	if coord == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if inboxDir == "" {
		return nil, fmt.Errorf("inboxDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		repo:        repo,
		coord:       coord,
		src:         source.NewDirSource(inboxDir, config.Logger),
		inboxDir:    inboxDir,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Migrate whatever is already sitting in the inbox
// 2. Replay any pending writes left from a previous run
// 3. Watch the inbox and migrate settled file changes
// 4. Replay pending writes on a fixed interval
//
// This blocks until ctx is cancelled or the daemon is stopped.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.MigrateInbox(ctx); err != nil {
		return fmt.Errorf("initial inbox migration failed: %w", err)
	}
	d.replayOnce(ctx)

	if err := d.watcher.Add(d.inboxDir); err != nil {
		return fmt.Errorf("failed to watch inbox directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.inboxDir)

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processChangeQueue()
	go d.replayLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()
	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}
	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// MigrateInbox loads every inbox record and migrates it through the task
// repository. Migration is idempotent, so re-running over the same inbox
// is safe and cheap.
func (d *Daemon) MigrateInbox(ctx context.Context) error {
	records, err := d.src.Load(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	result, err := d.repo.MigrateBatch(ctx, records)
	if err != nil {
		return err
	}
	d.config.Logger.Printf("Inbox migration: %d migrated, %d skipped, %d errored",
		result.Migrated, result.Skipped, result.Errored)
	if d.config.Events != nil {
		d.config.Events.MigrationCompleted(result)
	}
	return nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange records a file event, resetting its debounce window.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()
	d.changeQueue[path] = time.Now()
}

// processChangeQueue runs inbox migrations once queued changes settle.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if d.takeSettledChanges() {
				if err := d.MigrateInbox(d.ctx); err != nil {
					d.config.Logger.Printf("Inbox migration failed: %v", err)
				}
			}
		}
	}
}

// takeSettledChanges drains queue entries older than the debounce interval
// and reports whether a migration pass is due. Entries still inside the
// window stay queued for the next tick.
func (d *Daemon) takeSettledChanges() bool {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := time.Now()
	settled := false
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		d.config.Logger.Printf("Processing change: %s", path)
		delete(d.changeQueue, path)
		settled = true
	}
	return settled
}

// replayLoop replays pending writes on a fixed interval.
func (d *Daemon) replayLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ReplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.replayOnce(d.ctx)
		}
	}
}

// replayOnce runs a single replay pass and notifies listeners.
func (d *Daemon) replayOnce(ctx context.Context) {
	synced, err := d.coord.ReplayPending(ctx)
	if err != nil {
		d.config.Logger.Printf("Replay failed: %v", err)
		return
	}
	pending, err := d.coord.PendingCount()
	if err != nil {
		d.config.Logger.Printf("Pending count failed: %v", err)
		return
	}
	if synced > 0 || pending > 0 {
		d.config.Logger.Printf("Replay: %d synced, %d still pending", synced, pending)
	}
	if d.config.Events != nil {
		d.config.Events.ReplayCompleted(synced, pending)
	}
}
