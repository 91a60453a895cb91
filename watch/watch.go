// Package watch keeps a directory of documents indexed: new or modified files
// are ingested after a quiet period and removed files are forgotten.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/docqa/core"
)

// Ingester is the part of the engine the watcher drives.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (core.ID, error)
	Forget(ctx context.Context, id core.ID) error
}

// Config controls event handling.
type Config struct {
	// Debounce is how long a file must stay quiet before it is ingested.
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{Debounce: 500 * time.Millisecond}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("%w: debounce must not be negative", core.ErrInvalidConfig)
	}
	return nil
}

// ErrIngesterRequired is returned by New without an Ingester.
var ErrIngesterRequired = errors.New("ingester is required")

// ChangeType says what a file event means for the index.
type ChangeType int

const (
	ChangeUpsert ChangeType = iota + 1
	ChangeDelete
)

func (c ChangeType) String() string {
	switch c {
	case ChangeUpsert:
		return "upsert"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one applied file change.
type Change struct {
	Path string
	Type ChangeType
	Id   core.ID
	Err  error
}

// Watcher watches directories and applies debounced changes.
type Watcher struct {
	ingester Ingester
	config   Config
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	onChange func(Change)

	mu      sync.Mutex
	pending map[string]*time.Timer
	latest  map[string]ChangeType
	ids     map[string]core.ID
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger.With("component", "watch")
		}
	}
}

// WithChangeHook registers a callback invoked after every applied change.
func WithChangeHook(fn func(Change)) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// New creates a watcher. Call Add for each directory, then Run.
func New(ingester Ingester, config Config, opts ...Option) (*Watcher, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		ingester: ingester,
		config:   config,
		logger:   slog.Default().With("component", "watch"),
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
		latest:   make(map[string]ChangeType),
		ids:      make(map[string]core.ID),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add watches dir and ingests the supported files already in it.
// Ingestion failures of existing files are logged, not returned.
func (w *Watcher) Add(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || !watchable(path) {
			continue
		}
		w.apply(ctx, path, ChangeUpsert)
	}
	w.logger.Info("watching directory", "dir", dir, "files", w.Tracked())
	return nil
}

// Run processes file events until ctx is cancelled. Pending changes are
// dropped on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if change, ok := classify(event); ok {
				w.schedule(ctx, event.Name, change)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "err", err)
		}
	}
}

// Close stops watching. Run returns once the event channels close.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	w.stopPending()
	w.wg.Wait()
	return err
}

// Tracked returns the number of files currently indexed by the watcher.
func (w *Watcher) Tracked() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ids)
}

// classify maps a file event to an index change. Directories, hidden files,
// unsupported formats and permission changes are ignored.
func classify(event fsnotify.Event) (ChangeType, bool) {
	if !watchable(event.Name) {
		return 0, false
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return ChangeDelete, true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return 0, false
		}
		return ChangeUpsert, true
	default:
		return 0, false
	}
}

func watchable(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	_, err := core.FormatFromPath(path)
	return err == nil
}

// schedule (re)starts the quiet-period timer for path. The last event wins.
func (w *Watcher) schedule(ctx context.Context, path string, change ChangeType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.latest[path] = change
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.config.Debounce)
		return
	}

	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.config.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] != timer {
			// superseded by a newer timer for the same path
			w.mu.Unlock()
			return
		}
		latest := w.latest[path]
		delete(w.pending, path)
		delete(w.latest, path)
		w.mu.Unlock()
		w.apply(ctx, path, latest)
	})
	w.pending[path] = timer
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
		delete(w.latest, path)
	}
}

func (w *Watcher) apply(ctx context.Context, path string, change ChangeType) {
	if ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	previous, known := w.ids[path]
	w.mu.Unlock()

	result := Change{Path: path, Type: change}
	switch change {
	case ChangeUpsert:
		id, err := w.ingester.IngestFile(ctx, path)
		result.Id, result.Err = id, err
		if err != nil {
			break
		}
		w.mu.Lock()
		w.ids[path] = id
		orphaned := known && previous != id && !w.referencedLocked(previous)
		w.mu.Unlock()
		if orphaned {
			if err := w.ingester.Forget(ctx, previous); err != nil && !errors.Is(err, core.ErrUnknownDocument) {
				w.logger.Warn("forgetting replaced document failed", "path", path, "document", previous, "err", err)
			}
		}
	case ChangeDelete:
		if !known {
			return
		}
		result.Id = previous
		w.mu.Lock()
		delete(w.ids, path)
		orphaned := !w.referencedLocked(previous)
		w.mu.Unlock()
		if !orphaned {
			break
		}
		if err := w.ingester.Forget(ctx, previous); err != nil && !errors.Is(err, core.ErrUnknownDocument) {
			result.Err = err
		}
	}

	if result.Err != nil {
		w.logger.Warn("applying file change failed", "path", path, "change", change, "err", result.Err)
	} else {
		w.logger.Info("file change applied", "path", path, "change", change, "document", result.Id)
	}
	if w.onChange != nil {
		w.onChange(result)
	}
}

// referencedLocked reports whether any tracked path still maps to id.
// Identical files share one content-derived id. Callers hold w.mu.
func (w *Watcher) referencedLocked(id core.ID) bool {
	for _, other := range w.ids {
		if other == id {
			return true
		}
	}
	return false
}
