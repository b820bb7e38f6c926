package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a
// re-sync starts.
const DefaultDebounce = 2 * time.Second

// SyncFunc performs one full synchronization.
type SyncFunc func(ctx context.Context) error

// Watcher re-synchronizes a vault whenever files in it change.
type Watcher struct {
	root     string
	walker   *Walker
	sync     SyncFunc
	logger   *slog.Logger
	debounce time.Duration

	// watched holds the slash-separated relative paths of watched directories.
	watched map[string]struct{}
}

// NewWatcher creates a watcher for the vault at root. walker decides which
// directories are watched and which events matter.
func NewWatcher(root string, walker *Walker, sync SyncFunc, logger *slog.Logger) *Watcher {
	return &Watcher{
		root:     root,
		walker:   walker,
		sync:     sync,
		logger:   logger,
		debounce: DefaultDebounce,
		watched:  make(map[string]struct{}),
	}
}

// SetDebounce changes the quiet period.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run performs an initial sync and then re-syncs after every batch of
// changes. Failed syncs are logged and do not stop the watcher. Run blocks
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addDirectories(ctx, watcher); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	w.runSync(ctx)

	// Batch changes until the vault has been quiet for the debounce period
	pending := 0
	batchTimer := time.NewTimer(w.debounce)
	batchTimer.Stop() // Don't start yet

	w.logger.Info("watching vault for changes", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirectories(ctx, watcher); err != nil {
						w.logger.Warn("failed to watch new directory",
							slog.String("path", event.Name),
							slog.String("error", err.Error()))
					}
				}
			}

			pending++
			batchTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-batchTimer.C:
			if pending == 0 {
				continue
			}
			w.logger.Info("changes detected, re-syncing", slog.Int("events", pending))
			pending = 0
			w.runSync(ctx)
		}
	}
}

func (w *Watcher) runSync(ctx context.Context) {
	if err := w.sync(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("sync failed", slog.String("error", err.Error()))
	}
}

// addDirectories watches every directory the walker visits. Adding an
// already watched directory is a no-op.
func (w *Watcher) addDirectories(ctx context.Context, watcher *fsnotify.Watcher) error {
	return w.walker.Walk(ctx, func(dir Directory) error {
		if err := watcher.Add(filepath.Join(w.root, filepath.FromSlash(dir.Path))); err != nil {
			return err
		}
		w.watched[dir.Path] = struct{}{}
		return nil
	})
}

// relevant reports whether an event may change the graph.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	// Removed or renamed paths cannot be inspected. They matter when they
	// were a watched directory or name an eligible note.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if _, ok := w.watched[rel]; ok {
			delete(w.watched, rel)
			return true
		}
		return !w.walker.Excluded(rel, false)
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}
	return !w.walker.Excluded(rel, info.IsDir())
}
