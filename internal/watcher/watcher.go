// Package watcher triggers full rebuilds when source files change.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

const (
	// DefaultDebounce is the quiet period after the last change before a rebuild
	DefaultDebounce = 2 * time.Second
	// DefaultMinInterval is the minimum time between two rebuilds
	DefaultMinInterval = 10 * time.Second
)

// RebuildFunc starts a full rebuild. It should not block for the rebuild's
// duration. An error means no rebuild was started; the watcher retries after
// another debounce period.
type RebuildFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	Roots       []string
	Debounce    time.Duration
	MinInterval time.Duration

	// Match selects the files whose changes matter (e.g. *.erl).
	// nil matches every file.
	Match func(path string) bool

	Logger *slog.Logger
}

// Watcher observes the source roots and coalesces bursts of changes into a
// single rebuild.
type Watcher struct {
	rebuild  RebuildFunc
	watcher  *fsnotify.Watcher
	debounce time.Duration
	limiter  *rate.Limiter
	match    func(string) bool
	logger   *slog.Logger
}

// New creates a Watcher and registers every directory below the roots.
func New(rebuild RebuildFunc, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	match := opts.Match
	if match == nil {
		match = func(string) bool { return true }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		rebuild:  rebuild,
		watcher:  fsw,
		debounce: debounce,
		limiter:  rate.NewLimiter(limit, 1),
		match:    match,
		logger:   logger,
	}

	for _, root := range opts.Roots {
		w.addRecursive(root)
	}

	return w, nil
}

// addRecursive adds a directory and all its subdirectories to the watch list
func (w *Watcher) addRecursive(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			// Non-fatal, continue
			w.logger.Debug("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			res := w.limiter.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				timer.Reset(delay)
				continue
			}

			w.logger.Info("sources changed, rebuilding")
			if err := w.rebuild(ctx); err != nil {
				w.logger.Warn("rebuild not started, retrying", "error", err)
				timer.Reset(w.debounce)
			}
		}
	}
}

// handleEvent reports whether the event should schedule a rebuild.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	// Watch new directories, and rebuild for any sources they already hold
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addRecursive(event.Name)
			return true
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.match(event.Name)
}

// Close stops watching and releases resources
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
