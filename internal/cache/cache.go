// Package cache owns the on-disk symbol cache: its directory, the backing
// SQLite store, corruption recovery and the readiness protocol that gates
// queries until a build has been committed.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/storage"
	"github.com/lintingbin2009/Erl-AutoCompletion/pkg/types"
)

const (
	// DefaultDataType namespaces the backing file when none is configured
	DefaultDataType = "project"
	// DefaultVersion is the index version assumed when none is configured
	DefaultVersion = "0.0.0"

	fileSuffix = "_completion"
)

var (
	// ErrCacheUnavailable is returned when the store cannot be opened even
	// after the cache directory has been recreated
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrVersionMismatch is returned when the cache was written under another index version
	ErrVersionMismatch = errors.New("cache version mismatch")
	// ErrNotOpen is returned by write operations on a cache with no open store
	ErrNotOpen = errors.New("cache not open")
	// ErrNoCacheDir is returned when Options.Dir is empty
	ErrNoCacheDir = errors.New("cache directory is required")
)

// Options configures a Cache.
type Options struct {
	Dir      string // cache directory, deleted and recreated on corruption
	DataType string // backing file is <Dir>/<DataType>_completion
	Version  string // index version; a different stored version invalidates the cache

	// ResumeLastBuild starts the cache Ready when the store already holds a
	// committed build under the same version. Off by default: a long-running
	// process serves nothing until its own first build has committed.
	ResumeLastBuild bool

	Logger *slog.Logger
}

// Cache is the cache manager. Queries are safe from any goroutine; writes go
// through WithStore and are expected from a single builder at a time.
type Cache struct {
	dir     string
	path    string
	version string
	logger  *slog.Logger

	// mu is held for reading by every store access and for writing while
	// the store is swapped or the directory is deleted.
	mu    sync.RWMutex
	store *storage.SQLiteStorage

	state atomic.Int32
	ready atomic.Bool
}

// Open binds the cache directory and opens the backing store, creating the
// schema if needed. Any open failure deletes and recreates the directory and
// retries exactly once; a second failure returns ErrCacheUnavailable.
func Open(ctx context.Context, opts Options) (*Cache, error) {
	if opts.Dir == "" {
		return nil, ErrNoCacheDir
	}
	if opts.DataType == "" {
		opts.DataType = DefaultDataType
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Cache{
		dir:     opts.Dir,
		path:    filepath.Join(opts.Dir, opts.DataType+fileSuffix),
		version: opts.Version,
		logger:  opts.Logger,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.recoverLocked(ctx); err != nil {
		return nil, err
	}

	if opts.ResumeLastBuild {
		if id, err := c.store.GetMeta(ctx, storage.MetaBuildID); err == nil && id != "" {
			c.ready.Store(true)
			c.setState(StateReady)
		}
	}
	return c, nil
}

// recoverLocked opens the store, recreating the directory once on failure.
// Caller holds c.mu for writing.
func (c *Cache) recoverLocked(ctx context.Context) error {
	c.setState(StateOpening)

	err := c.openLocked(ctx)
	if err == nil {
		c.setState(StateReadyEmpty)
		return nil
	}

	c.logger.Warn("cache open failed, recreating cache directory",
		"dir", c.dir, "error", err)

	if rerr := c.recreateDirLocked(); rerr != nil {
		c.setState(StateUninitialized)
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, rerr)
	}
	if err := c.openLocked(ctx); err != nil {
		c.setState(StateUninitialized)
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}

	c.setState(StateReadyEmpty)
	return nil
}

// openLocked opens the backing store and checks its index version.
func (c *Cache) openLocked(ctx context.Context) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(c.path)
	if err != nil {
		return err
	}

	if err := c.checkVersion(ctx, store); err != nil {
		_ = store.Close()
		return err
	}

	c.store = store
	return nil
}

// checkVersion records the configured version on a fresh store and rejects
// a store written under a different one.
func (c *Cache) checkVersion(ctx context.Context, store storage.Storage) error {
	stored, err := store.GetMeta(ctx, storage.MetaIndexVersion)
	if errors.Is(err, storage.ErrNotFound) {
		return store.SetMeta(ctx, storage.MetaIndexVersion, c.version)
	}
	if err != nil {
		return fmt.Errorf("failed to read index version: %w", err)
	}

	if !sameVersion(stored, c.version) {
		return fmt.Errorf("%w: stored %s, configured %s", ErrVersionMismatch, stored, c.version)
	}
	return nil
}

// sameVersion compares two versions semantically when both parse, so
// "1.2" and "1.2.0" are the same index version.
func sameVersion(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return va.Equal(vb)
}

// recreateDirLocked closes the store and deletes and recreates the directory.
func (c *Cache) recreateDirLocked() error {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
	c.ready.Store(false)

	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("failed to remove cache directory: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}

// Reset discards the cache directory and reopens an empty store. In-flight
// queries finish first; queries issued meanwhile wait and then see an empty
// cache.
func (c *Cache) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.recreateDirLocked(); err != nil {
		c.setState(StateUninitialized)
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	return c.recoverLocked(ctx)
}

// Close closes the backing store. The cache is unusable afterwards.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready.Store(false)
	c.setState(StateUninitialized)
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// Path returns the backing file path.
func (c *Cache) Path() string {
	return c.path
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Version returns the configured index version.
func (c *Cache) Version() string {
	return c.version
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	return State(c.state.Load())
}

func (c *Cache) setState(s State) {
	c.state.Store(int32(s))
}

// Ready reports whether a build has been committed. It flips to true only
// after the commit has returned.
func (c *Cache) Ready() bool {
	return c.ready.Load()
}

// Build lifecycle

// BeginBuild moves the cache into StateBuilding. Readiness is left as is, so
// a cache that was already Ready keeps serving the previous build.
func (c *Cache) BeginBuild() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.store == nil {
		return ErrNotOpen
	}
	c.setState(StateBuilding)
	return nil
}

// MarkReady records a committed build and opens the cache to queries.
func (c *Cache) MarkReady(ctx context.Context, buildID string, at time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.store == nil {
		return
	}

	// Bookkeeping only; a failure here must not hide a committed build
	if err := c.store.SetMeta(ctx, storage.MetaBuildID, buildID); err != nil {
		c.logger.Warn("failed to record build id", "error", err)
	}
	if err := c.store.SetMeta(ctx, storage.MetaLastBuildAt, at.UTC().Format(time.RFC3339)); err != nil {
		c.logger.Warn("failed to record build time", "error", err)
	}

	c.ready.Store(true)
	c.setState(StateReady)
}

// AbortBuild returns from StateBuilding after a failed build, leaving the
// previously committed state visible.
func (c *Cache) AbortBuild() {
	if c.State() != StateBuilding {
		return
	}
	if c.ready.Load() {
		c.setState(StateReady)
	} else {
		c.setState(StateReadyEmpty)
	}
}

// WithStore runs fn with the open store while holding off directory
// deletion. It is the single write path used by builds.
func (c *Cache) WithStore(ctx context.Context, fn func(ctx context.Context, store storage.Storage) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.store == nil {
		return ErrNotOpen
	}
	return fn(ctx, c.store)
}

// Queries

// QueryByModule returns the completion rows of a module. It returns an empty
// slice, never an error, until a build has been committed.
func (c *Cache) QueryByModule(ctx context.Context, module string) []types.CompletionItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready.Load() || c.store == nil {
		return []types.CompletionItem{}
	}
	items, err := c.store.QueryByModule(ctx, module)
	if err != nil {
		c.logger.Warn("module query failed", "module", module, "error", err)
		return []types.CompletionItem{}
	}
	return items
}

// QueryModules returns every indexed module, empty until ready.
func (c *Cache) QueryModules(ctx context.Context) []types.ModuleItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready.Load() || c.store == nil {
		return []types.ModuleItem{}
	}
	items, err := c.store.QueryModules(ctx)
	if err != nil {
		c.logger.Warn("module list query failed", "error", err)
		return []types.ModuleItem{}
	}
	return items
}

// QueryPosition returns the definitions of module:function for every arity,
// empty until ready.
func (c *Cache) QueryPosition(ctx context.Context, module, function string) []types.PositionItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready.Load() || c.store == nil {
		return []types.PositionItem{}
	}
	items, err := c.store.QueryPosition(ctx, module, function)
	if err != nil {
		c.logger.Warn("position query failed", "module", module, "function", function, "error", err)
		return []types.PositionItem{}
	}
	return items
}
