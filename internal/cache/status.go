package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/storage"
)

// Status is a snapshot of the cache for diagnostics.
type Status struct {
	State         string    `json:"state"`
	Ready         bool      `json:"ready"`
	Path          string    `json:"path"`
	Version       string    `json:"version"`
	SchemaVersion string    `json:"schema_version"`
	SymbolsCount  int       `json:"symbols_count"`
	ModulesCount  int       `json:"modules_count"`
	FilesCount    int       `json:"files_count"`
	SizeBytes     int64     `json:"size_bytes"`
	LastBuildID   string    `json:"last_build_id,omitempty"`
	LastBuildAt   time.Time `json:"last_build_at,omitempty"`
}

// Status reports the lifecycle state and what the store currently holds.
// Counts reflect the last committed build even while the cache is not ready.
func (c *Cache) Status(ctx context.Context) (*Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &Status{
		State:   c.State().String(),
		Ready:   c.ready.Load(),
		Path:    c.path,
		Version: c.version,
	}
	if c.store == nil {
		return status, nil
	}

	stats, err := c.store.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get store status: %w", err)
	}
	status.SchemaVersion = stats.SchemaVersion
	status.SymbolsCount = stats.SymbolsCount
	status.ModulesCount = stats.ModulesCount
	status.FilesCount = stats.FilesCount

	// WAL mode keeps recent pages in the -wal side file until checkpoint
	for _, name := range []string{c.path, c.path + "-wal"} {
		if info, err := os.Stat(name); err == nil {
			status.SizeBytes += info.Size()
		}
	}

	if id, err := c.store.GetMeta(ctx, storage.MetaBuildID); err == nil {
		status.LastBuildID = id
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if at, err := c.store.GetMeta(ctx, storage.MetaLastBuildAt); err == nil {
		if parsed, perr := time.Parse(time.RFC3339, at); perr == nil {
			status.LastBuildAt = parsed
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	return status, nil
}
