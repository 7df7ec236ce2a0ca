package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/cache"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/parser"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/scanner"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/storage"
	"github.com/lintingbin2009/Erl-AutoCompletion/pkg/types"
)

// ErrIndexingInProgress is returned when a rebuild is requested while
// another one is running
var ErrIndexingInProgress = errors.New("indexing already in progress")

// maxErrorMessages caps the per-file errors kept in Statistics
const maxErrorMessages = 100

// Indexer coordinates the rebuild pipeline: scan -> parse -> store -> commit
type Indexer struct {
	cache   *cache.Cache
	scanner *scanner.Scanner
	parser  *parser.Parser
	roots   []string
	logger  *slog.Logger

	// Worker pool configuration
	workers int

	lock IndexLock

	mu   sync.Mutex
	last *Build
}

// Config contains configuration for the indexer
type Config struct {
	Roots   []string         // Directories to scan, in order
	Workers int              // Concurrent file parsers (default: runtime.NumCPU())
	Scanner *scanner.Scanner // default: scanner.New with the default extension
	Parser  *parser.Parser   // default: parser.New with the default patterns
	Logger  *slog.Logger
}

// Statistics contains statistics about one rebuild
type Statistics struct {
	BuildID          string
	FilesScanned     int
	FilesIndexed     int
	FilesFailed      int
	ModulesIndexed   int
	SymbolsExtracted int
	Duration         time.Duration
	ErrorMessages    []string
}

// New creates a new Indexer writing into c
func New(c *cache.Cache, config Config) *Indexer {
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sc := config.Scanner
	if sc == nil {
		sc = scanner.New(scanner.Options{Logger: logger})
	}
	p := config.Parser
	if p == nil {
		p = parser.New(nil)
	}

	roots := make([]string, len(config.Roots))
	copy(roots, config.Roots)

	return &Indexer{
		cache:   c,
		scanner: sc,
		parser:  p,
		roots:   roots,
		logger:  logger,
		workers: workers,
	}
}

// Roots returns the directories scanned by every rebuild
func (idx *Indexer) Roots() []string {
	roots := make([]string, len(idx.roots))
	copy(roots, idx.roots)
	return roots
}

// IsIndexing reports whether a rebuild is running
func (idx *Indexer) IsIndexing() bool {
	return idx.lock.Held()
}

// LastBuild returns the most recently started background build, or nil
func (idx *Indexer) LastBuild() *Build {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.last
}

// Rebuild starts a full rebuild in the background and returns immediately.
// The build is detached from ctx's cancellation and runs to completion.
// If a rebuild is already running the returned Build is already finished
// with ErrIndexingInProgress.
func (idx *Indexer) Rebuild(ctx context.Context) *Build {
	if !idx.lock.TryAcquire() {
		return finishedBuild(ErrIndexingInProgress)
	}

	b := newBuild()
	idx.mu.Lock()
	idx.last = b
	idx.mu.Unlock()

	buildCtx := context.WithoutCancel(ctx)
	go func() {
		stats, err := idx.run(buildCtx, b.ID)
		// Release before signalling so a waiter can start the next build
		idx.lock.Release()
		b.finish(stats, err)
	}()

	return b
}

// RebuildSync runs a full rebuild on the caller's goroutine.
func (idx *Indexer) RebuildSync(ctx context.Context) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	return idx.run(ctx, uuid.NewString())
}

// run executes one rebuild. Nothing becomes visible to queries until the
// single commit at the end has returned.
func (idx *Indexer) run(ctx context.Context, buildID string) (*Statistics, error) {
	startTime := time.Now()
	logger := idx.logger.With("build_id", buildID)

	if err := idx.cache.BeginBuild(); err != nil {
		return nil, fmt.Errorf("failed to begin build: %w", err)
	}
	logger.Info("rebuild started", "roots", idx.roots)

	stats := &Statistics{
		BuildID:       buildID,
		ErrorMessages: make([]string, 0),
	}

	files, err := idx.scanner.Scan(ctx, idx.roots)
	if err != nil {
		idx.cache.AbortBuild()
		return nil, fmt.Errorf("failed to scan sources: %w", err)
	}
	stats.FilesScanned = len(files)

	results, err := idx.parseFiles(ctx, files, stats)
	if err != nil {
		idx.cache.AbortBuild()
		return nil, fmt.Errorf("failed to parse files: %w", err)
	}

	err = idx.cache.WithStore(ctx, func(ctx context.Context, store storage.Storage) error {
		return idx.writeResults(ctx, store, results, stats)
	})
	if err != nil {
		idx.cache.AbortBuild()
		logger.Error("rebuild failed", "error", err)
		return nil, fmt.Errorf("failed to store symbols: %w", err)
	}

	// Readiness flips only after Commit has returned
	idx.cache.MarkReady(ctx, buildID, time.Now())

	stats.Duration = time.Since(startTime)
	logger.Info("rebuild finished",
		"files", stats.FilesScanned,
		"failed", stats.FilesFailed,
		"modules", stats.ModulesIndexed,
		"symbols", stats.SymbolsExtracted,
		"duration", stats.Duration)

	return stats, nil
}

// parseFiles extracts every file on a bounded worker pool. Results keep the
// scan order so the stored row order does not depend on scheduling; a failed
// file leaves a nil slot and is counted, never aborting the build.
func (idx *Indexer) parseFiles(ctx context.Context, files []string, stats *Statistics) ([]*types.ParseResult, error) {
	results := make([]*types.ParseResult, len(files))

	// Track progress with atomic counters
	var (
		indexed int32
		failed  int32
	)
	var mu sync.Mutex // Protect stats.ErrorMessages

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i, filePath := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, err := idx.parser.ParseFile(filePath)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				idx.logger.Warn("skipping file", "path", filePath, "error", err)
				mu.Lock()
				if len(stats.ErrorMessages) < maxErrorMessages {
					stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", filePath, err))
				}
				mu.Unlock()
				// Continue with other files
				return nil
			}

			results[i] = result
			atomic.AddInt32(&indexed, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesFailed = int(failed)
	return results, nil
}

// writeResults replaces the symbol table inside one transaction.
func (idx *Indexer) writeResults(ctx context.Context, store storage.Storage, results []*types.ParseResult, stats *Statistics) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.ClearSymbols(ctx); err != nil {
		return err
	}

	modules := make(map[string]struct{})
	symbols := 0
	for _, result := range results {
		if result == nil {
			continue
		}
		for i := range result.Symbols {
			if err := tx.UpsertSymbol(ctx, &result.Symbols[i]); err != nil {
				return err
			}
			symbols++
		}
		if result.HasSymbols() {
			modules[result.Module] = struct{}{}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	stats.SymbolsExtracted = symbols
	stats.ModulesIndexed = len(modules)
	return nil
}
