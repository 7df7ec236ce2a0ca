package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/cache"
	"github.com/lintingbin2009/Erl-AutoCompletion/pkg/types"
)

func setupTestCache(t testing.TB) *cache.Cache {
	t.Helper()
	c, err := cache.Open(context.Background(), cache.Options{
		Dir: filepath.Join(t.TempDir(), "cache"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func waitBuild(t *testing.T, b *Build) *Statistics {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	stats, err := b.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)
	return stats
}

func TestNew(t *testing.T) {
	c := setupTestCache(t)
	roots := []string{"/a", "/b"}
	idx := New(c, Config{Roots: roots})

	assert.Equal(t, runtime.NumCPU(), idx.workers)
	assert.NotNil(t, idx.scanner)
	assert.NotNil(t, idx.parser)
	assert.NotNil(t, idx.logger)
	assert.Equal(t, roots, idx.Roots())

	// Roots are copied
	roots[0] = "/changed"
	assert.Equal(t, "/a", idx.Roots()[0])
	assert.False(t, idx.IsIndexing())
	assert.Nil(t, idx.LastBuild())
}

func TestRebuildSync_Scenario(t *testing.T) {
	src := t.TempDir()
	mathPath := createTestFile(t, src, "math.erl", "-export([add/2]).\nadd(X, Y) -> X + Y.\n")

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}})
	ctx := context.Background()

	stats, err := idx.RebuildSync(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, stats.BuildID)
	assert.Equal(t, 1, stats.FilesScanned)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 1, stats.ModulesIndexed)
	assert.Equal(t, 1, stats.SymbolsExtracted)

	assert.True(t, c.Ready())
	assert.Equal(t, cache.StateReady, c.State())
	assert.Equal(t, []types.CompletionItem{
		{Label: "add/2\tMethod", Completion: "add(${1:X}, ${2:Y})$3"},
	}, c.QueryByModule(ctx, "math"))
	assert.Equal(t, []types.ModuleItem{
		{Label: "math\tModule", Value: "math"},
	}, c.QueryModules(ctx))
	assert.Equal(t, []types.PositionItem{
		{Label: "add/2", FilePath: mathPath, Line: 2},
	}, c.QueryPosition(ctx, "math", "add"))
}

func TestRebuild_Async(t *testing.T) {
	src := t.TempDir()
	createTestFile(t, src, "calc.erl", strings.Join([]string{
		"-module(calc).",
		"-export([add/2, sub/2, neg/1]).",
		"",
		"add(A, B) -> A + B.",
		"sub(A, B) -> A - B.",
		"neg(A) -> -A.",
		"helper() -> ok.",
	}, "\n"))
	createTestFile(t, src, "lib/strs.erl", "-export([len/1]).\nlen(S) -> length(S).\n")

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}, Workers: 2})
	ctx := context.Background()

	// Not ready before any build
	assert.Empty(t, c.QueryModules(ctx))

	b := idx.Rebuild(ctx)
	require.NotNil(t, b)
	assert.NotEmpty(t, b.ID)
	assert.Same(t, b, idx.LastBuild())

	stats := waitBuild(t, b)
	assert.True(t, b.Finished())
	assert.NoError(t, b.Err())
	assert.Equal(t, b.ID, stats.BuildID)
	assert.Equal(t, 2, stats.FilesScanned)
	assert.Equal(t, 2, stats.ModulesIndexed)
	assert.Equal(t, 4, stats.SymbolsExtracted)
	assert.False(t, idx.IsIndexing())

	labels := make([]string, 0)
	for _, item := range c.QueryByModule(ctx, "calc") {
		labels = append(labels, item.Label)
	}
	assert.Equal(t, []string{"add/2\tMethod", "sub/2\tMethod", "neg/1\tMethod"}, labels)
	assert.Len(t, c.QueryModules(ctx), 2)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, st.LastBuildID)
}

func TestRebuild_InProgress(t *testing.T) {
	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{t.TempDir()}})
	ctx := context.Background()

	// Simulate a running build
	require.True(t, idx.lock.TryAcquire())
	assert.True(t, idx.IsIndexing())

	b := idx.Rebuild(ctx)
	assert.True(t, b.Finished())
	_, err := b.Wait(ctx)
	assert.ErrorIs(t, err, ErrIndexingInProgress)
	assert.ErrorIs(t, b.Err(), ErrIndexingInProgress)
	assert.Nil(t, idx.LastBuild())

	_, err = idx.RebuildSync(ctx)
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	idx.lock.Release()
	_, err = idx.RebuildSync(ctx)
	assert.NoError(t, err)
}

func TestRebuild_BackToBack(t *testing.T) {
	src := t.TempDir()
	createTestFile(t, src, "a.erl", "-export([f/0]).\nf() -> ok.\n")

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}})
	ctx := context.Background()

	waitBuild(t, idx.Rebuild(ctx))
	// The lock is released before Done is closed
	second := idx.Rebuild(ctx)
	waitBuild(t, second)
}

func TestRebuild_DetachedFromCaller(t *testing.T) {
	src := t.TempDir()
	createTestFile(t, src, "a.erl", "-export([f/0]).\nf() -> ok.\n")

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}})

	ctx, cancel := context.WithCancel(context.Background())
	b := idx.Rebuild(ctx)
	cancel()

	waitBuild(t, b)
	assert.True(t, c.Ready())
}

func TestBuild_WaitTimeout(t *testing.T) {
	b := newBuild()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, b.Finished())
	assert.NoError(t, b.Err())

	b.finish(&Statistics{BuildID: b.ID}, nil)
	stats, err := b.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, b.ID, stats.BuildID)
}

func TestRebuild_Idempotent(t *testing.T) {
	src := t.TempDir()
	for i := 0; i < 20; i++ {
		createTestFile(t, src, fmt.Sprintf("pkg%d/mod%d.erl", i%3, i), fmt.Sprintf(
			"-export([f%d/1, g/2]).\nf%d(X) -> X.\ng(A, {B, C}) -> A.\n", i, i))
	}

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}, Workers: 4})
	ctx := context.Background()

	snapshot := func() (string, string) {
		var byModule, positions strings.Builder
		for _, m := range c.QueryModules(ctx) {
			fmt.Fprintf(&byModule, "%s|%s\n", m.Label, m.Value)
			for _, item := range c.QueryByModule(ctx, m.Value) {
				fmt.Fprintf(&byModule, "%s|%s\n", item.Label, item.Completion)
			}
			for _, p := range c.QueryPosition(ctx, m.Value, "g") {
				fmt.Fprintf(&positions, "%s|%s|%d\n", p.Label, p.FilePath, p.Line)
			}
		}
		return byModule.String(), positions.String()
	}

	_, err := idx.RebuildSync(ctx)
	require.NoError(t, err)
	firstModules, firstPositions := snapshot()

	_, err = idx.RebuildSync(ctx)
	require.NoError(t, err)
	secondModules, secondPositions := snapshot()

	assert.NotEmpty(t, firstModules)
	assert.Equal(t, firstModules, secondModules)
	assert.Equal(t, firstPositions, secondPositions)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, st.SymbolsCount)
}

func TestRebuild_RemovedFileDisappears(t *testing.T) {
	src := t.TempDir()
	createTestFile(t, src, "keep.erl", "-export([f/0]).\nf() -> ok.\n")
	gone := createTestFile(t, src, "gone.erl", "-export([f/0]).\nf() -> ok.\n")

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}})
	ctx := context.Background()

	_, err := idx.RebuildSync(ctx)
	require.NoError(t, err)
	assert.Len(t, c.QueryModules(ctx), 2)

	require.NoError(t, os.Remove(gone))
	_, err = idx.RebuildSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.ModuleItem{types.NewModuleItem("keep")}, c.QueryModules(ctx))
}

func TestParseFiles_FailedFileCounted(t *testing.T) {
	src := t.TempDir()
	good := createTestFile(t, src, "good.erl", "-export([f/0]).\nf() -> ok.\n")
	missing := filepath.Join(src, "missing.erl")

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}})

	stats := &Statistics{}
	results, err := idx.parseFiles(context.Background(), []string{missing, good}, stats)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Nil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, "good", results[1].Module)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFailed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "missing.erl")
}

func TestRebuild_UnreadableFileSkipped(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	src := t.TempDir()
	createTestFile(t, src, "ok.erl", "-export([f/0]).\nf() -> ok.\n")
	locked := createTestFile(t, src, "locked.erl", "-export([g/0]).\ng() -> ok.\n")
	require.NoError(t, os.Chmod(locked, 0o000))

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}})

	stats, err := idx.RebuildSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesScanned)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, []types.ModuleItem{types.NewModuleItem("ok")}, c.QueryModules(context.Background()))
}

func TestRebuildSync_Cancelled(t *testing.T) {
	src := t.TempDir()
	createTestFile(t, src, "a.erl", "-export([f/0]).\nf() -> ok.\n")

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.RebuildSync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, cache.StateReadyEmpty, c.State())
	assert.False(t, c.Ready())
	assert.False(t, idx.IsIndexing())
}

func TestRebuild_FailureKeepsPreviousBuild(t *testing.T) {
	src := t.TempDir()
	createTestFile(t, src, "a.erl", "-export([f/0]).\nf() -> ok.\n")

	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{src}})

	_, err := idx.RebuildSync(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.RebuildSync(ctx)
	require.Error(t, err)

	assert.Equal(t, cache.StateReady, c.State())
	assert.Len(t, c.QueryModules(context.Background()), 1)
}

func TestRebuild_ClosedCache(t *testing.T) {
	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{t.TempDir()}})
	require.NoError(t, c.Close())

	_, err := idx.RebuildSync(context.Background())
	assert.ErrorIs(t, err, cache.ErrNotOpen)
}

func TestRebuild_EmptyTree(t *testing.T) {
	c := setupTestCache(t)
	idx := New(c, Config{Roots: []string{t.TempDir()}})

	stats, err := idx.RebuildSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesScanned)
	assert.Equal(t, 0, stats.SymbolsExtracted)

	// An empty committed build is still a ready cache
	assert.True(t, c.Ready())
	assert.Empty(t, c.QueryModules(context.Background()))
}

func TestIndexLock(t *testing.T) {
	var l IndexLock
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
	assert.True(t, l.Held())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
}

func BenchmarkRebuildSync(b *testing.B) {
	src := b.TempDir()
	for i := 0; i < 200; i++ {
		var body strings.Builder
		body.WriteString("-module(m" + fmt.Sprint(i) + ").\n-export([")
		for j := 0; j < 20; j++ {
			if j > 0 {
				body.WriteString(", ")
			}
			fmt.Fprintf(&body, "f%d/2", j)
		}
		body.WriteString("]).\n")
		for j := 0; j < 20; j++ {
			fmt.Fprintf(&body, "%% f%d\nf%d(A, #{k := V}) ->\n    {A, V}.\n", j, j)
		}
		createTestFile(b, src, fmt.Sprintf("m%d.erl", i), body.String())
	}

	c := setupTestCache(b)
	idx := New(c, Config{Roots: []string{src}})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.RebuildSync(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
