package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/cache"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/indexer"
)

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	src := t.TempDir()

	c, err := cache.Open(context.Background(), cache.Options{Dir: filepath.Join(t.TempDir(), "cache")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	idx := indexer.New(c, indexer.Config{Roots: []string{src}})
	s, err := NewServer(c, idx, nil)
	require.NoError(t, err)
	return s, src
}

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) map[string]any {
	t.Helper()
	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	content, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(content.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer(t *testing.T) {
	s, _ := setupTestServer(t)

	assert.NotNil(t, s.mcp)
	assert.NotNil(t, s.cache)
	assert.NotNil(t, s.indexer)
	assert.NotNil(t, s.logger)
}

func TestRebuildAndQuery(t *testing.T) {
	s, src := setupTestServer(t)
	mathPath := createTestFile(t, src, "math.erl", "-export([add/2]).\nadd(X, Y) -> X + Y.\n")

	// Before any build every query is empty
	out := callTool(t, s.handleCompleteModule, map[string]any{"module": "math"})
	assert.Equal(t, false, out["ready"])
	assert.Empty(t, out["items"])

	out = callTool(t, s.handleRebuildIndex, map[string]any{"wait": true})
	assert.Equal(t, true, out["finished"])
	assert.Equal(t, float64(1), out["symbols_extracted"])
	assert.NotEmpty(t, out["build_id"])

	out = callTool(t, s.handleCompleteModule, map[string]any{"module": "math"})
	assert.Equal(t, true, out["ready"])
	assert.Equal(t, []any{
		map[string]any{"label": "add/2\tMethod", "completion": "add(${1:X}, ${2:Y})$3"},
	}, out["items"])

	out = callTool(t, s.handleListModules, map[string]any{})
	assert.Equal(t, []any{
		map[string]any{"label": "math\tModule", "value": "math"},
	}, out["items"])

	out = callTool(t, s.handleFindFunction, map[string]any{"module": "math", "function": "add"})
	assert.Equal(t, []any{
		map[string]any{"label": "add/2", "file_path": mathPath, "line": float64(2)},
	}, out["items"])
}

func TestRebuildIndex_Background(t *testing.T) {
	s, src := setupTestServer(t)
	createTestFile(t, src, "a.erl", "-export([f/0]).\nf() -> ok.\n")

	out := callTool(t, s.handleRebuildIndex, map[string]any{})
	assert.Equal(t, true, out["started"])
	assert.NotEmpty(t, out["build_id"])

	last := s.indexer.LastBuild()
	require.NotNil(t, last)
	assert.Equal(t, out["build_id"], last.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := last.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, s.cache.Ready())
}

func TestRebuildIndex_InvalidTimeout(t *testing.T) {
	s, _ := setupTestServer(t)

	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: map[string]any{
		"wait":            true,
		"timeout_seconds": float64(-1),
	}}}
	_, err := s.handleRebuildIndex(context.Background(), req)
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestListModules_Prefix(t *testing.T) {
	s, src := setupTestServer(t)
	createTestFile(t, src, "gen_server_ext.erl", "-export([f/0]).\nf() -> ok.\n")
	createTestFile(t, src, "gen_event_ext.erl", "-export([f/0]).\nf() -> ok.\n")
	createTestFile(t, src, "lists_ext.erl", "-export([f/0]).\nf() -> ok.\n")

	callTool(t, s.handleRebuildIndex, map[string]any{"wait": true})

	out := callTool(t, s.handleListModules, map[string]any{"prefix": "gen_"})
	items, ok := out["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)

	out = callTool(t, s.handleListModules, map[string]any{})
	items, ok = out["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 3)
}

func TestMissingParams(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
	}{
		{"complete_module without module", s.handleCompleteModule, map[string]any{}},
		{"complete_module with blank module", s.handleCompleteModule, map[string]any{"module": "  "}},
		{"find_function without function", s.handleFindFunction, map[string]any{"module": "m"}},
		{"find_function without module", s.handleFindFunction, map[string]any{"function": "f"}},
		{"nil arguments", s.handleFindFunction, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: tt.args}}
			_, err := tt.handler(context.Background(), req)
			requireMCPError(t, err, ErrorCodeInvalidParams)
		})
	}
}

func TestGetStatus(t *testing.T) {
	s, src := setupTestServer(t)
	createTestFile(t, src, "a.erl", "-export([f/0, g/1]).\nf() -> ok.\ng(X) -> X.\n")

	out := callTool(t, s.handleGetStatus, map[string]any{})
	cacheInfo, ok := out["cache"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ready_empty", cacheInfo["state"])
	assert.Equal(t, false, cacheInfo["ready"])
	assert.Equal(t, false, out["indexing"])
	assert.Nil(t, out["last_build"])

	callTool(t, s.handleRebuildIndex, map[string]any{"wait": true})

	out = callTool(t, s.handleGetStatus, map[string]any{})
	cacheInfo, ok = out["cache"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ready", cacheInfo["state"])
	assert.Equal(t, true, cacheInfo["ready"])
	assert.NotEmpty(t, cacheInfo["last_build_at"])

	stats, ok := out["statistics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), stats["symbols_count"])
	assert.Equal(t, float64(1), stats["modules_count"])

	lastBuild, ok := out["last_build"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, lastBuild["finished"])
}

func TestMCPError(t *testing.T) {
	err := newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	assert.Equal(t, "MCP error -32002: indexing already in progress", err.Error())
}

func TestFormatJSON(t *testing.T) {
	out := formatJSON(map[string]interface{}{"a": 1})
	assert.JSONEq(t, `{"a": 1}`, out)
}
