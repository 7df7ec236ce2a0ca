package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/indexer"
	"github.com/lintingbin2009/Erl-AutoCompletion/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
)

const defaultWaitTimeout = 300 * time.Second

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wait := request.GetBool("wait", false)
	timeout := time.Duration(request.GetFloat("timeout_seconds", defaultWaitTimeout.Seconds()) * float64(time.Second))
	if timeout <= 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "timeout_seconds must be positive", map[string]interface{}{
			"param": "timeout_seconds",
		})
	}

	build := s.indexer.Rebuild(ctx)
	if errors.Is(build.Err(), indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}

	if !wait {
		response := map[string]interface{}{
			"started":  true,
			"build_id": build.ID,
			"roots":    s.indexer.Roots(),
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stats, err := build.Wait(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		response := map[string]interface{}{
			"started":  true,
			"finished": false,
			"build_id": build.ID,
			"message":  "rebuild still running, poll get_status",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "rebuild failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"started":           true,
		"finished":          true,
		"build_id":          stats.BuildID,
		"files_scanned":     stats.FilesScanned,
		"files_indexed":     stats.FilesIndexed,
		"files_failed":      stats.FilesFailed,
		"modules_indexed":   stats.ModulesIndexed,
		"symbols_extracted": stats.SymbolsExtracted,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCompleteModule handles the complete_module tool invocation
func (s *Server) handleCompleteModule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	module, err := requireNonEmpty(request, "module")
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"module": module,
		"ready":  s.cache.Ready(),
		"items":  s.cache.QueryByModule(ctx, module),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListModules handles the list_modules tool invocation
func (s *Server) handleListModules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix := request.GetString("prefix", "")

	modules := s.cache.QueryModules(ctx)
	if prefix != "" {
		filtered := make([]types.ModuleItem, 0, len(modules))
		for _, m := range modules {
			if strings.HasPrefix(m.Value, prefix) {
				filtered = append(filtered, m)
			}
		}
		modules = filtered
	}

	response := map[string]interface{}{
		"ready": s.cache.Ready(),
		"items": modules,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindFunction handles the find_function tool invocation
func (s *Server) handleFindFunction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	module, err := requireNonEmpty(request, "module")
	if err != nil {
		return nil, err
	}
	function, err := requireNonEmpty(request, "function")
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"module":   module,
		"function": function,
		"ready":    s.cache.Ready(),
		"items":    s.cache.QueryPosition(ctx, module, function),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.cache.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cacheInfo := map[string]interface{}{
		"state":          status.State,
		"ready":          status.Ready,
		"path":           status.Path,
		"version":        status.Version,
		"schema_version": status.SchemaVersion,
		"size_bytes":     status.SizeBytes,
	}
	if !status.LastBuildAt.IsZero() {
		cacheInfo["last_build_at"] = status.LastBuildAt.Format(time.RFC3339)
		cacheInfo["last_build_id"] = status.LastBuildID
	}

	response := map[string]interface{}{
		"cache": cacheInfo,
		"statistics": map[string]interface{}{
			"symbols_count": status.SymbolsCount,
			"modules_count": status.ModulesCount,
			"files_count":   status.FilesCount,
		},
		"indexing": s.indexer.IsIndexing(),
		"roots":    s.indexer.Roots(),
	}

	if last := s.indexer.LastBuild(); last != nil {
		build := map[string]interface{}{
			"id":         last.ID,
			"started_at": last.StartedAt.Format(time.RFC3339),
			"finished":   last.Finished(),
		}
		if err := last.Err(); err != nil {
			build["error"] = err.Error()
		}
		response["last_build"] = build
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// requireNonEmpty extracts a required, non-empty string parameter
func requireNonEmpty(request mcp.CallToolRequest, key string) (string, error) {
	value, err := request.RequireString(key)
	if err != nil || strings.TrimSpace(value) == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return value, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}
