package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/cache"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/indexer"
)

const (
	// ServerName is the MCP server name
	ServerName = "erlcomplete"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	cache   *cache.Cache
	indexer *indexer.Indexer
	logger  *slog.Logger
}

// NewServer creates a new MCP server instance over an open cache and the
// indexer that fills it
func NewServer(c *cache.Cache, idx *indexer.Indexer, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:     mcpServer,
		cache:   c,
		indexer: idx,
		logger:  logger,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		return nil, err
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
// The caller owns the cache and closes it afterwards.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
	s.mcp.AddTool(completeModuleTool(), s.handleCompleteModule)
	s.mcp.AddTool(listModulesTool(), s.handleListModules)
	s.mcp.AddTool(findFunctionTool(), s.handleFindFunction)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
