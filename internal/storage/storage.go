package storage

import (
	"context"

	"github.com/lintingbin2009/Erl-AutoCompletion/pkg/types"
)

// Storage defines the interface for persisting and querying the symbol table
type Storage interface {
	// Symbol operations
	UpsertSymbol(ctx context.Context, symbol *types.Symbol) error
	ClearSymbols(ctx context.Context) error

	// Query operations
	QueryByModule(ctx context.Context, module string) ([]types.CompletionItem, error)
	QueryModules(ctx context.Context) ([]types.ModuleItem, error)
	QueryPosition(ctx context.Context, module, function string) ([]types.PositionItem, error)

	// Metadata operations
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Metadata keys
const (
	MetaIndexVersion = "index_version"
	MetaLastBuildAt  = "last_build_at"
	MetaBuildID      = "build_id"
)

// Status contains statistics about the stored symbol table
type Status struct {
	SymbolsCount  int
	ModulesCount  int
	FilesCount    int
	SchemaVersion string
}
