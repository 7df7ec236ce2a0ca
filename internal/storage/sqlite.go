package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lintingbin2009/Erl-AutoCompletion/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrSchemaMismatch is returned when an existing database has an incompatible layout
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrNestedTx is returned when BeginTx is called on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

const (
	busyTimeoutMs = "5000"

	// maxOpenConns leaves room for readers next to the single build transaction
	maxOpenConns = 4

	memoryPath = ":memory:"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	source := dsn(dbPath)
	if dbPath == memoryPath {
		source = memoryPath
	}

	db, err := sql.Open(DriverName, source)
	if err != nil {
		return nil, err
	}

	if dbPath == memoryPath {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(0)

	// Touch the file so a corrupt database fails here rather than on first query
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath,
// creates the schema if absent and verifies its layout.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()

	// Apply migrations
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	if err := VerifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Path returns the database file path
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Symbol operations

// upsertSymbolWithQuerier is the internal implementation that uses a querier.
// Rebuilds clear the table first, so a plain insert keeps one row per export.
func (s *SQLiteStorage) upsertSymbolWithQuerier(ctx context.Context, q querier, symbol *types.Symbol) error {
	if err := symbol.Validate(); err != nil {
		return fmt.Errorf("invalid symbol %s:%s: %w", symbol.Module, symbol.Key(), err)
	}

	query := `
		INSERT INTO libs (mod_name, fun_name, param_len, file_path, row_num, completion)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		symbol.Module, symbol.Function, int(symbol.Arity),
		symbol.FilePath, symbol.Line, symbol.Completion)
	if err != nil {
		return fmt.Errorf("failed to upsert symbol: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertSymbol(ctx context.Context, symbol *types.Symbol) error {
	return s.upsertSymbolWithQuerier(ctx, s.querier(), symbol)
}

// clearSymbolsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) clearSymbolsWithQuerier(ctx context.Context, q querier) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM libs`); err != nil {
		return fmt.Errorf("failed to clear symbols: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ClearSymbols(ctx context.Context) error {
	return s.clearSymbolsWithQuerier(ctx, s.querier())
}

// Query operations

// queryByModuleWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) queryByModuleWithQuerier(ctx context.Context, q querier, module string) ([]types.CompletionItem, error) {
	query := `
		SELECT fun_name, param_len, completion
		FROM libs
		WHERE mod_name = ?
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, module)
	if err != nil {
		return nil, fmt.Errorf("failed to query module %q: %w", module, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]types.CompletionItem, 0)
	for rows.Next() {
		var (
			funName    string
			arity      int
			completion string
		)
		if err := rows.Scan(&funName, &arity, &completion); err != nil {
			return nil, err
		}
		items = append(items, types.NewCompletionItem(funName, types.ClampArity(arity), completion))
	}
	return items, rows.Err()
}

func (s *SQLiteStorage) QueryByModule(ctx context.Context, module string) ([]types.CompletionItem, error) {
	return s.queryByModuleWithQuerier(ctx, s.querier(), module)
}

// queryModulesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) queryModulesWithQuerier(ctx context.Context, q querier) ([]types.ModuleItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT mod_name FROM libs ORDER BY mod_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]types.ModuleItem, 0)
	for rows.Next() {
		var module string
		if err := rows.Scan(&module); err != nil {
			return nil, err
		}
		items = append(items, types.NewModuleItem(module))
	}
	return items, rows.Err()
}

func (s *SQLiteStorage) QueryModules(ctx context.Context) ([]types.ModuleItem, error) {
	return s.queryModulesWithQuerier(ctx, s.querier())
}

// queryPositionWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) queryPositionWithQuerier(ctx context.Context, q querier, module, function string) ([]types.PositionItem, error) {
	query := `
		SELECT fun_name, param_len, file_path, row_num
		FROM libs
		WHERE mod_name = ? AND fun_name = ?
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, module, function)
	if err != nil {
		return nil, fmt.Errorf("failed to query position of %s:%s: %w", module, function, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]types.PositionItem, 0)
	for rows.Next() {
		var (
			funName  string
			arity    int
			filePath string
			line     int
		)
		if err := rows.Scan(&funName, &arity, &filePath, &line); err != nil {
			return nil, err
		}
		items = append(items, types.NewPositionItem(funName, types.ClampArity(arity), filePath, line))
	}
	return items, rows.Err()
}

func (s *SQLiteStorage) QueryPosition(ctx context.Context, module, function string) ([]types.PositionItem, error) {
	return s.queryPositionWithQuerier(ctx, s.querier(), module, function)
}

// Metadata operations

// getMetaWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getMetaWithQuerier(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM cache_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	return s.getMetaWithQuerier(ctx, s.querier(), key)
}

// setMetaWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) setMetaWithQuerier(ctx context.Context, q querier, key, value string) error {
	query := `
		INSERT INTO cache_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := q.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set meta %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	return s.setMetaWithQuerier(ctx, s.querier(), key, value)
}

// Status operations

// getStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{}

	query := `
		SELECT COUNT(*), COUNT(DISTINCT mod_name), COUNT(DISTINCT file_path)
		FROM libs
	`
	if err := q.QueryRowContext(ctx, query).Scan(
		&status.SymbolsCount, &status.ModulesCount, &status.FilesCount,
	); err != nil {
		return nil, fmt.Errorf("failed to count symbols: %w", err)
	}

	version, err := currentSchemaVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Transaction implementations

func (t *sqliteTx) UpsertSymbol(ctx context.Context, symbol *types.Symbol) error {
	return t.storage.upsertSymbolWithQuerier(ctx, t.querier(), symbol)
}

func (t *sqliteTx) ClearSymbols(ctx context.Context) error {
	return t.storage.clearSymbolsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) QueryByModule(ctx context.Context, module string) ([]types.CompletionItem, error) {
	return t.storage.queryByModuleWithQuerier(ctx, t.querier(), module)
}

func (t *sqliteTx) QueryModules(ctx context.Context) ([]types.ModuleItem, error) {
	return t.storage.queryModulesWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) QueryPosition(ctx context.Context, module, function string) ([]types.PositionItem, error) {
	return t.storage.queryPositionWithQuerier(ctx, t.querier(), module, function)
}

func (t *sqliteTx) GetMeta(ctx context.Context, key string) (string, error) {
	return t.storage.getMetaWithQuerier(ctx, t.querier(), key)
}

func (t *sqliteTx) SetMeta(ctx context.Context, key, value string) error {
	return t.storage.setMetaWithQuerier(ctx, t.querier(), key, value)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}
