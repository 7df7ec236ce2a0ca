// Package storage provides SQLite-based persistence for the exported
// function symbol table.
//
// # Database Schema
//
// Tables:
//   - libs: one row per exported (module, function, arity) with the file path,
//     1-based line number and snippet completion template
//   - cache_meta: key/value bookkeeping (index version, last build time)
//   - schema_version: applied migrations
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(filepath.Join(dir, "erlang_completion"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	items, err := db.QueryByModule(ctx, "lists")
//
// # Transactions
//
// A full rebuild replaces the table inside a single transaction, so readers on
// other connections keep seeing the previous committed contents until Commit:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.ClearSymbols(ctx); err != nil {
//	    return err
//	}
//	for i := range symbols {
//	    if err := tx.UpsertSymbol(ctx, &symbols[i]); err != nil {
//	        return err
//	    }
//	}
//	return tx.Commit()
//
// # Build Tags
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build ./...
//
// CGO build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo" ./...
//
// Both configurations open the database in WAL mode with a busy timeout.
package storage
