//go:build sqlite_cgo
// +build sqlite_cgo

package storage

// This file is compiled with the sqlite_cgo tag. It links the C SQLite
// library through cgo, which is faster for large trees.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_cgo" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

// dsn adds per-connection pragmas in the mattn/go-sqlite3 syntax
func dsn(dbPath string) string {
	return dbPath + "?_busy_timeout=" + busyTimeoutMs + "&_journal_mode=WAL&_synchronous=NORMAL"
}
