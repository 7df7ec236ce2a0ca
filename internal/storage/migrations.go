package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV1_1Up,
		Down:    migrationV1_1Down,
	},
}

// libsColumns is the column layout queries depend on.
var libsColumns = []string{"id", "mod_name", "fun_name", "param_len", "file_path", "row_num", "completion"}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Exported function symbols, one row per (module, function, arity) export
CREATE TABLE IF NOT EXISTS libs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mod_name TEXT NOT NULL,
    fun_name TEXT NOT NULL,
    param_len INTEGER NOT NULL,
    file_path TEXT NOT NULL,
    row_num INTEGER NOT NULL,
    completion TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_libs_mod_name ON libs(mod_name);
CREATE INDEX IF NOT EXISTS idx_libs_mod_fun ON libs(mod_name, fun_name);
`

const migrationV1Down = `
DROP INDEX IF EXISTS idx_libs_mod_fun;
DROP INDEX IF EXISTS idx_libs_mod_name;
DROP TABLE IF EXISTS libs;
DROP TABLE IF EXISTS schema_version;
`

const migrationV1_1Up = `
-- Cache bookkeeping (index version, last build)
CREATE TABLE IF NOT EXISTS cache_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const migrationV1_1Down = `
DROP TABLE IF EXISTS cache_meta;
`

// currentSchemaVersion returns the most recently applied migration version,
// or "0.0.0" when none has been applied.
func currentSchemaVersion(ctx context.Context, q querier) (string, error) {
	var tableName string
	err := q.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return "0.0.0", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check schema_version table: %w", err)
	}

	var version string
	err = q.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC, rowid DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows || version == "" {
		return "0.0.0", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read schema_version: %w", err)
	}
	return version, nil
}

// ApplyMigrations runs all pending migrations. It is safe to call on every
// open: an up-to-date database is left untouched.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersionStr, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	currentVersion, err := semver.NewVersion(currentVersionStr)
	if err != nil {
		return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
	}

	// A database written by a newer build is not ours to downgrade
	latest := semver.MustParse(CurrentSchemaVersion)
	if currentVersion.GreaterThan(latest) {
		return fmt.Errorf("%w: database schema %s is newer than %s", ErrSchemaMismatch, currentVersion, latest)
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		_, err = db.ExecContext(ctx, migration.Up)
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// VerifySchema checks that the libs table carries every column the queries use.
func VerifySchema(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info(libs)")
	if err != nil {
		return fmt.Errorf("failed to inspect libs table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	present := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("failed to read libs columns: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read libs columns: %w", err)
	}

	for _, col := range libsColumns {
		if !present[col] {
			return fmt.Errorf("%w: libs table missing column %q", ErrSchemaMismatch, col)
		}
	}
	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	currentVersion, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if currentVersion == "0.0.0" {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range AllMigrations {
		if AllMigrations[i].Version == currentVersion {
			migration = &AllMigrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %s not found", currentVersion)
	}

	// Remove the record first; the 1.0.0 rollback drops schema_version itself
	_, err = db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", currentVersion)
	if err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", currentVersion, err)
	}

	_, err = db.ExecContext(ctx, migration.Down)
	if err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", currentVersion, err)
	}

	return nil
}
