// Package sqlite opens the SQLite database backing the persistent assembly cache.
//
// Build modes:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Driver describes the SQLite driver compiled into the binary.
type Driver struct {
	Name    string // database/sql driver name
	Package string // import path of the implementation
	CGO     bool
}

// Active returns the driver selected by the build mode.
func Active() Driver {
	return Driver{Name: driverName, Package: driverPackage, CGO: driverCGO}
}

// Migration is one schema step. Steps are applied in order and each runs
// at most once per database.
type Migration string

// Open opens path as a cache database and applies migrations. Writes go
// through a single connection and wait on a busy lock instead of failing.
func Open(ctx context.Context, path string, migrations ...Migration) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: empty cache path")
	}
	db, err := sql.Open(driverName, path+busyTimeoutParam)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db, migrations...); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %s: %w", path, err)
	}
	return db, nil
}

// Migrate applies the migrations the database has not seen yet, tracking
// progress in PRAGMA user_version.
func Migrate(ctx context.Context, db *sql.DB, migrations ...Migration) error {
	var applied int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&applied); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if applied > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", applied, len(migrations))
	}

	for i := applied; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(migrations[i])); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
