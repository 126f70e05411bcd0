package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/therealmarv/cnx-epub/core/sqlite"
)

// schema holds the cache database migrations, oldest first.
var schema = []sqlite.Migration{
	`CREATE TABLE cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
}

// SQLStore is a Store persisted in a SQLite database, so repeated builds of
// the same book skip the network entirely.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens or creates the cache database at path.
func OpenSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sqlite.Open(ctx, path, schema...)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

// Get returns the value stored under key.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *SQLStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
