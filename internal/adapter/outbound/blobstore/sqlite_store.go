package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blobs (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// SQLiteStore keeps blobs in a single sqlite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, storeError(opOpen, "", errors.New("sqlite path is empty"))
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, storeError(opOpen, path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, storeError(opOpen, path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get reads the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(key)
	}
	if err != nil {
		return "", storeError(opGet, key, err)
	}
	return value, nil
}

// Put upserts value under key.
func (s *SQLiteStore) Put(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return storeError(opPut, key, err)
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value=excluded.value,
		updated_at=excluded.updated_at
	`, key, value, time.Now().UTC())
	return storeError(opPut, key, err)
}

// Delete removes key. A missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
	return storeError(opDelete, key, err)
}

// Keys returns every key starting with prefix, sorted bytewise.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM blobs WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`, prefix)
	if err != nil {
		return nil, storeError(opKeys, prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, storeError(opKeys, prefix, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(opKeys, prefix, err)
	}
	return keys, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
