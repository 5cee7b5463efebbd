package blobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trusted-programming/tree-grepper/internal/config"
)

const (
	defaultPostgresMaxConns = 10
	postgresPingTimeout     = 5 * time.Second
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS blobs (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps blobs in a postgres table through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresConnection creates a pool from cfg and checks it with a ping.
func NewPostgresConnection(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	return NewPostgresConnectionFromDSN(ctx, cfg.DSN(), cfg.MaxConnections)
}

// NewPostgresConnectionFromDSN creates a pool from a connection string.
func NewPostgresConnectionFromDSN(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns) //nolint:gosec // bounded by config validation
	} else {
		poolConfig.MaxConns = defaultPostgresMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresStore connects with cfg and creates the blobs table if needed.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	pool, err := NewPostgresConnection(ctx, cfg)
	if err != nil {
		return nil, storeError(opOpen, cfg.Name, err)
	}
	return NewPostgresStoreFromPool(ctx, pool)
}

// NewPostgresStoreFromPool uses an existing pool. The store owns the pool afterwards.
func NewPostgresStoreFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, storeError(opOpen, "blobs", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Get reads the value stored under key.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM blobs WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", notFound(key)
	}
	if err != nil {
		return "", storeError(opGet, key, err)
	}
	return value, nil
}

// Put upserts value under key.
func (s *PostgresStore) Put(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return storeError(opPut, key, err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO blobs (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value)
	return storeError(opPut, key, err)
}

// Delete removes key. A missing key is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM blobs WHERE key = $1`, key)
	return storeError(opDelete, key, err)
}

// Keys returns every key starting with prefix, sorted bytewise.
func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM blobs WHERE left(key, length($1::text)) = $1::text ORDER BY key COLLATE "C"`, prefix)
	if err != nil {
		return nil, storeError(opKeys, prefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeError(opKeys, prefix, err)
	}
	return keys, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}
