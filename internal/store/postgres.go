package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// undefinedTable is the SQLSTATE PostgreSQL reports for a missing relation.
const undefinedTable = "42P01"

// wrapPQ maps driver errors onto store sentinels.
func wrapPQ(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("store: %s: %w", op, ErrSchemaMissing)
	}
	return fmt.Errorf("store: %s failed: %w", op, err)
}

// PostgresStore implements ClientStorer on a single PostgreSQL table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ ClientStorer = (*PostgresStore)(nil)

// EnsureSchema creates the storage table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS storefront;
		CREATE TABLE IF NOT EXISTS storefront.client_storage (
			client_id  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (client_id, key)
		);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("store: EnsureSchema failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetValue(ctx context.Context, clientID, key string) (string, error) {
	query := `
		SELECT value FROM storefront.client_storage
		WHERE client_id = $1 AND key = $2;
	`
	var value string
	err := s.db.QueryRowContext(ctx, query, clientID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", wrapPQ("GetValue", err)
	}
	return value, nil
}

func (s *PostgresStore) SetValue(ctx context.Context, clientID, key, value string) error {
	query := `
		INSERT INTO storefront.client_storage (client_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (client_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := s.db.ExecContext(ctx, query, clientID, key, value); err != nil {
		return wrapPQ("SetValue", err)
	}
	return nil
}

func (s *PostgresStore) DeleteValue(ctx context.Context, clientID, key string) error {
	query := `DELETE FROM storefront.client_storage WHERE client_id = $1 AND key = $2;`
	if _, err := s.db.ExecContext(ctx, query, clientID, key); err != nil {
		return wrapPQ("DeleteValue", err)
	}
	return nil
}

func (s *PostgresStore) PurgeIdle(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM storefront.client_storage WHERE updated_at < $1;`
	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, wrapPQ("PurgeIdle", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: PurgeIdle failed to read rows affected: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
