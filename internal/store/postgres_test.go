package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db)
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

func TestPostgresStore_GetValue(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	query := regexp.QuoteMeta(`SELECT value FROM storefront.client_storage`)
	mock.ExpectQuery(query).
		WithArgs("client-1", "buyer_cart").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[{"id":"42","quantity":3}]`))

	value, err := store.GetValue(context.Background(), "client-1", "buyer_cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"42","quantity":3}]`, value)
	require.NoError(t, mock.ExpectationsWereMet(), "SQLmock expectations were not met")
}

func TestPostgresStore_GetValue_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM storefront.client_storage`)).
		WithArgs("client-1", "theme").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetValue(context.Background(), "client-1", "theme")
	assert.True(t, errors.Is(err, ErrKeyNotFound), "expected ErrKeyNotFound, got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetValue_Upserts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	query := `(?s)` + regexp.QuoteMeta(`INSERT INTO storefront.client_storage (client_id, key, value)`) +
		`.*ON CONFLICT \(client_id, key\)`
	mock.ExpectExec(query).
		WithArgs("client-1", "theme", "dark").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetValue(context.Background(), "client-1", "theme", "dark"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetValue_MissingTable(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO storefront.client_storage`)).
		WithArgs("client-1", "theme", "dark").
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "storefront.client_storage" does not exist`})

	err := store.SetValue(context.Background(), "client-1", "theme", "dark")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMissing), "expected ErrSchemaMissing, got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteValue(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM storefront.client_storage WHERE client_id = $1 AND key = $2;`)).
		WithArgs("client-1", "buyer_token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteValue(context.Background(), "client-1", "buyer_token"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PurgeIdle(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	cutoff := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM storefront.client_storage WHERE updated_at < $1;`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := store.PurgeIdle(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS storefront\.client_storage`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
