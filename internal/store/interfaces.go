package store

import (
	"context"
	"errors"
	"time"
)

// Predefined errors for store operations.
var (
	ErrKeyNotFound   = errors.New("store: key not found")
	ErrSchemaMissing = errors.New("store: client_storage table does not exist")
)

// ClientStorer persists the per-client key/value namespace that plays the
// role of browser storage. Values are opaque strings, usually JSON.
type ClientStorer interface {
	GetValue(ctx context.Context, clientID, key string) (string, error)
	SetValue(ctx context.Context, clientID, key, value string) error
	DeleteValue(ctx context.Context, clientID, key string) error
	// PurgeIdle removes every key last written before the cutoff and
	// reports how many were removed.
	PurgeIdle(ctx context.Context, before time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
