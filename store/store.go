// Package store defines the durable key-value contract the purchase ledger
// persists through. Backends live in sub-packages (memory, file, sqlite,
// postgres, mongo).
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or
// has been deleted.
var ErrNotFound = errors.New("iap/store: key not found")

// Store is a durable map of string keys to opaque values.
//
// Set must not return until the value is durable: the ledger relies on a
// successful Set surviving a crash immediately afterwards.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
