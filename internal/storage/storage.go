// Package storage is the client's persisted key-value store, the process-side counterpart of
// origin-scoped browser storage. Values are plain strings with no versioning or encryption.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been set or was removed.
var ErrNotFound = errors.New("storage: key not found")

// Store reads and writes string values by key. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases the backend connection. Safe to call more than once.
	Close() error
}
