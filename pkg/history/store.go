// Package history archives finalized conversation turns. An Archive
// sequences turns per conversation over a small key-value Store; the
// package ships a BadgerDB-backed store for devices and an in-memory
// one for tests.
package history

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("history: not found")

// Entry is a key-value pair yielded by List and written by SetBatch.
type Entry struct {
	Key   string
	Value []byte
}

// Store is the persistence boundary of the archive.
type Store interface {
	// Get retrieves a value. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, overwriting any existing one.
	Set(ctx context.Context, key string, value []byte) error

	// SetBatch atomically stores several entries.
	SetBatch(ctx context.Context, entries []Entry) error

	// Delete removes a key. Absent keys are not an error.
	Delete(ctx context.Context, key string) error

	// List yields all entries whose key starts with prefix, in
	// lexicographic key order.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Close releases the store's resources.
	Close() error
}
