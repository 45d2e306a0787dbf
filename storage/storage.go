// Package storage provides keyed persistence for watch records.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidRecord indicates a record with a missing or malformed key.
	ErrInvalidRecord = errors.New("storage: invalid record")
	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("storage: store closed")
	// ErrSnapshotCorrupt indicates a snapshot file could not be decoded.
	ErrSnapshotCorrupt = errors.New("storage: snapshot corrupt")
)

// StorageError wraps storage errors with operation context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s: %v\n", storErr.Op, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("get", "put", "delete", "import").
	Op string
	// ID is the record ID if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// Store is a keyed store of watch records indexed by video ID.
// Implementations must be safe for concurrent use. Stores hold whatever
// they are given; merge rules live with the callers.
type Store interface {
	// Get retrieves a record by video ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*VideoRecord, error)
	// Put saves a record, replacing any existing record with the same ID.
	Put(ctx context.Context, rec VideoRecord) error
	// GetAll retrieves every record, most recently watched first.
	GetAll(ctx context.Context) ([]VideoRecord, error)
	// Delete removes a record. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
	// Clear removes all records.
	Clear(ctx context.Context) error
	// ImportMany upserts a batch of records unconditionally.
	ImportMany(ctx context.Context, recs []VideoRecord) error
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
