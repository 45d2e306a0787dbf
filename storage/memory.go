package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store backed by a map. It is the default
// store for tests and one-shot runs where durability is not needed.
type MemoryStore struct {
	mu     sync.RWMutex
	recs   map[string]VideoRecord
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]VideoRecord)}
}

// Get retrieves a record by video ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*VideoRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &StorageError{Op: "get", ID: id, Err: ErrClosed}
	}
	rec, ok := s.recs[id]
	if !ok {
		return nil, &StorageError{Op: "get", ID: id, Err: ErrNotFound}
	}
	return &rec, nil
}

// Put saves a record, replacing any existing record with the same ID.
func (s *MemoryStore) Put(ctx context.Context, rec VideoRecord) error {
	if rec.ID == "" {
		return &StorageError{Op: "put", Err: ErrInvalidRecord}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &StorageError{Op: "put", ID: rec.ID, Err: ErrClosed}
	}
	s.recs[rec.ID] = rec
	return nil
}

// GetAll retrieves every record, most recently watched first.
func (s *MemoryStore) GetAll(ctx context.Context) ([]VideoRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &StorageError{Op: "getall", Err: ErrClosed}
	}
	out := make([]VideoRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastWatchedAt != out[j].LastWatchedAt {
			return out[i].LastWatchedAt > out[j].LastWatchedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes a record by video ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &StorageError{Op: "delete", ID: id, Err: ErrClosed}
	}
	if _, ok := s.recs[id]; !ok {
		return &StorageError{Op: "delete", ID: id, Err: ErrNotFound}
	}
	delete(s.recs, id)
	return nil
}

// Clear removes all records.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &StorageError{Op: "clear", Err: ErrClosed}
	}
	s.recs = make(map[string]VideoRecord)
	return nil
}

// ImportMany upserts a batch of records unconditionally.
func (s *MemoryStore) ImportMany(ctx context.Context, recs []VideoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &StorageError{Op: "import", Err: ErrClosed}
	}
	for _, rec := range recs {
		if rec.ID == "" {
			return &StorageError{Op: "import", Err: ErrInvalidRecord}
		}
		s.recs[rec.ID] = rec
	}
	return nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, &StorageError{Op: "count", Err: ErrClosed}
	}
	return len(s.recs), nil
}

// Close marks the store closed. Further operations return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
