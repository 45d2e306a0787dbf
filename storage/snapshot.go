package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// snapshotVersion is bumped when the envelope layout changes.
const snapshotVersion = 1

// Snapshot is the portable export format for a whole store: a versioned
// JSON envelope holding every record.
type Snapshot struct {
	// Version is the envelope format version.
	Version int `json:"version"`
	// ExportedAt is when the snapshot was written.
	ExportedAt time.Time `json:"exported_at"`
	// Records holds the exported watch records.
	Records []VideoRecord `json:"records"`
}

// WriteSnapshot exports every record in the store to a JSON snapshot at
// path. The write is atomic: readers never observe a half-written file.
func WriteSnapshot(ctx context.Context, store Store, path string) (*Snapshot, error) {
	recs, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	snap := &Snapshot{
		Version:    snapshotVersion,
		ExportedAt: time.Now().UTC(),
		Records:    recs,
	}

	w, err := NewAtomicWriter(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		w.Abort()
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.Commit(); err != nil {
		return nil, fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return snap, nil
}

// ReadSnapshot loads a snapshot file written by WriteSnapshot.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &StorageError{Op: "import", Err: fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)}
	}
	if snap.Version <= 0 || snap.Version > snapshotVersion {
		return nil, &StorageError{Op: "import", Err: fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, snap.Version)}
	}
	return &snap, nil
}
