package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS watch_records (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL DEFAULT '',
	last_watched_at INTEGER NOT NULL DEFAULT 0,
	view_count      INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_watch_records_last_watched
	ON watch_records(last_watched_at DESC);
`

// SQLiteStore is a durable Store backed by a local SQLite database.
// It uses the cgo-free modernc driver, so a single binary works everywhere.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path and
// ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The driver serializes writes; a single connection avoids SQLITE_BUSY
	// churn under concurrent use.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get retrieves a record by video ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*VideoRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, last_watched_at, view_count FROM watch_records WHERE id = ?`, id)
	var rec VideoRecord
	if err := row.Scan(&rec.ID, &rec.Title, &rec.LastWatchedAt, &rec.ViewCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &StorageError{Op: "get", ID: id, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "get", ID: id, Err: err}
	}
	return &rec, nil
}

// Put saves a record, replacing any existing record with the same ID.
func (s *SQLiteStore) Put(ctx context.Context, rec VideoRecord) error {
	if rec.ID == "" {
		return &StorageError{Op: "put", Err: ErrInvalidRecord}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watch_records (id, title, last_watched_at, view_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			last_watched_at = excluded.last_watched_at,
			view_count = excluded.view_count`,
		rec.ID, rec.Title, rec.LastWatchedAt, rec.ViewCount)
	if err != nil {
		return &StorageError{Op: "put", ID: rec.ID, Err: err}
	}
	return nil
}

// GetAll retrieves every record, most recently watched first.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]VideoRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, last_watched_at, view_count FROM watch_records
		 ORDER BY last_watched_at DESC, id ASC`)
	if err != nil {
		return nil, &StorageError{Op: "getall", Err: err}
	}
	defer rows.Close()

	var out []VideoRecord
	for rows.Next() {
		var rec VideoRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.LastWatchedAt, &rec.ViewCount); err != nil {
			return nil, &StorageError{Op: "getall", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "getall", Err: err}
	}
	return out, nil
}

// Delete removes a record by video ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watch_records WHERE id = ?`, id)
	if err != nil {
		return &StorageError{Op: "delete", ID: id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "delete", ID: id, Err: err}
	}
	if n == 0 {
		return &StorageError{Op: "delete", ID: id, Err: ErrNotFound}
	}
	return nil
}

// Clear removes all records.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watch_records`); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	return nil
}

// ImportMany upserts a batch of records in a single transaction.
func (s *SQLiteStore) ImportMany(ctx context.Context, recs []VideoRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "import", Err: err}
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO watch_records (id, title, last_watched_at, view_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			last_watched_at = excluded.last_watched_at,
			view_count = excluded.view_count`)
	if err != nil {
		tx.Rollback()
		return &StorageError{Op: "import", Err: err}
	}
	defer stmt.Close()

	for _, rec := range recs {
		if rec.ID == "" {
			tx.Rollback()
			return &StorageError{Op: "import", Err: ErrInvalidRecord}
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Title, rec.LastWatchedAt, rec.ViewCount); err != nil {
			tx.Rollback()
			return &StorageError{Op: "import", ID: rec.ID, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "import", Err: err}
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM watch_records`).Scan(&n); err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
