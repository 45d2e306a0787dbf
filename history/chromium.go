package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// webkitEpochOffsetMicros is the gap between the WebKit epoch (1601-01-01)
// and the Unix epoch, in microseconds. Chromium stores last_visit_time in
// WebKit microseconds.
const webkitEpochOffsetMicros = 11_644_473_600_000_000

func fromWebKitMicros(us int64) int64 {
	if us == 0 {
		return 0
	}
	return (us - webkitEpochOffsetMicros) / 1000
}

func toWebKitMicros(ms int64) int64 {
	return ms*1000 + webkitEpochOffsetMicros
}

// ChromiumProvider reads a Chromium-family History database (Chrome,
// Chromium, Edge, Brave). The browser holds an exclusive lock on the live
// file, so every search copies it to a temporary path and reads the copy.
// The provider never writes to browser history; DeleteURL reports
// ErrReadOnly.
type ChromiumProvider struct {
	historyPath string
	logger      *zap.Logger
}

// NewChromiumProvider returns a provider over the History file at path.
func NewChromiumProvider(path string, logger *zap.Logger) *ChromiumProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromiumProvider{historyPath: path, logger: logger}
}

// Search reads matching rows from the urls table. Results are ordered most
// recent first and carry epoch-millisecond timestamps.
func (p *ChromiumProvider) Search(ctx context.Context, q Query) ([]Entry, error) {
	dbPath, cleanup, err := p.copyDatabase()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: opening database copy: %w", err)
	}
	defer db.Close()

	query := `SELECT url, title, last_visit_time, visit_count FROM urls WHERE url LIKE ?`
	args := []any{"%" + q.Text + "%"}
	if q.StartTime > 0 {
		query += ` AND last_visit_time >= ?`
		args = append(args, toWebKitMicros(q.StartTime))
	}
	query += ` ORDER BY last_visit_time DESC`
	if q.MaxResults > 0 {
		query += ` LIMIT ?`
		args = append(args, q.MaxResults)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: querying urls: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			rowTitle  sql.NullString
			visitedAt int64
		)
		if err := rows.Scan(&entry.URL, &rowTitle, &visitedAt, &entry.VisitCount); err != nil {
			return nil, fmt.Errorf("history: scanning url row: %w", err)
		}
		entry.Title = rowTitle.String
		entry.VisitedAt = fromWebKitMicros(visitedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: reading url rows: %w", err)
	}
	p.logger.Debug("browser history searched",
		zap.String("text", q.Text),
		zap.Int("entries", len(entries)))
	return entries, nil
}

// DeleteURL always reports ErrReadOnly: the provider only ever sees a
// throwaway copy of the database, and deleting from the live file under the
// browser's lock would corrupt it.
func (p *ChromiumProvider) DeleteURL(ctx context.Context, url string) error {
	return ErrReadOnly
}

// copyDatabase snapshots the History file to a temp path the driver can
// open while the browser keeps its lock on the original.
func (p *ChromiumProvider) copyDatabase() (string, func(), error) {
	src, err := os.Open(p.historyPath)
	if err != nil {
		return "", nil, fmt.Errorf("history: opening %s: %w", p.historyPath, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "ytwatch-history-*.db")
	if err != nil {
		return "", nil, fmt.Errorf("history: creating database copy: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("history: copying database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("history: finishing database copy: %w", err)
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}
