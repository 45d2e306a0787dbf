package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

type fixtureRow struct {
	url        string
	title      any
	visitCount int
	visitedMs  int64
}

// writeHistoryFixture creates a Chromium-shaped History database and
// returns its path.
func writeHistoryFixture(t *testing.T, rows ...fixtureRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "History")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening fixture database: %v", err)
	}
	defer db.Close()

	const schema = `CREATE TABLE urls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url LONGVARCHAR,
		title LONGVARCHAR,
		visit_count INTEGER DEFAULT 0 NOT NULL,
		typed_count INTEGER DEFAULT 0 NOT NULL,
		last_visit_time INTEGER NOT NULL,
		hidden INTEGER DEFAULT 0 NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating urls table: %v", err)
	}
	for _, row := range rows {
		_, err := db.Exec(
			`INSERT INTO urls (url, title, visit_count, typed_count, last_visit_time, hidden) VALUES (?, ?, ?, 0, ?, 0)`,
			row.url, row.title, row.visitCount, toWebKitMicros(row.visitedMs),
		)
		if err != nil {
			t.Fatalf("inserting fixture row: %v", err)
		}
	}
	return path
}

func TestChromiumSearch(t *testing.T) {
	base := int64(1_700_000_000_000)
	path := writeHistoryFixture(t,
		fixtureRow{url: "https://www.youtube.com/shorts/abcdefghijk", title: "Old Short", visitCount: 2, visitedMs: base},
		fixtureRow{url: "https://example.com/watch?v=dQw4w9WgXcQ", title: "Not YouTube", visitCount: 9, visitedMs: base + 60_000},
		fixtureRow{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", title: "New Video", visitCount: 4, visitedMs: base + 120_000},
	)

	entries, err := NewChromiumProvider(path, nil).Search(context.Background(), Query{Text: "youtube.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []Entry{
		{URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Title: "New Video", VisitedAt: base + 120_000, VisitCount: 4},
		{URL: "https://www.youtube.com/shorts/abcdefghijk", Title: "Old Short", VisitedAt: base, VisitCount: 2},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(entries), entries)
	}
	for i, w := range want {
		if entries[i] != w {
			t.Errorf("entry %d: expected %+v, got %+v", i, w, entries[i])
		}
	}
}

func TestChromiumSearchStartTime(t *testing.T) {
	base := int64(1_700_000_000_000)
	path := writeHistoryFixture(t,
		fixtureRow{url: "https://www.youtube.com/watch?v=AAAAAAAAAAA", title: "Older", visitCount: 1, visitedMs: base},
		fixtureRow{url: "https://www.youtube.com/watch?v=bbbbbbbbbbb", title: "Newer", visitCount: 1, visitedMs: base + 120_000},
	)

	entries, err := NewChromiumProvider(path, nil).Search(context.Background(), Query{
		Text:      "youtube.com",
		StartTime: base + 60_000,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Newer" {
		t.Errorf("expected only the newer entry, got %+v", entries)
	}
}

func TestChromiumSearchMaxResults(t *testing.T) {
	base := int64(1_700_000_000_000)
	path := writeHistoryFixture(t,
		fixtureRow{url: "https://www.youtube.com/watch?v=AAAAAAAAAAA", title: "First", visitCount: 1, visitedMs: base},
		fixtureRow{url: "https://www.youtube.com/watch?v=bbbbbbbbbbb", title: "Second", visitCount: 1, visitedMs: base + 60_000},
		fixtureRow{url: "https://www.youtube.com/watch?v=ccccccccccc", title: "Third", visitCount: 1, visitedMs: base + 120_000},
	)

	entries, err := NewChromiumProvider(path, nil).Search(context.Background(), Query{
		Text:       "youtube.com",
		MaxResults: 2,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 2 || entries[0].Title != "Third" || entries[1].Title != "Second" {
		t.Errorf("expected two most recent entries, got %+v", entries)
	}
}

func TestChromiumSearchNullTitle(t *testing.T) {
	path := writeHistoryFixture(t,
		fixtureRow{url: "https://www.youtube.com/watch?v=AAAAAAAAAAA", title: nil, visitCount: 1, visitedMs: 1_700_000_000_000},
	)

	entries, err := NewChromiumProvider(path, nil).Search(context.Background(), Query{Text: "youtube.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "" {
		t.Errorf("expected empty title for NULL column, got %+v", entries)
	}
}

func TestChromiumSearchMissingFile(t *testing.T) {
	provider := NewChromiumProvider(filepath.Join(t.TempDir(), "nope", "History"), nil)
	if _, err := provider.Search(context.Background(), Query{Text: "youtube.com"}); err == nil {
		t.Fatal("expected error for missing database file")
	}
}

func TestChromiumDeleteURL(t *testing.T) {
	provider := NewChromiumProvider("irrelevant", nil)
	err := provider.DeleteURL(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA")
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestWebKitTimeConversion(t *testing.T) {
	ms := int64(1_700_000_000_123)
	if got := fromWebKitMicros(toWebKitMicros(ms)); got != ms {
		t.Errorf("round trip: expected %d, got %d", ms, got)
	}
	if got := fromWebKitMicros(0); got != 0 {
		t.Errorf("expected zero to stay zero, got %d", got)
	}
	if got := toWebKitMicros(0); got != webkitEpochOffsetMicros {
		t.Errorf("expected unix epoch to map to the webkit offset, got %d", got)
	}
}
