package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ytwatch/storage"
)

type fakeProvider struct {
	entries []Entry
	err     error
	lastQ   Query
}

func (f *fakeProvider) Search(ctx context.Context, q Query) ([]Entry, error) {
	f.lastQ = q
	return f.entries, f.err
}

func (f *fakeProvider) DeleteURL(ctx context.Context, url string) error { return ErrReadOnly }

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		id   string
		ok   bool
	}{
		{name: "standard watch", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", id: "dQw4w9WgXcQ", ok: true},
		{name: "bare host", url: "https://youtube.com/watch?v=dQw4w9WgXcQ", id: "dQw4w9WgXcQ", ok: true},
		{name: "mobile watch", url: "https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", id: "dQw4w9WgXcQ", ok: true},
		{name: "shorts", url: "https://www.youtube.com/shorts/abcdefghijk", id: "abcdefghijk", ok: true},
		{name: "shorts with query", url: "https://www.youtube.com/shorts/abcdefghijk?feature=share", id: "abcdefghijk", ok: true},
		{name: "shorts with trailing segment", url: "https://www.youtube.com/shorts/abcdefghijk/extra", id: "abcdefghijk", ok: true},
		{name: "uppercase host", url: "https://WWW.YOUTUBE.COM/watch?v=dQw4w9WgXcQ", id: "dQw4w9WgXcQ", ok: true},
		{name: "playlist", url: "https://www.youtube.com/playlist?list=PLabc", ok: false},
		{name: "channel page", url: "https://www.youtube.com/@somecreator", ok: false},
		{name: "home page", url: "https://www.youtube.com/", ok: false},
		{name: "short id", url: "https://www.youtube.com/watch?v=short", ok: false},
		{name: "missing v param", url: "https://www.youtube.com/watch?list=PLabc", ok: false},
		{name: "wrong host", url: "https://example.com/watch?v=dQw4w9WgXcQ", ok: false},
		{name: "unparseable", url: "::bad::", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := VideoIDFromURL(tt.url)
			if ok != tt.ok || id != tt.id {
				t.Errorf("VideoIDFromURL(%q) = (%q, %v), expected (%q, %v)",
					tt.url, id, ok, tt.id, tt.ok)
			}
		})
	}
}

func TestMergeMonotonic(t *testing.T) {
	base := storage.VideoRecord{ID: "AAAAAAAAAAA", Title: "Real Title", LastWatchedAt: 1000, ViewCount: 3}

	tests := []struct {
		name    string
		title   string
		visited int64
		count   int
		want    storage.VideoRecord
		changed bool
	}{
		{
			name: "older visit and lower count change nothing",
			title: "Another Title", visited: 500, count: 2,
			want: base, changed: false,
		},
		{
			name: "newer visit advances timestamp",
			title: "", visited: 2000, count: 3,
			want: storage.VideoRecord{ID: "AAAAAAAAAAA", Title: "Real Title", LastWatchedAt: 2000, ViewCount: 3}, changed: true,
		},
		{
			name: "higher count advances count",
			title: "", visited: 900, count: 10,
			want: storage.VideoRecord{ID: "AAAAAAAAAAA", Title: "Real Title", LastWatchedAt: 1000, ViewCount: 10}, changed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := mergeMonotonic(base, tt.title, tt.visited, tt.count)
			if got != tt.want || changed != tt.changed {
				t.Errorf("mergeMonotonic = (%+v, %v), expected (%+v, %v)", got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestMergeMonotonicFillsWeakTitle(t *testing.T) {
	rec := storage.VideoRecord{ID: "AAAAAAAAAAA", Title: "", LastWatchedAt: 1000, ViewCount: 3}
	got, changed := mergeMonotonic(rec, "Good Title", 900, 2)
	if !changed || got.Title != "Good Title" {
		t.Errorf("expected title filled, got (%+v, %v)", got, changed)
	}

	strong := storage.VideoRecord{ID: "AAAAAAAAAAA", Title: "Real Title", LastWatchedAt: 1000, ViewCount: 3}
	got, changed = mergeMonotonic(strong, "Other Title", 900, 2)
	if changed || got.Title != "Real Title" {
		t.Errorf("expected meaningful title kept, got (%+v, %v)", got, changed)
	}
}

func TestSynchronizeMergesVisitIntoExisting(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if err := store.Put(ctx, storage.VideoRecord{ID: "AAAAAAAAAAA", LastWatchedAt: 1000, ViewCount: 3}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	provider := &fakeProvider{entries: []Entry{{
		URL:        "https://www.youtube.com/watch?v=AAAAAAAAAAA",
		Title:      "Good Title",
		VisitedAt:  900,
		VisitCount: 5,
	}}}

	res, err := NewCrossReferencer(provider, store, nil).Synchronize(ctx, SyncOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Processed != 1 || res.Updated != 1 || res.Created != 0 || res.Skipped != 0 {
		t.Errorf("expected one update, got %+v", res)
	}

	rec, err := store.Get(ctx, "AAAAAAAAAAA")
	if err != nil {
		t.Fatalf("expected record, got %v", err)
	}
	if rec.Title != "Good Title" || rec.ViewCount != 5 || rec.LastWatchedAt != 1000 {
		t.Errorf("expected {Good Title, 5, 1000}, got %+v", rec)
	}
}

func TestSynchronizeSkipExisting(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seed := []storage.VideoRecord{
		{ID: "AAAAAAAAAAA", Title: "Video A", LastWatchedAt: 1000, ViewCount: 3},
		{ID: "bbbbbbbbbbb", Title: "Video B", LastWatchedAt: 2000, ViewCount: 1},
	}
	for _, rec := range seed {
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}

	provider := &fakeProvider{entries: []Entry{
		{URL: "https://www.youtube.com/watch?v=AAAAAAAAAAA", Title: "Video A", VisitedAt: 9000, VisitCount: 9},
		{URL: "https://www.youtube.com/shorts/bbbbbbbbbbb", Title: "Video B", VisitedAt: 9000, VisitCount: 9},
		{URL: "https://www.youtube.com/playlist?list=PLabc", Title: "A Playlist", VisitedAt: 9000, VisitCount: 1},
		{URL: "https://www.youtube.com/watch?v=ccccccccccc", Title: "", VisitedAt: 9000, VisitCount: 1},
	}}

	res, err := NewCrossReferencer(provider, store, nil).Synchronize(ctx, SyncOptions{SkipExisting: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Processed != 4 {
		t.Errorf("expected 4 processed, got %d", res.Processed)
	}
	// Only entries that survive URL and title filtering count as skipped.
	if res.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", res.Skipped)
	}
	if res.Created != 0 || res.Updated != 0 || len(res.Records) != 0 {
		t.Errorf("expected zero mutations, got %+v", res)
	}

	for _, want := range seed {
		got, err := store.Get(ctx, want.ID)
		if err != nil {
			t.Fatalf("expected record %s, got %v", want.ID, err)
		}
		if *got != want {
			t.Errorf("expected record untouched, got %+v", got)
		}
	}
}

func TestSynchronizeCreates(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := &fakeProvider{entries: []Entry{
		{URL: "https://www.youtube.com/watch?v=AAAAAAAAAAA", Title: "New Video", VisitedAt: 5000, VisitCount: 2},
		{URL: "https://www.youtube.com/shorts/bbbbbbbbbbb", Title: "New Short", VisitedAt: 6000, VisitCount: 0},
	}}

	res, err := NewCrossReferencer(provider, store, nil).Synchronize(ctx, SyncOptions{Since: 4000})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Created != 2 {
		t.Fatalf("expected 2 created, got %+v", res)
	}
	if provider.lastQ.Text != "youtube.com" || provider.lastQ.StartTime != 4000 {
		t.Errorf("expected provider query passthrough, got %+v", provider.lastQ)
	}

	rec, err := store.Get(ctx, "AAAAAAAAAAA")
	if err != nil {
		t.Fatalf("expected record, got %v", err)
	}
	if rec.Title != "New Video" || rec.LastWatchedAt != 5000 || rec.ViewCount != 2 {
		t.Errorf("expected visit mirrored on create, got %+v", rec)
	}

	short, err := store.Get(ctx, "bbbbbbbbbbb")
	if err != nil {
		t.Fatalf("expected record, got %v", err)
	}
	if short.ViewCount != 1 {
		t.Errorf("expected zero visit count to floor at 1, got %d", short.ViewCount)
	}
}

func TestSynchronizeProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("history locked")}
	_, err := NewCrossReferencer(provider, storage.NewMemoryStore(), nil).Synchronize(context.Background(), SyncOptions{})
	if err == nil {
		t.Fatal("expected provider error to surface")
	}
}

func TestSynchronizeProgressCadence(t *testing.T) {
	var entries []Entry
	for i := 0; i < 250; i++ {
		entries = append(entries, Entry{
			URL:        fmt.Sprintf("https://www.youtube.com/watch?v=%011d", i),
			Title:      fmt.Sprintf("Video %011d and more", i),
			VisitedAt:  int64(1000 + i),
			VisitCount: 1,
		})
	}
	provider := &fakeProvider{entries: entries}

	var seen []Progress
	res, err := NewCrossReferencer(provider, storage.NewMemoryStore(), nil).Synchronize(context.Background(), SyncOptions{
		OnProgress: func(p Progress) { seen = append(seen, p) },
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Created != 250 {
		t.Errorf("expected 250 created, got %d", res.Created)
	}
	want := []Progress{{100, 250}, {200, 250}, {250, 250}}
	if len(seen) != len(want) {
		t.Fatalf("expected %d progress callbacks, got %d: %+v", len(want), len(seen), seen)
	}
	for i, p := range want {
		if seen[i] != p {
			t.Errorf("callback %d: expected %+v, got %+v", i, p, seen[i])
		}
	}
}

func TestSynchronizeStoreFailureSkipsEntry(t *testing.T) {
	ctx := context.Background()
	store := &failPutStore{Store: storage.NewMemoryStore(), failID: "AAAAAAAAAAA"}
	provider := &fakeProvider{entries: []Entry{
		{URL: "https://www.youtube.com/watch?v=AAAAAAAAAAA", Title: "Doomed Video", VisitedAt: 1, VisitCount: 1},
		{URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb", Title: "Fine Video", VisitedAt: 2, VisitCount: 1},
	}}

	res, err := NewCrossReferencer(provider, store, nil).Synchronize(ctx, SyncOptions{})
	if err != nil {
		t.Fatalf("expected run to continue past a store failure, got %v", err)
	}
	if res.Created != 1 || res.Processed != 2 {
		t.Errorf("expected the second entry to land, got %+v", res)
	}
}

type failPutStore struct {
	storage.Store
	failID string
}

func (s *failPutStore) Put(ctx context.Context, rec storage.VideoRecord) error {
	if rec.ID == s.failID {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, rec)
}
