package ytwatch

import (
	"context"
	"errors"
	"testing"

	"ytwatch/history"
	"ytwatch/importer"
	"ytwatch/storage"
	"ytwatch/watch"
)

type staticFetcher struct {
	body []byte
}

func (f *staticFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	return f.body, nil
}

func (f *staticFetcher) Post(ctx context.Context, url, contentType string, body []byte) ([]byte, error) {
	return nil, errors.New("no continuation expected")
}

type staticProvider struct {
	entries []history.Entry
}

func (p *staticProvider) Search(ctx context.Context, q history.Query) ([]history.Entry, error) {
	return p.entries, nil
}

func (p *staticProvider) DeleteURL(ctx context.Context, url string) error {
	return history.ErrReadOnly
}

func TestClientMarkAndLookup(t *testing.T) {
	ctx := context.Background()
	client := New(storage.NewMemoryStore(), nil)

	out, err := client.Mark(ctx, watch.MarkRequest{VideoID: "dQw4w9WgXcQ", Title: "Some Video"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !out.Created || out.Record.ViewCount != 1 {
		t.Errorf("expected a fresh record with one view, got %+v", out)
	}

	rec, err := client.Lookup(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("expected record, got %v", err)
	}
	if rec.Title != "Some Video" {
		t.Errorf("expected title kept, got %q", rec.Title)
	}

	if _, err := client.Lookup(ctx, "nope"); !errors.Is(err, ErrInvalidVideoID) {
		t.Errorf("expected ErrInvalidVideoID, got %v", err)
	}
	if _, err := client.Lookup(ctx, "aaaaaaaaaaa"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClientSynchronize(t *testing.T) {
	ctx := context.Background()
	page := `<html><head><title>Watch history - YouTube</title></head><body>
<div data-video-id="dQw4w9WgXcQ"><span id="video-title">First Video</span></div>
<div data-video-id="abcdefghijk"><span id="video-title">Second Video</span></div>
</body></html>`
	client := New(storage.NewMemoryStore(), &Options{Fetcher: &staticFetcher{body: []byte(page)}})

	res, err := client.Synchronize(ctx, watch.SyncRequest{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Processed != 2 || res.New != 2 {
		t.Errorf("expected two new records, got %+v", res)
	}

	rec, err := client.Lookup(ctx, "abcdefghijk")
	if err != nil {
		t.Fatalf("expected record, got %v", err)
	}
	if rec.Title != "Second Video" {
		t.Errorf("expected scraped title, got %q", rec.Title)
	}
}

func TestClientSynchronizeHistory(t *testing.T) {
	ctx := context.Background()
	client := New(storage.NewMemoryStore(), nil)
	provider := &staticProvider{entries: []history.Entry{{
		URL:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Title:      "Visited Video",
		VisitedAt:  5000,
		VisitCount: 2,
	}}}

	res, err := client.SynchronizeHistory(ctx, provider, history.SyncOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Created != 1 {
		t.Errorf("expected one created record, got %+v", res)
	}

	rec, err := client.Lookup(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("expected record, got %v", err)
	}
	if rec.LastWatchedAt != 5000 || rec.ViewCount != 2 {
		t.Errorf("expected visit mirrored, got %+v", rec)
	}
}

func TestClientImportAll(t *testing.T) {
	ctx := context.Background()
	client := New(storage.NewMemoryStore(), nil)

	records := []storage.VideoRecord{
		{ID: "AAAAAAAAAAA", Title: "One", LastWatchedAt: 1, ViewCount: 1},
		{ID: "bbbbbbbbbbb", Title: "Two", LastWatchedAt: 2, ViewCount: 4},
	}
	var last importer.Progress
	res, err := client.ImportAll(ctx, records, func(p importer.Progress) { last = p })
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Processed != 2 || res.Chunks != 1 {
		t.Errorf("expected one chunk of two, got %+v", res)
	}
	if last.Percentage != 100 {
		t.Errorf("expected final progress at 100, got %+v", last)
	}

	rec, err := client.Lookup(ctx, "bbbbbbbbbbb")
	if err != nil {
		t.Fatalf("expected record, got %v", err)
	}
	if rec.ViewCount != 4 {
		t.Errorf("expected imported record, got %+v", rec)
	}
}
