package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"ytwatch/storage"
)

func makeRecords(n int) []storage.VideoRecord {
	recs := make([]storage.VideoRecord, n)
	for i := range recs {
		recs[i] = storage.VideoRecord{
			ID:            fmt.Sprintf("%011d", i),
			Title:         fmt.Sprintf("Video %d", i),
			LastWatchedAt: int64(1000 + i),
			ViewCount:     1,
		}
	}
	return recs
}

// recordingStore captures the batch sizes handed to ImportMany.
type recordingStore struct {
	storage.Store
	mu      sync.Mutex
	batches []int
	failID  string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: storage.NewMemoryStore()}
}

func (s *recordingStore) ImportMany(ctx context.Context, recs []storage.VideoRecord) error {
	if s.failID != "" && len(recs) > 0 && recs[0].ID == s.failID {
		return errors.New("backend down")
	}
	s.mu.Lock()
	s.batches = append(s.batches, len(recs))
	s.mu.Unlock()
	return s.Store.ImportMany(ctx, recs)
}

func TestChunkSize(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{total: 0, want: 0},
		{total: 999, want: 999},
		{total: 1_000, want: 2_500},
		{total: 9_999, want: 2_500},
		{total: 10_000, want: 1_000},
		{total: 49_999, want: 1_000},
		{total: 50_000, want: 500},
		{total: 60_000, want: 500},
	}
	for _, tt := range tests {
		if got := chunkSize(tt.total); got != tt.want {
			t.Errorf("chunkSize(%d) = %d, expected %d", tt.total, got, tt.want)
		}
	}
}

func TestImportAllLargeDataset(t *testing.T) {
	store := newRecordingStore()
	im := NewImporter(store, &Config{ChunkDelay: -1})

	var progress []Progress
	res, err := im.ImportAll(context.Background(), makeRecords(60_000), func(p Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Processed != 60_000 || res.Chunks != 120 {
		t.Errorf("expected 60000 records over 120 chunks, got %+v", res)
	}
	if res.BatchID == "" {
		t.Error("expected a batch id")
	}
	for i, size := range store.batches {
		if size != 500 {
			t.Fatalf("batch %d: expected 500 records, got %d", i, size)
		}
	}

	prev := -1
	for i, p := range progress {
		if p.Percentage < prev {
			t.Fatalf("progress %d: percentage regressed from %d to %d", i, prev, p.Percentage)
		}
		prev = p.Percentage
	}
	if len(progress) != 120 || progress[len(progress)-1].Percentage != 100 {
		t.Errorf("expected 120 reports ending at 100, got %d ending at %d",
			len(progress), progress[len(progress)-1].Percentage)
	}

	n, err := store.Count(context.Background())
	if err != nil || n != 60_000 {
		t.Errorf("expected 60000 stored records, got %d (%v)", n, err)
	}
}

func TestImportAllSmallSingleBatch(t *testing.T) {
	store := newRecordingStore()
	im := NewImporter(store, &Config{ChunkDelay: -1})

	var progress []Progress
	res, err := im.ImportAll(context.Background(), makeRecords(10), func(p Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Processed != 10 || res.Chunks != 1 {
		t.Errorf("expected a single batch of 10, got %+v", res)
	}
	if len(progress) != 1 || progress[0] != (Progress{Processed: 10, Total: 10, Percentage: 100}) {
		t.Errorf("expected one final report, got %+v", progress)
	}
}

func TestImportAllEmpty(t *testing.T) {
	im := NewImporter(newRecordingStore(), &Config{ChunkDelay: -1})
	res, err := im.ImportAll(context.Background(), nil, func(p Progress) {
		t.Errorf("unexpected progress report %+v", p)
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Processed != 0 || res.Chunks != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestImportAllChunkFailureAborts(t *testing.T) {
	records := makeRecords(3_000)
	store := newRecordingStore()
	store.failID = records[2_500].ID

	im := NewImporter(store, &Config{ChunkDelay: -1})
	res, err := im.ImportAll(context.Background(), records, nil)
	if err == nil {
		t.Fatal("expected chunk failure to surface")
	}
	if res.Processed != 2_500 || res.Chunks != 1 {
		t.Errorf("expected the first chunk to stay imported, got %+v", res)
	}

	n, err := store.Count(context.Background())
	if err != nil || n != 2_500 {
		t.Errorf("expected 2500 stored records, got %d (%v)", n, err)
	}
}

func TestImportAllContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newRecordingStore()
	im := NewImporter(store, nil)
	res, err := im.ImportAll(ctx, makeRecords(3_000), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// Cancellation is noticed at the inter-chunk pause, after the first
	// chunk has already landed.
	if res.Chunks != 1 || res.Processed != 2_500 {
		t.Errorf("expected one completed chunk, got %+v", res)
	}
}

func TestImportAllParallel(t *testing.T) {
	store := newRecordingStore()
	im := NewImporter(store, &Config{ChunkDelay: -1})

	var (
		mu       sync.Mutex
		progress []Progress
	)
	res, err := im.ImportAllParallel(context.Background(), makeRecords(5_000), func(p Progress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Processed != 5_000 || res.Chunks != 2 {
		t.Errorf("expected 5000 records over 2 chunks, got %+v", res)
	}

	prev := -1
	for i, p := range progress {
		if p.Percentage < prev {
			t.Fatalf("progress %d: percentage regressed from %d to %d", i, prev, p.Percentage)
		}
		prev = p.Percentage
	}
	if len(progress) != 2 || progress[1].Percentage != 100 {
		t.Errorf("expected two reports ending at 100, got %+v", progress)
	}

	n, err := store.Count(context.Background())
	if err != nil || n != 5_000 {
		t.Errorf("expected 5000 stored records, got %d (%v)", n, err)
	}
}

func TestImportAllParallelPropagatesFailure(t *testing.T) {
	records := makeRecords(5_000)
	store := newRecordingStore()
	store.failID = records[2_500].ID

	im := NewImporter(store, &Config{ChunkDelay: -1})
	if _, err := im.ImportAllParallel(context.Background(), records, nil); err == nil {
		t.Fatal("expected chunk failure to surface")
	}
}
