package storage

import (
	"context"
	"errors"
	"testing"
)

// testStore runs the Store contract against an implementation.
func testStore(t *testing.T, open func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		rec := VideoRecord{ID: "dQw4w9WgXcQ", Title: "Test Video", LastWatchedAt: 1700000000000, ViewCount: 2}
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		got, err := store.Get(ctx, "dQw4w9WgXcQ")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if *got != rec {
			t.Errorf("Get() = %+v, want %+v", *got, rec)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		_, err := store.Get(ctx, "aaaaaaaaaaa")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
		var storErr *StorageError
		if !errors.As(err, &storErr) {
			t.Fatalf("Get() error is not *StorageError: %v", err)
		}
		if storErr.Op != "get" || storErr.ID != "aaaaaaaaaaa" {
			t.Errorf("StorageError op/id = %q/%q, want get/aaaaaaaaaaa", storErr.Op, storErr.ID)
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Put(ctx, VideoRecord{ID: "dQw4w9WgXcQ", Title: "Old", LastWatchedAt: 1, ViewCount: 1})
		store.Put(ctx, VideoRecord{ID: "dQw4w9WgXcQ", Title: "New", LastWatchedAt: 2, ViewCount: 5})

		got, err := store.Get(ctx, "dQw4w9WgXcQ")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Title != "New" || got.ViewCount != 5 {
			t.Errorf("Get() after replace = %+v", *got)
		}
	})

	t.Run("put empty id", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		err := store.Put(ctx, VideoRecord{Title: "No Key"})
		if !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("Put() error = %v, want ErrInvalidRecord", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Put(ctx, VideoRecord{ID: "dQw4w9WgXcQ", ViewCount: 1})
		if err := store.Delete(ctx, "dQw4w9WgXcQ"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := store.Get(ctx, "dQw4w9WgXcQ"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, "dQw4w9WgXcQ"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete() missing error = %v, want ErrNotFound", err)
		}
	})

	t.Run("getall ordering", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Put(ctx, VideoRecord{ID: "aaaaaaaaaaa", Title: "Oldest", LastWatchedAt: 100, ViewCount: 1})
		store.Put(ctx, VideoRecord{ID: "bbbbbbbbbbb", Title: "Newest", LastWatchedAt: 300, ViewCount: 1})
		store.Put(ctx, VideoRecord{ID: "ccccccccccc", Title: "Middle", LastWatchedAt: 200, ViewCount: 1})

		got, err := store.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("GetAll() len = %d, want 3", len(got))
		}
		wantOrder := []string{"bbbbbbbbbbb", "ccccccccccc", "aaaaaaaaaaa"}
		for i, id := range wantOrder {
			if got[i].ID != id {
				t.Errorf("GetAll()[%d].ID = %q, want %q", i, got[i].ID, id)
			}
		}
	})

	t.Run("import many upserts", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Put(ctx, VideoRecord{ID: "aaaaaaaaaaa", Title: "Old", LastWatchedAt: 1, ViewCount: 1})
		batch := []VideoRecord{
			{ID: "aaaaaaaaaaa", Title: "Replaced", LastWatchedAt: 9, ViewCount: 9},
			{ID: "bbbbbbbbbbb", Title: "Fresh", LastWatchedAt: 2, ViewCount: 1},
		}
		if err := store.ImportMany(ctx, batch); err != nil {
			t.Fatalf("ImportMany() error = %v", err)
		}

		n, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != 2 {
			t.Errorf("Count() = %d, want 2", n)
		}
		got, _ := store.Get(ctx, "aaaaaaaaaaa")
		if got.Title != "Replaced" || got.ViewCount != 9 {
			t.Errorf("imported record = %+v, want replaced values", *got)
		}
	})

	t.Run("clear", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Put(ctx, VideoRecord{ID: "aaaaaaaaaaa", ViewCount: 1})
		store.Put(ctx, VideoRecord{ID: "bbbbbbbbbbb", ViewCount: 1})
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		n, _ := store.Count(ctx)
		if n != 0 {
			t.Errorf("Count() after clear = %d, want 0", n)
		}
	})
}

func TestStorageError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *StorageError
		want string
	}{
		{
			name: "with id",
			err:  &StorageError{Op: "get", ID: "dQw4w9WgXcQ", Err: ErrNotFound},
			want: "storage: get dQw4w9WgXcQ: storage: not found",
		},
		{
			name: "without id",
			err:  &StorageError{Op: "getall", Err: ErrClosed},
			want: "storage: getall: storage: store closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, tt.err.Err) {
				t.Errorf("errors.Is() should match wrapped sentinel")
			}
		})
	}
}
