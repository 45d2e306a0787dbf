// Package history cross-references browser history against the watch-record
// store. Browser visits carry real timestamps and visit counts, which the
// scrape pipeline never sees, so this producer merges monotonically instead
// of going through the watch-event policy: neither the timestamp nor the
// count of a record ever decreases here.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"ytwatch/metrics"
	"ytwatch/storage"
	"ytwatch/title"
)

// ErrReadOnly is returned by providers that cannot delete from the
// underlying history source.
var ErrReadOnly = errors.New("history: provider is read-only")

// Query narrows a history search.
type Query struct {
	// Text filters URLs by substring.
	Text string
	// StartTime is the inclusive epoch-ms horizon; zero means unbounded.
	StartTime int64
	// MaxResults caps the result set; zero means the provider's default.
	MaxResults int
}

// Entry is one browser-history row.
type Entry struct {
	URL       string
	Title     string
	VisitedAt int64
	// VisitCount is the browser's own visit counter for the URL.
	VisitCount int
}

// Provider is the browser-history collaborator.
type Provider interface {
	Search(ctx context.Context, q Query) ([]Entry, error)
	// DeleteURL removes one URL from the history source. Providers that
	// cannot mutate their source return ErrReadOnly.
	DeleteURL(ctx context.Context, url string) error
}

// SyncOptions configures a cross-reference run.
type SyncOptions struct {
	// Since is the inclusive epoch-ms horizon; zero scans everything.
	Since int64
	// SkipExisting leaves records that already exist untouched and counts
	// the entries separately.
	SkipExisting bool
	// MaxResults caps how many history entries are considered.
	MaxResults int
	OnProgress func(Progress)
}

// Progress is a point-in-time view of a running cross-reference.
type Progress struct {
	Processed int
	Total     int
}

// Result summarizes a cross-reference run. Skipped counts only entries that
// hit SkipExisting; entries discarded for shape or title reasons appear in
// Processed alone. Records holds the records the run created or changed.
type Result struct {
	Processed int
	Skipped   int
	Created   int
	Updated   int
	Records   []storage.VideoRecord
}

// CrossReferencer merges browser visits into the store.
type CrossReferencer struct {
	provider Provider
	store    storage.Store
	logger   *zap.Logger
}

// NewCrossReferencer returns a cross-referencer over provider and store.
func NewCrossReferencer(provider Provider, store storage.Store, logger *zap.Logger) *CrossReferencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrossReferencer{provider: provider, store: store, logger: logger}
}

// progressInterval is how many processed entries pass between progress
// callbacks; a final callback always fires.
const progressInterval = 100

// Synchronize queries the provider for YouTube visits since opts.Since and
// merges each into the store. The merge is monotonic: the timestamp and
// count only move forward, and a meaningful stored title is never replaced.
// A store failure on one entry skips that entry and the run continues.
func (c *CrossReferencer) Synchronize(ctx context.Context, opts SyncOptions) (*Result, error) {
	entries, err := c.provider.Search(ctx, Query{
		Text:       "youtube.com",
		StartTime:  opts.Since,
		MaxResults: opts.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("history: searching browser history: %w", err)
	}
	c.logger.Info("history cross-reference starting",
		zap.Int("entries", len(entries)),
		zap.Int64("since", opts.Since),
		zap.Bool("skip_existing", opts.SkipExisting))

	res := &Result{}
	report := func() {
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Processed: res.Processed, Total: len(entries)})
		}
	}

	for _, entry := range entries {
		res.Processed++
		metrics.HistoryEntriesProcessed.Inc()
		if res.Processed%progressInterval == 0 {
			report()
		}

		if strings.TrimSpace(entry.Title) == "" {
			metrics.HistoryEntriesSkipped.WithLabelValues("untitled").Inc()
			continue
		}
		id, ok := VideoIDFromURL(entry.URL)
		if !ok {
			metrics.HistoryEntriesSkipped.WithLabelValues("not_video").Inc()
			continue
		}
		observed := title.Normalize(entry.Title)

		rec, err := c.store.Get(ctx, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			created := storage.VideoRecord{
				ID:            id,
				Title:         observed,
				LastWatchedAt: entry.VisitedAt,
				ViewCount:     max(1, entry.VisitCount),
			}
			if err := c.store.Put(ctx, created); err != nil {
				c.logger.Warn("history record write failed",
					zap.String("video_id", id), zap.Error(err))
				continue
			}
			res.Created++
			res.Records = append(res.Records, created)
			metrics.RecordsCreated.WithLabelValues("history").Inc()
		case err != nil:
			c.logger.Warn("history record read failed",
				zap.String("video_id", id), zap.Error(err))
		case opts.SkipExisting:
			res.Skipped++
			metrics.HistoryEntriesSkipped.WithLabelValues("existing").Inc()
		default:
			merged, changed := mergeMonotonic(*rec, observed, entry.VisitedAt, entry.VisitCount)
			if !changed {
				continue
			}
			if err := c.store.Put(ctx, merged); err != nil {
				c.logger.Warn("history record write failed",
					zap.String("video_id", id), zap.Error(err))
				continue
			}
			res.Updated++
			res.Records = append(res.Records, merged)
			metrics.RecordsUpdated.WithLabelValues("history").Inc()
		}
	}
	if len(entries) == 0 || res.Processed%progressInterval != 0 {
		report()
	}

	c.logger.Info("history cross-reference complete",
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// mergeMonotonic folds one browser visit into an existing record. Timestamp
// and count take the maximum of both sides; the title changes only when the
// stored one is not meaningful.
func mergeMonotonic(rec storage.VideoRecord, observedTitle string, visitedAt int64, visitCount int) (storage.VideoRecord, bool) {
	changed := false
	if visitedAt > rec.LastWatchedAt {
		rec.LastWatchedAt = visitedAt
		changed = true
	}
	if visitCount > rec.ViewCount {
		rec.ViewCount = visitCount
		changed = true
	}
	if !title.IsMeaningful(rec.Title) && observedTitle != "" && observedTitle != rec.Title {
		rec.Title = observedTitle
		changed = true
	}
	return rec, changed
}

// VideoIDFromURL extracts the video id from a watch or shorts URL. Standard
// and mobile watch links carry the id in the v query parameter; shorts
// links carry it as the path segment after /shorts/, trailing segments and
// query dropped. ok is false for any other URL shape and for malformed ids.
func VideoIDFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "youtube.com" && host != "m.youtube.com" {
		return "", false
	}
	var id string
	switch {
	case u.Path == "/watch":
		id = u.Query().Get("v")
	case strings.HasPrefix(u.Path, "/shorts/"):
		id = strings.TrimPrefix(u.Path, "/shorts/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
	default:
		return "", false
	}
	if !storage.ValidID(id) {
		return "", false
	}
	return id, true
}
