// Package enrich backfills missing titles from the YouTube Data API.
// Scraping and history ingestion leave records whose title is empty or a
// placeholder; the backfiller looks those ids up in batches through
// videos.list and feeds real titles back through the watch service, which
// already knows a meaningful title always wins.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytwatch/metrics"
	"ytwatch/storage"
	"ytwatch/title"
	"ytwatch/watch"
)

const (
	// DefaultDailyQuota mirrors the Data API's default daily allotment.
	DefaultDailyQuota = 10_000
	// listCost is the quota price of one videos.list call.
	listCost = 1
	// batchSize is the Data API's ceiling on ids per videos.list call.
	batchSize = 50
)

type videoSnippet struct {
	id    string
	title string
}

// videoLister abstracts the one Data API call the backfiller makes.
type videoLister interface {
	listVideos(ctx context.Context, ids []string) ([]videoSnippet, error)
}

type apiLister struct {
	svc *youtube.Service
}

func (l *apiLister) listVideos(ctx context.Context, ids []string) ([]videoSnippet, error) {
	resp, err := l.svc.Videos.List([]string{"snippet"}).Id(ids...).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	snippets := make([]videoSnippet, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		snippets = append(snippets, videoSnippet{id: item.Id, title: item.Snippet.Title})
	}
	return snippets, nil
}

// Config adjusts backfill behavior.
type Config struct {
	// DailyQuota is the unit budget the backfiller may spend. Zero or
	// negative means DefaultDailyQuota.
	DailyQuota int
	// Logger receives run lifecycle logs.
	Logger *zap.Logger
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{DailyQuota: DefaultDailyQuota, Logger: zap.NewNop()}
}

// Result summarizes one backfill run. When a list call fails, the counts
// cover the batches that completed before it.
type Result struct {
	// Scanned is how many stored records lacked a meaningful title.
	Scanned int
	// Requested is how many ids were sent to the API.
	Requested int
	// Updated is how many records gained a title.
	Updated int
	// QuotaSpent is the units charged during this run.
	QuotaSpent int
	// Exhausted is set when the run stopped at the quota budget with ids
	// still waiting.
	Exhausted bool
}

// Backfiller fills placeholder titles from the Data API. Quota spend
// accumulates across runs on the same instance.
type Backfiller struct {
	lister videoLister
	watch  *watch.Service
	store  storage.Store
	logger *zap.Logger

	mu     sync.Mutex
	budget int
	spent  int
}

// NewBackfiller returns a Backfiller calling the Data API with apiKey.
func NewBackfiller(apiKey string, watchSvc *watch.Service, store storage.Store, cfg *Config) (*Backfiller, error) {
	if apiKey == "" {
		return nil, errors.New("enrich: api key required")
	}
	svc, err := youtube.NewService(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("enrich: creating data api client: %w", err)
	}
	return newBackfiller(&apiLister{svc: svc}, watchSvc, store, cfg), nil
}

func newBackfiller(lister videoLister, watchSvc *watch.Service, store storage.Store, cfg *Config) *Backfiller {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	b := &Backfiller{
		lister: lister,
		watch:  watchSvc,
		store:  store,
		logger: cfg.Logger,
		budget: cfg.DailyQuota,
	}
	if b.budget <= 0 {
		b.budget = def.DailyQuota
	}
	if b.logger == nil {
		b.logger = def.Logger
	}
	return b
}

// Backfill scans the store for records without a meaningful title, looks
// their ids up in batches of 50, and ensures every returned meaningful
// title. Ids the API does not return are left as they are. The run stops
// cleanly when the quota budget is reached; a failed list call aborts the
// run with the batches already applied.
func (b *Backfiller) Backfill(ctx context.Context) (*Result, error) {
	recs, err := b.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("enrich: reading records: %w", err)
	}
	var ids []string
	for _, rec := range recs {
		if !title.IsMeaningful(rec.Title) {
			ids = append(ids, rec.ID)
		}
	}

	res := &Result{Scanned: len(ids)}
	if len(ids) == 0 {
		b.logger.Info("no titles to backfill")
		return res, nil
	}
	b.logger.Info("backfill started",
		zap.Int("missing_titles", len(ids)),
		zap.Int("quota_budget", b.budget))

	for start := 0; start < len(ids); start += batchSize {
		if !b.charge(listCost) {
			res.Exhausted = true
			b.logger.Warn("quota budget reached",
				zap.Int("requested", res.Requested),
				zap.Int("remaining_ids", len(ids)-start))
			break
		}
		res.QuotaSpent += listCost
		metrics.BackfillCalls.Inc()

		batch := ids[start:min(start+batchSize, len(ids))]
		snippets, err := b.lister.listVideos(ctx, batch)
		if err != nil {
			return res, fmt.Errorf("enrich: listing videos: %w", err)
		}
		res.Requested += len(batch)

		for _, sn := range snippets {
			if !title.IsMeaningful(sn.title) {
				continue
			}
			out, err := b.watch.Ensure(ctx, watch.EnsureRequest{VideoID: sn.id, Title: sn.title})
			if err != nil {
				b.logger.Warn("ensuring backfilled title failed",
					zap.String("video_id", sn.id),
					zap.Error(err))
				continue
			}
			if out.Updated {
				res.Updated++
				metrics.RecordsUpdated.WithLabelValues("backfill").Inc()
			}
		}
	}

	b.logger.Info("backfill complete",
		zap.Int("scanned", res.Scanned),
		zap.Int("requested", res.Requested),
		zap.Int("updated", res.Updated),
		zap.Int("quota_spent", res.QuotaSpent))
	return res, nil
}

// charge reserves units against the budget, reporting whether they fit.
func (b *Backfiller) charge(units int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.spent+units > b.budget {
		return false
	}
	b.spent += units
	return true
}

// QuotaRemaining reports the unspent portion of the budget.
func (b *Backfiller) QuotaRemaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.budget - b.spent
}
