package ytwatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	ythttp "ytwatch/http"
	"ytwatch/history"
	"ytwatch/importer"
	"ytwatch/scrape"
	"ytwatch/storage"
	"ytwatch/watch"
)

// Options adjusts a Client. Zero fields fall back to package defaults.
type Options struct {
	// Cooldown is the window within which repeat marks do not increment
	// the view count.
	Cooldown time.Duration
	// Fetcher retrieves history pages. Nil uses the built-in rate-limited
	// HTTP client.
	Fetcher scrape.Fetcher
	// MaxPages caps continuation fetches per synchronize run.
	MaxPages int
	// PageDelay is the pause between page fetches.
	PageDelay time.Duration
	// Logger receives pipeline logs. Nil discards them.
	Logger *zap.Logger
}

// Client is the high-level entry point: one store, the merge policies over
// it, and the producers that feed them.
type Client struct {
	store  storage.Store
	svc    *watch.Service
	logger *zap.Logger

	fetcher   scrape.Fetcher
	maxPages  int
	pageDelay time.Duration
}

// New returns a Client over store. Every component receives the store
// explicitly; nothing here is process-global.
func New(store storage.Store, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = &scrape.ClientFetcher{Client: ythttp.New(nil)}
	}
	maxPages := opts.MaxPages
	if maxPages == 0 {
		maxPages = scrape.DefaultMaxPages
	}
	pageDelay := opts.PageDelay
	if pageDelay == 0 {
		pageDelay = scrape.DefaultPageDelay
	}

	svc := watch.NewService(store, &watch.Config{
		Cooldown: opts.Cooldown,
		Logger:   logger,
	})
	return &Client{
		store:     store,
		svc:       svc,
		logger:    logger,
		fetcher:   fetcher,
		maxPages:  maxPages,
		pageDelay: pageDelay,
	}
}

// Store exposes the underlying record store.
func (c *Client) Store() storage.Store { return c.store }

// Watch exposes the merge-policy service for producers that need it
// directly, such as the live tracker.
func (c *Client) Watch() *watch.Service { return c.svc }

// Lookup returns the stored record for id, or storage.ErrNotFound.
func (c *Client) Lookup(ctx context.Context, id string) (*storage.VideoRecord, error) {
	return c.svc.Lookup(ctx, watch.LookupRequest{VideoID: id})
}

// Ensure registers an observation of a video without treating it as a
// fresh watch event.
func (c *Client) Ensure(ctx context.Context, req watch.EnsureRequest) (*watch.MergeOutcome, error) {
	return c.svc.Ensure(ctx, req)
}

// Mark records a confirmed view of a video.
func (c *Client) Mark(ctx context.Context, req watch.MarkRequest) (*watch.MergeOutcome, error) {
	return c.svc.Mark(ctx, req)
}

// Synchronize scrapes the watch-history pages and merges every candidate
// into the store.
func (c *Client) Synchronize(ctx context.Context, req watch.SyncRequest) (*watch.SyncResult, error) {
	parser := scrape.NewParser(c.logger)
	paginator := scrape.NewPaginator(c.fetcher, parser,
		scrape.WithMaxPages(c.maxPages),
		scrape.WithPageDelay(c.pageDelay),
		scrape.WithLogger(c.logger))
	return watch.NewSynchronizer(paginator, c.svc, c.logger).Synchronize(ctx, req)
}

// SynchronizeHistory cross-references browser history from provider into
// the store.
func (c *Client) SynchronizeHistory(ctx context.Context, provider history.Provider, opts history.SyncOptions) (*history.Result, error) {
	return history.NewCrossReferencer(provider, c.store, c.logger).Synchronize(ctx, opts)
}

// ImportAll bulk-imports records through the store in sequential chunks.
func (c *Client) ImportAll(ctx context.Context, records []storage.VideoRecord, onProgress func(importer.Progress)) (*importer.Result, error) {
	im := importer.NewImporter(c.store, &importer.Config{Logger: c.logger})
	return im.ImportAll(ctx, records, onProgress)
}
