// Package ytwatch maintains a canonical record of every YouTube video a
// user has watched, reconciled from three independent evidence sources:
// scraped watch-history pages, the browser's local navigation history, and
// live playback signals.
//
// Overview
//
// Every video is one VideoRecord keyed by its 11-character id. Producers
// never write records directly; all evidence flows through merge policies
// that keep view counts monotonic and never replace a meaningful title
// with a placeholder:
//
//   - Synchronize: scrape and paginate the watch-history pages
//   - SynchronizeHistory: cross-reference the browser's History database
//   - Mark: record a live confirmed view (cooldown-limited counting)
//   - Ensure: register an observation without counting a view
//   - ImportAll: replay a trusted export through the store in chunks
//
// Quick Start
//
// Record and look up a watched video:
//
//	store := storage.NewMemoryStore()
//	client := ytwatch.New(store, nil)
//
//	ctx := context.Background()
//	if _, err := client.Mark(ctx, watch.MarkRequest{VideoID: "dQw4w9WgXcQ", Title: "Some Video"}); err != nil {
//		log.Fatal(err)
//	}
//	rec, err := client.Lookup(ctx, "dQw4w9WgXcQ")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(rec.Title, rec.ViewCount)
//
// Synchronize the watch-history pages:
//
//	result, err := client.Synchronize(ctx, watch.SyncRequest{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("processed %d, new %d, updated %d\n", result.Processed, result.New, result.Updated)
//
// Cross-reference Chromium browser history:
//
//	provider := history.NewChromiumProvider("/path/to/History", nil)
//	result, err := client.SynchronizeHistory(ctx, provider, history.SyncOptions{})
//
// Configuration
//
// The ytwatch command loads settings from multiple sources:
//
//   1. Environment variables (highest priority)
//   2. Config file (ytwatch.yaml or $XDG_CONFIG_HOME/ytwatch/ytwatch.yaml)
//   3. Default values (lowest priority)
//
// Environment variables:
//
//   - YTWATCH_HISTORY_URL: Watch-history page to scrape
//   - YTWATCH_MAX_PAGES: Continuation page cap per sync run
//   - YTWATCH_PAGE_DELAY: Pause between page fetches
//   - YTWATCH_COOLDOWN: Repeat-mark window that does not count a new view
//   - YTWATCH_STORE_DRIVER: Record store driver (sqlite or memory)
//   - YTWATCH_STORE_PATH: SQLite database file
//   - YTWATCH_HISTORY_DB: Chromium History database file
//   - YTWATCH_API_KEY: YouTube Data API key for title backfill
//   - YTWATCH_LOG_LEVEL: debug, info, warn, or error
//   - YTWATCH_METRICS_ADDR: Prometheus listen address (empty = disabled)
//
// Error Handling
//
// All operations return errors that implement standard Go error handling.
//
// Checking for sentinel errors:
//
//	if errors.Is(err, ytwatch.ErrNotFound) {
//		fmt.Println("never watched")
//	}
//
// Extracting wrapped error details:
//
//	var storeErr *ytwatch.StorageError
//	if errors.As(err, &storeErr) {
//		fmt.Printf("store %s failed for %s: %v\n", storeErr.Op, storeErr.ID, storeErr.Err)
//	}
//
// Advanced Usage
//
// For more control, use the sub-packages directly:
//
//   - watch: merge policies and the scrape-driven synchronizer
//   - scrape: page parsing strategies and pagination
//   - history: browser-history cross-referencing and the Chromium reader
//   - importer: chunked bulk import
//   - tracker: live navigation/playback observer
//   - enrich: Data API title backfill
//   - storage: record stores and snapshots
//   - title: title normalization and quality classification
//   - config: configuration management
//
// Example using the scrape package directly:
//
//	parser := scrape.NewParser(nil)
//	page, err := parser.Parse(rawHTML)
//	for _, c := range page.Candidates {
//		fmt.Println(c.VideoID, c.Title)
//	}
package ytwatch
