package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ytwatch"
	"ytwatch/config"
	"ytwatch/enrich"
	"ytwatch/history"
	ythttp "ytwatch/http"
	"ytwatch/importer"
	"ytwatch/scrape"
	"ytwatch/storage"
	"ytwatch/watch"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "sync":
		cmdSync(args)
	case "history":
		cmdHistory(args)
	case "import":
		cmdImport(args)
	case "export":
		cmdExport(args)
	case "lookup":
		cmdLookup(args)
	case "backfill":
		cmdBackfill(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytwatch - YouTube watch-record reconciliation

Usage:
  ytwatch sync [flags]              Scrape the watch-history page into the store
  ytwatch history [flags]           Cross-reference browser history into the store
  ytwatch import [flags] <file>     Import records from a snapshot file
  ytwatch export <file>             Export the store to a snapshot file
  ytwatch lookup <video-id>         Print one stored record
  ytwatch backfill [flags]          Fill missing titles via the Data API
  ytwatch help                      Show this help message

Examples:
  ytwatch sync                                          # Default history page
  ytwatch sync -max-pages 3 -v                          # Shallow, verbose run
  ytwatch history -db ~/.config/chromium/Default/History
  ytwatch history -since 168h -skip-existing            # Last week, new only
  ytwatch import -parallel backup.json                  # Concurrent chunks
  ytwatch lookup dQw4w9WgXcQ
  ytwatch backfill -quota 500                           # Cap API spend

For help on specific command: ytwatch <command> -h
`)
}

func cmdSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	pageURL := fs.String("url", "", "Watch-history page URL (default from config)")
	maxPages := fs.Int("max-pages", 0, "Maximum pages to fetch (0 = config value)")
	storePath := fs.String("store", "", "SQLite store path (default from config)")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytwatch sync [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, logger := loadConfig(*verbose)
	defer logger.Sync()

	if *storePath != "" {
		cfg.Store.Driver = "sqlite"
		cfg.Store.Path = *storePath
	}
	if *maxPages > 0 {
		cfg.Scrape.MaxPages = *maxPages
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	serveMetrics(cfg.Metrics.Addr, logger)

	store := openStore(cfg)
	defer store.Close()

	// Build the rate-limited fetcher from the HTTP section
	httpCfg := ythttp.DefaultConfig()
	httpCfg.Timeout = cfg.HTTP.Timeout.Std()
	httpCfg.UserAgent = cfg.Scrape.UserAgent
	httpCfg.RateLimiter.PageRPS = cfg.HTTP.PageRPS
	httpCfg.RateLimiter.DataAPIRPS = cfg.HTTP.DataAPIRPS
	httpCfg.Retry.MaxRetries = cfg.HTTP.MaxRetries

	// The history page needs a logged-in session to render anything, so
	// fetch through the cookie session when one is configured.
	fetchClient := ythttp.New(httpCfg)
	if cfg.Scrape.CookieFile != "" {
		sess, err := ythttp.NewSessionManager(ythttp.SessionConfig{
			PersistCookies: true,
			CookieFile:     cfg.Scrape.CookieFile,
			UserAgent:      cfg.Scrape.UserAgent,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading session cookies: %v\n", err)
			os.Exit(1)
		}
		fetchClient = sess.GetClient(httpCfg)
	}

	client := ytwatch.New(store, &ytwatch.Options{
		Cooldown:  cfg.Merge.Cooldown.Std(),
		Fetcher:   scrape.ClientFetcher{Client: fetchClient},
		MaxPages:  cfg.Scrape.MaxPages,
		PageDelay: cfg.Scrape.PageDelay.Std(),
		Logger:    logger,
	})

	pageTarget := *pageURL
	if pageTarget == "" {
		pageTarget = cfg.Scrape.HistoryURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Synchronizing watch history from %s...\n", pageTarget)
	res, err := client.Synchronize(ctx, watch.SyncRequest{HistoryURL: pageTarget})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error synchronizing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Processed: %d\n", res.Processed)
	fmt.Printf("New:       %d\n", res.New)
	fmt.Printf("Updated:   %d\n", res.Updated)
	fmt.Printf("Skipped:   %d\n", res.Skipped)
}

func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", "", "Chromium History database path (default from config)")
	since := fs.String("since", "", "How far back to scan, as a duration (e.g. 720h)")
	skipExisting := fs.Bool("skip-existing", false, "Leave records that already exist untouched")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytwatch history [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, logger := loadConfig(false)
	defer logger.Sync()

	if *dbPath != "" {
		cfg.History.DBPath = *dbPath
	}
	if cfg.History.DBPath == "" {
		fmt.Fprintf(os.Stderr, "Error: missing history database path (use -db or set history.db_path)\n")
		os.Exit(1)
	}

	horizon := cfg.History.Horizon.Std()
	if *since != "" {
		d, err := time.ParseDuration(*since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -since: %v (use a duration like 720h)\n", err)
			os.Exit(1)
		}
		horizon = d
	}
	var sinceMs int64
	if horizon > 0 {
		sinceMs = time.Now().Add(-horizon).UnixMilli()
	}

	store := openStore(cfg)
	defer store.Close()

	client := ytwatch.New(store, &ytwatch.Options{
		Cooldown: cfg.Merge.Cooldown.Std(),
		Logger:   logger,
	})
	provider := history.NewChromiumProvider(cfg.History.DBPath, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Cross-referencing %s...\n", cfg.History.DBPath)
	res, err := client.SynchronizeHistory(ctx, provider, history.SyncOptions{
		Since:        sinceMs,
		SkipExisting: *skipExisting,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error cross-referencing history: %v\n", err)
		os.Exit(1)
	}

	if len(res.Records) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VIDEO ID\tTITLE\tVIEWS\tLAST WATCHED")
		for _, r := range res.Records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				r.ID,
				truncate(r.Title, 50),
				r.ViewCount,
				time.UnixMilli(r.LastWatchedAt).Format("2006-01-02 15:04"),
			)
		}
		w.Flush()
	}

	fmt.Fprintf(os.Stderr, "\nProcessed: %d  Created: %d  Updated: %d  Skipped: %d\n",
		res.Processed, res.Created, res.Updated, res.Skipped)
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	parallel := fs.Bool("parallel", false, "Write chunks concurrently")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytwatch import [flags] <file>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing snapshot file\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger := loadConfig(false)
	defer logger.Sync()

	snap, err := storage.ReadSnapshot(argv[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading snapshot: %v\n", err)
		os.Exit(1)
	}

	store := openStore(cfg)
	defer store.Close()

	im := importer.NewImporter(store, &importer.Config{
		ChunkDelay:    cfg.Import.ChunkDelay.Std(),
		ParallelWidth: cfg.Import.ParallelWidth,
		Logger:        logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Importing %d records from %s...\n", len(snap.Records), argv[0])
	onProgress := func(p importer.Progress) {
		fmt.Fprintf(os.Stderr, "\r%d/%d (%d%%)", p.Processed, p.Total, p.Percentage)
	}

	var res *importer.Result
	if *parallel {
		res, err = im.ImportAllParallel(ctx, snap.Records, onProgress)
	} else {
		res, err = im.ImportAll(ctx, snap.Records, onProgress)
	}
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Batch:     %s\n", res.BatchID)
	fmt.Printf("Processed: %d\n", res.Processed)
	fmt.Printf("Chunks:    %d\n", res.Chunks)
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytwatch export <file>\n")
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing output file\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger := loadConfig(false)
	defer logger.Sync()

	store := openStore(cfg)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	snap, err := storage.WriteSnapshot(ctx, store, argv[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Exported %d records to %s\n", len(snap.Records), argv[0])
}

func cmdLookup(args []string) {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytwatch lookup <video-id>\n")
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing video-id\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger := loadConfig(false)
	defer logger.Sync()

	store := openStore(cfg)
	defer store.Close()

	client := ytwatch.New(store, &ytwatch.Options{Logger: logger})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec, err := client.Lookup(ctx, argv[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	displayTitle := rec.Title
	if displayTitle == "" {
		displayTitle = "(untitled)"
	}
	fmt.Printf("Video ID:     %s\n", rec.ID)
	fmt.Printf("Title:        %s\n", displayTitle)
	fmt.Printf("Last watched: %s\n", time.UnixMilli(rec.LastWatchedAt).Format(time.RFC3339))
	fmt.Printf("View count:   %d\n", rec.ViewCount)
}

func cmdBackfill(args []string) {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	apiKey := fs.String("api-key", "", "YouTube Data API key (default from config)")
	quota := fs.Int("quota", 0, "Unit budget for this run (0 = config value)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytwatch backfill [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, logger := loadConfig(false)
	defer logger.Sync()

	if *apiKey != "" {
		cfg.API.Key = *apiKey
	}
	if cfg.API.Key == "" {
		fmt.Fprintf(os.Stderr, "Error: missing API key (use -api-key or YTWATCH_API_KEY)\n")
		os.Exit(1)
	}
	if *quota > 0 {
		cfg.API.DailyQuota = *quota
	}

	store := openStore(cfg)
	defer store.Close()

	svc := watch.NewService(store, &watch.Config{
		Cooldown: cfg.Merge.Cooldown.Std(),
		Logger:   logger,
	})
	bf, err := enrich.NewBackfiller(cfg.API.Key, svc, store, &enrich.Config{
		DailyQuota: cfg.API.DailyQuota,
		Logger:     logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Backfilling titles...\n")
	res, err := bf.Backfill(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error backfilling: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scanned:     %d\n", res.Scanned)
	fmt.Printf("Requested:   %d\n", res.Requested)
	fmt.Printf("Updated:     %d\n", res.Updated)
	fmt.Printf("Quota spent: %d\n", res.QuotaSpent)
	if res.Exhausted {
		fmt.Fprintf(os.Stderr, "Quota budget exhausted before all missing titles were requested.\n")
	}
}

// loadConfig loads layered configuration and builds the process logger.
func loadConfig(verbose bool) (*config.Config, *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	logger, err := cfg.Log.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

// openStore opens the record store named by the store section.
func openStore(cfg *config.Config) storage.Store {
	if cfg.Store.Driver == "memory" {
		return storage.NewMemoryStore()
	}
	store, err := storage.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	return store
}

// serveMetrics exposes the Prometheus counters while the command runs.
func serveMetrics(addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
