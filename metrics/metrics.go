// Package metrics exposes Prometheus instrumentation for the watch-record
// reconciliation pipeline. Counters are registered on the default registry;
// serve them with promhttp wherever the process exposes HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts watch-history pages retrieved, continuation
	// requests included.
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytwatch_pages_fetched_total",
		Help: "Watch-history pages fetched, including continuation requests",
	})

	// PaginationTruncated counts runs cut short by a failed fetch.
	PaginationTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytwatch_pagination_truncated_total",
		Help: "Pagination runs that returned partial results after a fetch failure",
	})

	// ParseStrategyHits counts pages won by each extraction strategy.
	ParseStrategyHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytwatch_parse_strategy_hits_total",
		Help: "Pages successfully parsed, by extraction strategy",
	}, []string{"strategy"})

	// CandidatesExtracted counts candidates that survived validation and
	// per-page dedup.
	CandidatesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytwatch_candidates_extracted_total",
		Help: "Valid candidates extracted from scraped pages",
	})

	// RecordsCreated counts new store records, by producing pipeline.
	RecordsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytwatch_records_created_total",
		Help: "Watch records created, by producer",
	}, []string{"producer"})

	// RecordsUpdated counts merges that changed an existing record.
	RecordsUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytwatch_records_updated_total",
		Help: "Watch records updated, by producer",
	}, []string{"producer"})

	// MarksCooldownSkipped counts view marks that landed inside the
	// double-count window and advanced the timestamp only.
	MarksCooldownSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytwatch_marks_cooldown_skipped_total",
		Help: "View marks that advanced the timestamp but not the view count",
	})

	// HistoryEntriesProcessed counts browser-history entries examined.
	HistoryEntriesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytwatch_history_entries_processed_total",
		Help: "Browser history entries examined by the cross-referencer",
	})

	// HistoryEntriesSkipped counts history entries that did not merge,
	// split by reason.
	HistoryEntriesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytwatch_history_entries_skipped_total",
		Help: "Browser history entries skipped, by reason",
	}, []string{"reason"})

	// ImportChunks counts bulk-import chunks committed to the store.
	ImportChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytwatch_import_chunks_total",
		Help: "Bulk import chunks written to the store",
	})

	// ImportRecords counts records written by the bulk importer.
	ImportRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytwatch_import_records_total",
		Help: "Records written by the bulk importer",
	})

	// BackfillCalls counts Data API list calls made by the title backfiller.
	BackfillCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytwatch_backfill_api_calls_total",
		Help: "YouTube Data API calls made to backfill titles",
	})
)
