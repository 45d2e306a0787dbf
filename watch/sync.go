package watch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ytwatch/metrics"
	"ytwatch/scrape"
	"ytwatch/storage"
)

// DefaultHistoryURL is the page a synchronize run walks.
const DefaultHistoryURL = "https://www.youtube.com/feed/history"

// CandidateSource produces the candidates a synchronize run merges. The
// scrape paginator is the production implementation.
type CandidateSource interface {
	FetchAll(ctx context.Context, pageURL string) ([]scrape.Candidate, scrape.PageStats, error)
}

// SyncRequest configures one synchronize run.
type SyncRequest struct {
	// HistoryURL overrides the watch-history page. Empty means the default.
	HistoryURL string
	// OnProgress, when set, receives a snapshot after every merged
	// candidate.
	OnProgress func(SyncProgress)
}

// SyncProgress is a point-in-time view of a running synchronization.
type SyncProgress struct {
	Processed int
	Total     int
}

// SyncResult summarizes a synchronize run. Records holds only the records
// the run created or changed.
type SyncResult struct {
	// RunID correlates log lines and metrics with this result.
	RunID     string
	Processed int
	New       int
	Updated   int
	Skipped   int
	Records   []storage.VideoRecord
	Pages     scrape.PageStats
}

// Synchronizer merges scraped watch-history candidates into the store.
type Synchronizer struct {
	source CandidateSource
	svc    *Service
	logger *zap.Logger
}

// NewSynchronizer returns a synchronizer feeding svc from source.
func NewSynchronizer(source CandidateSource, svc *Service, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{source: source, svc: svc, logger: logger}
}

// Synchronize walks the watch-history page and merges every candidate via
// Ensure. Scraped pages carry no authoritative timestamps or counts, so
// existing records keep theirs; only titles can improve. A candidate whose
// merge fails is logged and counted as skipped, and the run continues.
func (s *Synchronizer) Synchronize(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	pageURL := req.HistoryURL
	if pageURL == "" {
		pageURL = DefaultHistoryURL
	}
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))
	logger.Info("watch history sync starting", zap.String("url", pageURL))

	cands, pages, err := s.source.FetchAll(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("watch: fetching history pages: %w", err)
	}

	res := &SyncResult{RunID: runID, Pages: pages}
	for _, c := range cands {
		outcome, err := s.svc.Ensure(ctx, EnsureRequest{VideoID: c.VideoID, Title: c.Title})
		res.Processed++
		switch {
		case err != nil:
			logger.Warn("candidate merge failed",
				zap.String("video_id", c.VideoID),
				zap.Error(err))
			res.Skipped++
		case outcome.Created:
			res.New++
			res.Records = append(res.Records, outcome.Record)
			metrics.RecordsCreated.WithLabelValues("scrape").Inc()
		case outcome.Updated:
			res.Updated++
			res.Records = append(res.Records, outcome.Record)
			metrics.RecordsUpdated.WithLabelValues("scrape").Inc()
		}
		if req.OnProgress != nil {
			req.OnProgress(SyncProgress{Processed: res.Processed, Total: len(cands)})
		}
	}

	logger.Info("watch history sync complete",
		zap.Int("processed", res.Processed),
		zap.Int("new", res.New),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("pages", pages.PagesFetched),
		zap.Bool("truncated", pages.Truncated))
	return res, nil
}
