// Package importer replays externally supplied record sets through the
// store in size-adaptive chunks. Imported data is trusted: every record is
// upserted as-is through the store's batch path, with none of the title
// gating the watch policies apply.
package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ytwatch/metrics"
	"ytwatch/storage"
)

const (
	// DefaultChunkDelay is the pause between sequential chunks.
	DefaultChunkDelay = 50 * time.Millisecond
	// DefaultParallelWidth caps concurrent chunks in ImportAllParallel.
	DefaultParallelWidth = 4
)

// Chunk sizing thresholds. Larger imports get smaller chunks so no single
// store write stalls the caller for long.
const (
	hugeTotal   = 50_000
	largeTotal  = 10_000
	mediumTotal = 1_000

	hugeChunk   = 500
	largeChunk  = 1_000
	mediumChunk = 2_500
)

// chunkSize picks the per-chunk record count for a dataset of the given
// total. Datasets below the smallest threshold import as a single batch.
func chunkSize(total int) int {
	switch {
	case total >= hugeTotal:
		return hugeChunk
	case total >= largeTotal:
		return largeChunk
	case total >= mediumTotal:
		return mediumChunk
	default:
		return total
	}
}

func chunkRecords(records []storage.VideoRecord, size int) [][]storage.VideoRecord {
	if size <= 0 || size >= len(records) {
		return [][]storage.VideoRecord{records}
	}
	chunks := make([][]storage.VideoRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// Progress describes how far an import run has gotten. Percentage is an
// integer 0..100 and never decreases within a run.
type Progress struct {
	Processed  int
	Total      int
	Percentage int
}

// Result summarizes a finished or aborted import run. When a chunk write
// fails, Processed and Chunks reflect the chunks already written; those
// records stay imported.
type Result struct {
	// BatchID uniquely identifies the run in logs.
	BatchID string
	// Processed is the number of records written.
	Processed int
	// Chunks is the number of chunk writes that completed.
	Chunks int
}

// Config adjusts importer behavior.
type Config struct {
	// ChunkDelay is the pause between sequential chunks. Zero means
	// DefaultChunkDelay; negative disables the pause.
	ChunkDelay time.Duration
	// ParallelWidth caps concurrent chunks in ImportAllParallel. Zero or
	// negative means DefaultParallelWidth.
	ParallelWidth int
	// Logger receives run lifecycle logs.
	Logger *zap.Logger
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		ChunkDelay:    DefaultChunkDelay,
		ParallelWidth: DefaultParallelWidth,
		Logger:        zap.NewNop(),
	}
}

// Importer feeds record batches through a store.
type Importer struct {
	store         storage.Store
	chunkDelay    time.Duration
	parallelWidth int
	logger        *zap.Logger
}

// NewImporter returns an Importer over store. A nil cfg, or zero fields in
// it, fall back to DefaultConfig values.
func NewImporter(store storage.Store, cfg *Config) *Importer {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	im := &Importer{
		store:         store,
		chunkDelay:    cfg.ChunkDelay,
		parallelWidth: cfg.ParallelWidth,
		logger:        cfg.Logger,
	}
	if im.chunkDelay == 0 {
		im.chunkDelay = def.ChunkDelay
	}
	if im.parallelWidth <= 0 {
		im.parallelWidth = def.ParallelWidth
	}
	if im.logger == nil {
		im.logger = def.Logger
	}
	return im
}

// ImportAll writes records through the store in strictly sequential chunks,
// pausing between chunks and reporting progress after each. A chunk failure
// aborts the remaining chunks and is returned wrapped with the chunk index;
// the returned Result still counts the chunks that landed.
func (im *Importer) ImportAll(ctx context.Context, records []storage.VideoRecord, onProgress func(Progress)) (*Result, error) {
	res := &Result{BatchID: uuid.NewString()}
	total := len(records)
	log := im.logger.With(zap.String("batch_id", res.BatchID))
	if total == 0 {
		log.Info("nothing to import")
		return res, nil
	}

	chunks := chunkRecords(records, chunkSize(total))
	log.Info("import started",
		zap.Int("records", total),
		zap.Int("chunks", len(chunks)))

	for i, chunk := range chunks {
		if i > 0 {
			if err := sleepCtx(ctx, im.chunkDelay); err != nil {
				return res, err
			}
		}
		if err := im.store.ImportMany(ctx, chunk); err != nil {
			return res, fmt.Errorf("importer: chunk %d of %d: %w", i+1, len(chunks), err)
		}
		res.Processed += len(chunk)
		res.Chunks++
		metrics.ImportChunks.Inc()
		metrics.ImportRecords.Add(float64(len(chunk)))
		if onProgress != nil {
			onProgress(Progress{
				Processed:  res.Processed,
				Total:      total,
				Percentage: res.Processed * 100 / total,
			})
		}
	}

	log.Info("import complete",
		zap.Int("records", res.Processed),
		zap.Int("chunks", res.Chunks))
	return res, nil
}

// ImportAllParallel writes the same chunking as ImportAll but dispatches up
// to ParallelWidth chunks at a time. Progress is aggregated as chunks
// settle: processed counts are exact, completion order is not. Use it only
// when records partition into disjoint ids or last-write-wins is
// acceptable.
func (im *Importer) ImportAllParallel(ctx context.Context, records []storage.VideoRecord, onProgress func(Progress)) (*Result, error) {
	res := &Result{BatchID: uuid.NewString()}
	total := len(records)
	log := im.logger.With(zap.String("batch_id", res.BatchID))
	if total == 0 {
		log.Info("nothing to import")
		return res, nil
	}

	chunks := chunkRecords(records, chunkSize(total))
	log.Info("parallel import started",
		zap.Int("records", total),
		zap.Int("chunks", len(chunks)),
		zap.Int("width", im.parallelWidth))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.parallelWidth)
	var mu sync.Mutex

	for i, chunk := range chunks {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err := im.store.ImportMany(gctx, chunk); err != nil {
				return fmt.Errorf("importer: chunk %d of %d: %w", i+1, len(chunks), err)
			}
			metrics.ImportChunks.Inc()
			metrics.ImportRecords.Add(float64(len(chunk)))

			mu.Lock()
			defer mu.Unlock()
			res.Processed += len(chunk)
			res.Chunks++
			if onProgress != nil {
				onProgress(Progress{
					Processed:  res.Processed,
					Total:      total,
					Percentage: res.Processed * 100 / total,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	log.Info("parallel import complete",
		zap.Int("records", res.Processed),
		zap.Int("chunks", res.Chunks))
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
