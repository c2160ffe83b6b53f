package ingest

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/docpipe/ocrflow/pkg/models"
)

const (
	// DefaultIOConcurrency is the default size of the bulk walk's read
	// semaphore.
	DefaultIOConcurrency = 50
	// DefaultBatchSize is the enqueue_batch size during a bulk walk.
	DefaultBatchSize = 1000
)

// BulkConfig tunes a bulk directory ingest.
type BulkConfig struct {
	AllowedExtensions map[string]struct{} // e.g. {".pdf": {}, ".png": {}}; nil means allow all
	IOConcurrency     int
	BatchSize         int
	Owner             string
	DedupPolicy       models.DedupPolicy
	SourceTag         string
}

// BulkResult summarizes a completed bulk ingest.
type BulkResult struct {
	FilesSeen      int
	FilesIngested  int
	FilesSkipped   int
	FilesErrored   int
}

// IngestDirectory walks root recursively, ingesting every file whose
// extension is allowed, and batching successfully-created documents into
// cfg.BatchSize-sized queue.EnqueueBatch calls. Files are read and ingested
// one at a time, in walk order: each file's permit from the
// cfg.IOConcurrency-sized semaphore is released before the next file
// starts, so reads do not run concurrently. Progress is logged at batch
// boundaries.
func (ing *Ingestor) IngestDirectory(ctx context.Context, root string, cfg BulkConfig) (BulkResult, error) {
	if cfg.IOConcurrency <= 0 {
		cfg.IOConcurrency = DefaultIOConcurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	sem := semaphore.NewWeighted(int64(cfg.IOConcurrency))
	result := BulkResult{}
	var batch []*models.QueueItem

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ing.queue.EnqueueBatch(ctx, batch); err != nil {
			return err
		}
		ing.logger.WithField("batch_size", len(batch)).Info("bulk ingest batch enqueued")
		batch = batch[:0]
		return nil
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.FilesErrored++
			return nil //nolint:nilerr // one bad entry must not abort the walk
		}
		if d.IsDir() {
			return nil
		}
		if cfg.AllowedExtensions != nil {
			if _, ok := cfg.AllowedExtensions[filepath.Ext(path)]; !ok {
				return nil
			}
		}
		result.FilesSeen++

		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer sem.Release(1)

		content, err := os.ReadFile(path)
		if err != nil {
			result.FilesErrored++
			ing.logger.WithError(err).WithField("path", path).Warn("bulk ingest failed to read file")
			return nil
		}

		info, statErr := d.Info()
		fi := FileInfo{Filename: filepath.Base(path)}
		if statErr == nil {
			modTime := info.ModTime()
			fi.OriginalModifiedAt = &modTime
		}

		outcome, err := ing.IngestFromFileInfoNoEnqueue(ctx, fi, content, cfg.Owner, cfg.DedupPolicy, cfg.SourceTag)
		if err != nil {
			result.FilesErrored++
			ing.logger.WithError(err).WithField("path", path).Warn("bulk ingest failed")
			return nil
		}

		switch outcome.Kind {
		case models.IngestionResultCreated:
			result.FilesIngested++
			batch = append(batch, models.NewQueueItem(outcome.Document.ID, models.PriorityForSize(outcome.Document.Size), outcome.Document.Size, models.DefaultMaxAttempts))
			if len(batch) >= cfg.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		default:
			result.FilesSkipped++
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if err := flush(); err != nil {
		return result, err
	}
	return result, nil
}

// MonitorProgress polls queue.Stats until pending+processing reaches zero
// or ctx is canceled, sleeping interval between polls. Callers that don't
// want to block on OCR completion should run this in its own goroutine.
func (ing *Ingestor) MonitorProgress(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := ing.store.QueueStatistics(ctx)
			if err != nil {
				return err
			}
			if stats.Pending+stats.Processing == 0 {
				return nil
			}
		}
	}
}
