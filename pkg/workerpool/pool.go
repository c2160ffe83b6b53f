// Package workerpool implements the bounded concurrent OCR worker pool
// described in spec.md §4.4: a dequeue loop gated by a weighted semaphore,
// per-job OCR task spawning, and a periodic maintenance sweep.
package workerpool

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/docpipe/ocrflow/pkg/failures"
	"github.com/docpipe/ocrflow/pkg/metrics"
	"github.com/docpipe/ocrflow/pkg/models"
	"github.com/docpipe/ocrflow/pkg/ocr"
	"github.com/docpipe/ocrflow/pkg/queue"
	"github.com/docpipe/ocrflow/pkg/store"
)

const (
	// DefaultMaxConcurrentJobs bounds in-flight OCR calls process-wide;
	// exceeding it has been observed to starve the DB pool and produce
	// silent empty-text results (spec.md §4.4's backpressure invariant).
	DefaultMaxConcurrentJobs = 15

	emptyQueueSleep  = time.Second
	dbErrorSleep     = 5 * time.Second
	maintenanceEvery = 5 * time.Minute
	staleThreshold   = 10 * time.Minute
	cleanupHorizon   = 7 * 24 * time.Hour
)

// Pool is the bounded worker pool. WorkerID identifies this process for
// the queue's lease column.
type Pool struct {
	queue    *queue.Queue
	store    store.Store
	engine   ocr.Engine
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	sem      *semaphore.Weighted
	capacity int64
	workerID string
}

// Config bundles pool tuning knobs.
type Config struct {
	MaxConcurrentJobs int
	WorkerID          string
}

func New(q *queue.Queue, s store.Store, engine ocr.Engine, m *metrics.Metrics, logger *logrus.Logger, cfg Config) *Pool {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	return &Pool{
		queue:    q,
		store:    s,
		engine:   engine,
		metrics:  m,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		capacity: int64(cfg.MaxConcurrentJobs),
		workerID: cfg.WorkerID,
	}
}

// Run drives the dequeue loop until ctx is canceled. It is intended to run
// in its own goroutine; on cancellation it waits for in-flight permits to
// return before returning, so a shutdown doesn't abandon tasks mid-flight.
func (p *Pool) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = p.sem.Acquire(context.Background(), p.capacity)
			return
		default:
		}

		if p.queue.Paused() {
			p.queue.WaitForWork(ctx, emptyQueueSleep)
			continue
		}

		item, err := p.queue.Dequeue(ctx, p.workerID)
		if err != nil {
			p.logger.WithError(err).Error("dequeue failed")
			sleepOrDone(ctx, dbErrorSleep)
			continue
		}
		if item == nil {
			p.queue.WaitForWork(ctx, emptyQueueSleep)
			continue
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			// ctx canceled while waiting for backpressure: wait for the
			// in-flight jobs, as on the cancellation path above.
			_ = p.sem.Acquire(context.Background(), p.capacity)
			return
		}
		go p.runJob(ctx, item)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// runJob executes one OCR task and always releases its semaphore permit,
// per spec.md §4.4 step 5 (ownership of the permit lives with the task).
func (p *Pool) runJob(ctx context.Context, item *models.QueueItem) {
	defer p.sem.Release(1)
	start := time.Now()
	p.processDocument(ctx, item, start)
}

func (p *Pool) processDocument(ctx context.Context, item *models.QueueItem, start time.Time) {
	doc, err := p.store.GetDocumentByID(ctx, item.DocumentID)
	if err != nil {
		p.logger.WithError(err).WithField("document_id", item.DocumentID).Error("failed to load document for OCR")
		p.fail(ctx, item, err.Error(), models.FailureReasonOther, models.FailureStageOCR)
		return
	}

	lang := ocr.DefaultLanguage

	result, ocrErr := p.engine.Extract(ctx, doc.Path, doc.Mime, lang)
	elapsed := time.Since(start)
	p.metrics.OCRDuration.Observe(elapsed.Seconds())

	if ocrErr != nil {
		reason := models.FailureReasonOther
		if ee, ok := ocr.AsEngineError(ocrErr); ok {
			reason = mapEngineErrorToFailureReason(ee.Code)
		}
		p.metrics.OCRFailuresTotal.WithLabelValues(metrics.SanitizeFailureReason(string(reason))).Inc()
		msg := ocrErr.Error()
		_ = p.store.UpdateDocumentOCR(ctx, doc.ID, nil, nil, nil, nil, models.OCRStatusFailed, &msg)
		p.fail(ctx, item, msg, reason, models.FailureStageOCR)
		return
	}

	if result.Text == "" {
		msg := "empty OCR result"
		p.metrics.OCRFailuresTotal.WithLabelValues(metrics.SanitizeFailureReason(string(models.FailureReasonLowOCRConfidence))).Inc()
		_ = p.store.UpdateDocumentOCR(ctx, doc.ID, nil, nil, nil, nil, models.OCRStatusFailed, &msg)
		p.fail(ctx, item, msg, models.FailureReasonLowOCRConfidence, models.FailureStageOCR)
		return
	}

	confidence := result.Confidence
	words := result.WordCount
	ms := elapsed.Milliseconds()
	if err := p.store.UpdateDocumentOCR(ctx, doc.ID, &result.Text, &confidence, &words, &ms, models.OCRStatusCompleted, nil); err != nil {
		p.logger.WithError(err).Error("failed to persist OCR result")
		p.fail(ctx, item, err.Error(), models.FailureReasonOther, models.FailureStageOCR)
		return
	}
	if err := p.queue.MarkComplete(ctx, item.ID, ms); err != nil {
		p.logger.WithError(err).Error("failed to mark queue item complete")
	}
}

func (p *Pool) fail(ctx context.Context, item *models.QueueItem, msg string, reason models.FailureReason, stage models.FailureStage) {
	if err := p.queue.MarkFailed(ctx, item.ID, msg, reason, stage); err != nil {
		p.logger.WithError(err).Error("failed to mark queue item failed")
	}
}

func mapEngineErrorToFailureReason(code ocr.ErrorCode) models.FailureReason {
	switch code {
	case ocr.ErrTimeout:
		return models.FailureReasonOCRTimeout
	case ocr.ErrOutOfMemory:
		return models.FailureReasonOCRMemoryLimit
	case ocr.ErrLowConfidence:
		return models.FailureReasonLowOCRConfidence
	case ocr.ErrInvalidFormat:
		return models.FailureReasonUnsupportedFormat
	case ocr.ErrPermissionDenied:
		return models.FailureReasonAccessDenied
	default:
		return failures.MapLegacyReason(string(code))
	}
}

// RunMaintenance runs recover_stale/cleanup_completed on a 5 minute tick
// until ctx is canceled, per spec.md §4.4.
func (p *Pool) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(maintenanceEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recovered, cleaned, err := p.queue.RunMaintenance(ctx, staleThreshold, cleanupHorizon)
			if err != nil {
				p.logger.WithError(err).Error("queue maintenance failed")
				continue
			}
			p.logger.WithFields(logrus.Fields{"recovered": recovered, "cleaned": cleaned}).Info("queue maintenance complete")
		}
	}
}
