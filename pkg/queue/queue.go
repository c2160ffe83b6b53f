// Package queue wraps store.Store's queue operations with the process-local
// pause flag, the wake-up notification channel, and the priority-assignment
// policy described in spec.md §4.3.
package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/docpipe/ocrflow/pkg/models"
	"github.com/docpipe/ocrflow/pkg/store"
	"github.com/docpipe/ocrflow/pkg/validation"
)

// Queue is the durable priority job queue. It delegates persistence to a
// store.Store and adds the behavior the contract requires beyond plain SQL:
// a pause flag workers observe between claims, and a channel woken by
// LISTEN/NOTIFY so workers don't rely purely on 1s polling.
type Queue struct {
	store  store.Store
	paused atomic.Bool
	wake   chan struct{}
	valid  *validation.QueueItemValidator
}

func New(s store.Store) *Queue {
	return &Queue{store: s, wake: make(chan struct{}, 1), valid: validation.NewQueueItemValidator()}
}

// Pause stops new dequeues; in-flight items continue to completion.
func (q *Queue) Pause() { q.paused.Store(true) }

// Resume allows dequeues to continue.
func (q *Queue) Resume() { q.paused.Store(false) }

// Paused reports the current pause state.
func (q *Queue) Paused() bool { return q.paused.Load() }

// Wake notifies any blocked WaitForWork call that new work may be
// available. Called after Enqueue/EnqueueBatch, and by the LISTEN/NOTIFY
// listener in pkg/queue/listener.go when another process enqueues work.
func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// WaitForWork blocks until Wake is called, the context is canceled, or
// timeout elapses, whichever comes first. The worker pool's dequeue loop
// uses this instead of an unconditional sleep so a freshly enqueued item
// can be claimed immediately rather than waiting out the poll interval.
func (q *Queue) WaitForWork(ctx context.Context, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-q.wake:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Enqueue inserts one pending item, applying the default size-based
// priority policy when priority is non-positive.
func (q *Queue) Enqueue(ctx context.Context, documentID uuid.UUID, priority int, size int64) (*models.QueueItem, error) {
	if priority <= 0 {
		priority = models.PriorityForSize(size)
	}
	if verr := q.valid.Validate(models.NewQueueItem(documentID, priority, size, models.DefaultMaxAttempts)); verr != nil {
		return nil, verr
	}
	item, err := q.store.Enqueue(ctx, documentID, priority, size)
	if err != nil {
		return nil, err
	}
	q.Wake()
	return item, nil
}

// EnqueueBatch inserts items in one all-or-nothing transaction.
func (q *Queue) EnqueueBatch(ctx context.Context, items []*models.QueueItem) error {
	for _, item := range items {
		if verr := q.valid.Validate(item); verr != nil {
			return verr
		}
	}
	if err := q.store.EnqueueBatch(ctx, items); err != nil {
		return err
	}
	q.Wake()
	return nil
}

// Dequeue claims the next candidate, or (nil, nil) if the queue is paused
// or empty.
func (q *Queue) Dequeue(ctx context.Context, workerID string) (*models.QueueItem, error) {
	if q.Paused() {
		return nil, nil
	}
	return q.store.Dequeue(ctx, workerID)
}

func (q *Queue) MarkComplete(ctx context.Context, itemID uuid.UUID, processingMS int64) error {
	return q.store.MarkComplete(ctx, itemID, processingMS)
}

func (q *Queue) MarkFailed(ctx context.Context, itemID uuid.UUID, errMsg string, reason models.FailureReason, stage models.FailureStage) error {
	return q.store.MarkFailed(ctx, itemID, errMsg, reason, stage)
}

// RunMaintenance implements the maintenance pass from
// §4.3/§4.4: recover stale processing rows, then delete old completed rows.
func (q *Queue) RunMaintenance(ctx context.Context, staleThreshold, cleanupHorizon time.Duration) (recovered, cleaned int64, err error) {
	recovered, err = q.store.RecoverStale(ctx, staleThreshold)
	if err != nil {
		return 0, 0, err
	}
	cleaned, err = q.store.CleanupCompleted(ctx, cleanupHorizon)
	if err != nil {
		return recovered, 0, err
	}
	return recovered, cleaned, nil
}

func (q *Queue) Stats(ctx context.Context) (store.QueueStats, error) {
	return q.store.QueueStatistics(ctx)
}

// RequeueFailed resets every failed item with attempts remaining back to
// pending and wakes any waiting worker. Operators call this via the admin
// surface after fixing whatever caused a batch of failures.
func (q *Queue) RequeueFailed(ctx context.Context) (int64, error) {
	n, err := q.store.RequeueFailed(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.Wake()
	}
	return n, nil
}
