// Package store exposes the typed relational operations the rest of the
// pipeline is built against: documents, the priority queue, the directory
// tree tracker, sources, and the failure ledger. All multi-row operations
// run inside a transaction that rolls back on any error.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/docpipe/ocrflow/pkg/models"
)

// DeletePartition is the outcome of bulk_delete_documents: the IDs that were
// deleted, and the IDs that were rejected (not found, or owned by someone
// else and the caller lacks cross-user authority).
type DeletePartition struct {
	Deleted []uuid.UUID
	Failed  []uuid.UUID
}

// QueueStats mirrors the queue contract's stats() operation.
type QueueStats struct {
	Pending              int64
	Processing           int64
	Failed               int64
	CompletedToday       int64
	AvgWaitMinutes       *float64
	OldestPendingMinutes *float64
}

// Store is the full set of operations required by spec.md §4.1, §4.3, and
// §4.6. A single Postgres-backed implementation lives in postgres.go;
// callers depend on this interface so the worker pool, ingestor, and
// scheduler can be tested against a fake.
type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) (*models.Document, error)
	GetDocumentByUserAndHash(ctx context.Context, owner, hash string) (*models.Document, error)
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateDocumentOCR(ctx context.Context, id uuid.UUID, text *string, confidence *float64, words *int, ms *int64, status models.OCRStatus, ocrErr *string) error
	BulkDeleteDocuments(ctx context.Context, ids []uuid.UUID, owner string, isAdmin bool) (DeletePartition, error)

	Enqueue(ctx context.Context, documentID uuid.UUID, priority int, size int64) (*models.QueueItem, error)
	EnqueueBatch(ctx context.Context, items []*models.QueueItem) error
	Dequeue(ctx context.Context, workerID string) (*models.QueueItem, error)
	MarkComplete(ctx context.Context, itemID uuid.UUID, processingMS int64) error
	MarkFailed(ctx context.Context, itemID uuid.UUID, errMsg string, reason models.FailureReason, stage models.FailureStage) error
	RecoverStale(ctx context.Context, maxAge time.Duration) (int64, error)
	CleanupCompleted(ctx context.Context, olderThan time.Duration) (int64, error)
	RequeueFailed(ctx context.Context) (int64, error)
	QueueStatistics(ctx context.Context) (QueueStats, error)

	BulkUpsertDirectories(ctx context.Context, nodes []models.DirectoryNode) error
	SyncDirectories(ctx context.Context, owner, root string, nodes []models.DirectoryNode) error

	ResetRunningSyncs(ctx context.Context) (int64, error)
	ResetRunningWebDAVSyncs(ctx context.Context) (int64, error)

	KnownDirectoriesUnder(ctx context.Context, owner, root string) ([]models.DirectoryNode, error)

	CreateSource(ctx context.Context, src *models.Source) (*models.Source, error)
	ListEnabledSources(ctx context.Context) ([]models.Source, error)
	GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error)
	UpdateSourceStatus(ctx context.Context, id uuid.UUID, status models.SourceStatus, lastError *string) error
	RecordSyncResult(ctx context.Context, id uuid.UUID, filesSynced, bytesTransferred int64, syncedAt time.Time) error

	CreateFailureRecord(ctx context.Context, rec *models.FailureRecord) error
	CreateIgnoredFile(ctx context.Context, f *models.IgnoredFile) error

	Ping(ctx context.Context) error
}

// ErrDuplicateHash is returned by CreateDocument when (owner, content_hash)
// already has a row.
type ErrDuplicateHash struct {
	Owner string
	Hash  string
}

func (e *ErrDuplicateHash) Error() string {
	return "duplicate content hash for owner " + e.Owner
}

// ErrNotFound is returned when a single-row lookup finds nothing.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return e.Resource + " " + e.ID + " not found"
}
