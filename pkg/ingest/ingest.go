// Package ingest implements the Ingestor described in spec.md §4.5: the
// size gate, content hashing, dedup resolution, storage persistence, and
// document creation pipeline shared by every ingestion source (HTTP
// upload, filesystem watcher, bulk directory walk, WebDAV sync).
package ingest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docpipe/ocrflow/pkg/dedup"
	"github.com/docpipe/ocrflow/pkg/models"
	"github.com/docpipe/ocrflow/pkg/queue"
	"github.com/docpipe/ocrflow/pkg/storage"
	"github.com/docpipe/ocrflow/pkg/store"
	"github.com/docpipe/ocrflow/pkg/validation"
)

// ErrFileTooLarge is returned by the size gate, before any hashing happens
// or any document is persisted. The Ingestor writes a FailureRecord with
// FailureReasonFileTooLarge before returning it.
var ErrFileTooLarge = errors.New("file exceeds maximum ingest size")

// FileInfo carries the metadata an ingestion source has already observed
// about a file, independent of its content.
type FileInfo struct {
	Filename           string
	Mime               string
	OriginalCreatedAt  *time.Time
	OriginalModifiedAt *time.Time
}

// Ingestor wires the dedup index, storage driver, and store together.
type Ingestor struct {
	store     store.Store
	dedup     *dedup.Index
	storage   storage.Driver
	queue     *queue.Queue
	logger    *logrus.Logger
	docValid  *validation.DocumentValidator
	failValid *validation.FailureRecordValidator
}

func New(s store.Store, storageDriver storage.Driver, q *queue.Queue, logger *logrus.Logger) *Ingestor {
	return &Ingestor{
		store:     s,
		dedup:     dedup.NewIndex(s),
		storage:   storageDriver,
		queue:     q,
		logger:    logger,
		docValid:  validation.NewDocumentValidator(),
		failValid: validation.NewFailureRecordValidator(),
	}
}

// recordFailure persists a FailureRecord for a file that never became a
// Document (rejected by the size gate, or any other pre-persistence
// rejection). Validation failures here are logged, not returned, since the
// caller's own error already explains what went wrong to them.
func (ing *Ingestor) recordFailure(ctx context.Context, owner, filename string, reason models.FailureReason, stage models.FailureStage, message string) {
	rec := &models.FailureRecord{
		ID:            uuid.New(),
		Owner:         owner,
		Filename:      filename,
		FailureReason: reason,
		FailureStage:  stage,
		ErrorMessage:  message,
	}
	if verr := ing.failValid.Validate(rec); verr != nil {
		ing.logger.WithField("errors", verr.FieldErrors).Warn("failure record failed validation, not persisted")
		return
	}
	if err := ing.store.CreateFailureRecord(ctx, rec); err != nil {
		ing.logger.WithError(err).Warn("failed to persist failure record")
	}
}

// recordIgnored persists an IgnoredFile row for content resolved under
// DedupPolicyTrackAsDuplicate: the payload is intentionally not stored, but
// the fact that it was seen again is, per spec.md §4.2.
func (ing *Ingestor) recordIgnored(ctx context.Context, owner, hash, filename string) {
	f := &models.IgnoredFile{
		Owner:       owner,
		ContentHash: hash,
		SourcePath:  filename,
	}
	if err := ing.store.CreateIgnoredFile(ctx, f); err != nil {
		ing.logger.WithError(err).Warn("failed to persist ignored file")
	}
}

// IngestFromFileInfo runs the seven-step pipeline from spec.md §4.5 for one
// file and returns the typed outcome. sourceTag identifies the ingestion
// source (e.g. "upload", "watcher:<source-id>", "bulk:<source-id>") and is
// recorded in SourceMetadata for audit purposes; it does not affect the
// document's SourceType/SourceID, which this pipeline leaves unset (FileInfo
// has no field for them). A newly created document is enqueued immediately. Bulk callers
// that batch their own enqueue_batch call should use
// IngestFromFileInfoNoEnqueue instead, to avoid double-enqueuing.
func (ing *Ingestor) IngestFromFileInfo(ctx context.Context, fi FileInfo, content []byte, owner string, policy models.DedupPolicy, sourceTag string) (models.IngestionResult, error) {
	return ing.ingestFromFileInfo(ctx, fi, content, owner, policy, sourceTag, true)
}

// IngestFromFileInfoNoEnqueue runs the same pipeline but never enqueues the
// resulting document itself, leaving that to the caller (e.g. IngestDirectory's
// own batched EnqueueBatch call).
func (ing *Ingestor) IngestFromFileInfoNoEnqueue(ctx context.Context, fi FileInfo, content []byte, owner string, policy models.DedupPolicy, sourceTag string) (models.IngestionResult, error) {
	return ing.ingestFromFileInfo(ctx, fi, content, owner, policy, sourceTag, false)
}

func (ing *Ingestor) ingestFromFileInfo(ctx context.Context, fi FileInfo, content []byte, owner string, policy models.DedupPolicy, sourceTag string, enqueue bool) (models.IngestionResult, error) {
	size := int64(len(content))
	if !dedup.SizeGate(size, dedup.MaxIngestSize) {
		ing.recordFailure(ctx, owner, fi.Filename, models.FailureReasonFileTooLarge, models.FailureStageIngestion,
			ErrFileTooLarge.Error())
		return models.IngestionResult{}, ErrFileTooLarge
	}

	hash := dedup.HashContent(content)

	existing, err := ing.dedup.Lookup(ctx, owner, hash)
	if err != nil {
		return models.IngestionResult{}, err
	}
	if result, shouldPersist := dedup.Resolve(policy, existing); !shouldPersist {
		if policy == models.DedupPolicyTrackAsDuplicate {
			ing.recordIgnored(ctx, owner, hash, fi.Filename)
		}
		return *result, nil
	}

	path, err := ing.storage.Put(ctx, owner, fi.Filename, content)
	if err != nil {
		return models.IngestionResult{}, err
	}

	// Best-effort content sniffing: prefer what the bytes actually look
	// like over what the caller claims, but DetectContentType's generic
	// fallback ("application/octet-stream") is less useful than a
	// caller-supplied Mime when one was given.
	mime := http.DetectContentType(content)
	if mime == "application/octet-stream" && fi.Mime != "" {
		mime = fi.Mime
	}

	doc := &models.Document{
		Owner:              owner,
		Filename:           fi.Filename,
		Path:               path,
		Size:               size,
		Mime:               mime,
		ContentHash:        &hash,
		OCRStatus:          models.OCRStatusPending,
		SourceMetadata:     map[string]interface{}{"source_tag": sourceTag},
		OriginalCreatedAt:  fi.OriginalCreatedAt,
		OriginalModifiedAt: fi.OriginalModifiedAt,
	}

	if verr := ing.docValid.Validate(doc); verr != nil {
		ing.recordFailure(ctx, owner, fi.Filename, models.FailureReasonInvalidStructure, models.FailureStageValidation, verr.Error())
		return models.IngestionResult{}, verr
	}

	created, err := ing.store.CreateDocument(ctx, doc)
	if err != nil {
		var dupErr *store.ErrDuplicateHash
		if errors.As(err, &dupErr) {
			// Race: another request created the same (owner, hash) row
			// between our lookup and our insert. Re-resolve the existing
			// row against the caller's policy rather than surfacing a 500.
			raced, lookupErr := ing.dedup.Lookup(ctx, owner, hash)
			if lookupErr != nil {
				return models.IngestionResult{}, lookupErr
			}
			if raced == nil {
				return models.IngestionResult{}, dupErr
			}
			result, _ := dedup.Resolve(policy, raced)
			if policy == models.DedupPolicyTrackAsDuplicate {
				ing.recordIgnored(ctx, owner, hash, fi.Filename)
			}
			return *result, nil
		}
		return models.IngestionResult{}, err
	}

	if enqueue {
		if _, err := ing.queue.Enqueue(ctx, created.ID, models.PriorityForSize(size), size); err != nil {
			ing.logger.WithError(err).WithField("document_id", created.ID).Error("failed to enqueue newly ingested document")
		}
	}

	return models.Created(created), nil
}
