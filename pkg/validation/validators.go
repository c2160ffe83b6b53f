package validation

import (
	"strconv"
	"strings"

	"github.com/docpipe/ocrflow/pkg/models"
)

// field-length ceilings enforced here only; the corresponding schema
// columns are TEXT with no length constraint.
const (
	maxOwnerLen    = 255
	maxFilenameLen = 512
	maxErrorLen    = 10000
	maxSourceName  = 255
)

func requiredField(v *ValidationError, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddFieldError(field, "is required")
		return false
	}
	return true
}

func maxLenField(v *ValidationError, field, value string, max int) {
	if len(value) > max {
		v.AddFieldError(field, "must be at most "+strconv.Itoa(max)+" characters")
	}
}

// DocumentValidator validates models.Document instances; the Ingestor
// applies it before the store's create_document operation.
type DocumentValidator struct{}

func NewDocumentValidator() *DocumentValidator { return &DocumentValidator{} }

func (v *DocumentValidator) Validate(doc *models.Document) *ValidationError {
	if doc == nil {
		err := NewValidationError("document", "document cannot be nil")
		return err
	}
	verr := NewValidationError("document", "validation failed")

	if requiredField(verr, "owner", doc.Owner) {
		maxLenField(verr, "owner", doc.Owner, maxOwnerLen)
	}
	if requiredField(verr, "filename", doc.Filename) {
		maxLenField(verr, "filename", doc.Filename, maxFilenameLen)
	}
	requiredField(verr, "path", doc.Path)

	if doc.Size < 0 {
		verr.AddFieldError("size", "must be non-negative")
	}
	// Enum membership, the completed/failed invariants, and the confidence
	// range are all enforced by Document.Validate itself; surface any
	// violation under a single field rather than re-deriving it here.
	if err := doc.Validate(); err != nil {
		verr.AddFieldError("invariant", err.Error())
	}

	if len(verr.FieldErrors) == 0 {
		return nil
	}
	return verr
}

// QueueItemValidator validates models.QueueItem instances before enqueue.
type QueueItemValidator struct{}

func NewQueueItemValidator() *QueueItemValidator { return &QueueItemValidator{} }

func (v *QueueItemValidator) Validate(item *models.QueueItem) *ValidationError {
	if item == nil {
		return NewValidationError("queue_item", "queue item cannot be nil")
	}
	verr := NewValidationError("queue_item", "validation failed")

	if !item.Status.Valid() {
		verr.AddFieldError("status", "must be one of pending, processing, completed, failed")
	}
	if item.Priority < 0 || item.Priority > 10 {
		verr.AddFieldError("priority", "must be between 0 and 10")
	}
	if item.Attempts < 0 {
		verr.AddFieldError("attempts", "must be non-negative")
	}
	if item.MaxAttempts <= 0 {
		verr.AddFieldError("max_attempts", "must be positive")
	}
	if item.FileSize < 0 {
		verr.AddFieldError("file_size", "must be non-negative")
	}

	if len(verr.FieldErrors) == 0 {
		return nil
	}
	return verr
}

// SourceValidator validates models.Source instances before they are
// persisted by the store's CreateSource.
type SourceValidator struct{}

func NewSourceValidator() *SourceValidator { return &SourceValidator{} }

func (v *SourceValidator) Validate(src *models.Source) *ValidationError {
	if src == nil {
		return NewValidationError("source", "source cannot be nil")
	}
	verr := NewValidationError("source", "validation failed")

	if requiredField(verr, "owner", src.Owner) {
		maxLenField(verr, "owner", src.Owner, maxOwnerLen)
	}
	if requiredField(verr, "name", src.Name) {
		maxLenField(verr, "name", src.Name, maxSourceName)
	}
	if !src.Type.Valid() {
		verr.AddFieldError("type", "must be one of webdav, local_folder, s3")
	}
	if !src.Status.Valid() {
		verr.AddFieldError("status", "must be one of idle, syncing, error")
	}
	if src.AutoSync && src.SyncIntervalMinutes <= 0 {
		verr.AddFieldError("sync_interval_minutes", "must be positive when auto_sync is enabled")
	}

	switch src.Type {
	case models.SourceTypeWebDAV:
		if src.Config.WebDAV == nil {
			verr.AddFieldError("config", "webdav config is required for type webdav")
		}
	case models.SourceTypeLocalFolder:
		if src.Config.LocalFolder == nil {
			verr.AddFieldError("config", "local_folder config is required for type local_folder")
		}
	case models.SourceTypeS3:
		if src.Config.S3 == nil {
			verr.AddFieldError("config", "s3 config is required for type s3")
		}
	}

	if len(verr.FieldErrors) == 0 {
		return nil
	}
	return verr
}

// FailureRecordValidator validates models.FailureRecord instances before
// they are persisted.
type FailureRecordValidator struct{}

func NewFailureRecordValidator() *FailureRecordValidator { return &FailureRecordValidator{} }

func (v *FailureRecordValidator) Validate(f *models.FailureRecord) *ValidationError {
	if f == nil {
		return NewValidationError("failure_record", "failure record cannot be nil")
	}
	verr := NewValidationError("failure_record", "validation failed")

	if requiredField(verr, "owner", f.Owner) {
		maxLenField(verr, "owner", f.Owner, maxOwnerLen)
	}
	if requiredField(verr, "filename", f.Filename) {
		maxLenField(verr, "filename", f.Filename, maxFilenameLen)
	}
	if !f.FailureReason.Valid() {
		verr.AddFieldError("failure_reason", "must be one of the recognized failure reasons")
	}
	if !f.FailureStage.Valid() {
		verr.AddFieldError("failure_stage", "must be one of ingestion, validation, ocr, storage, processing, sync")
	}
	if f.RetryCount < 0 {
		verr.AddFieldError("retry_count", "must be non-negative")
	}
	maxLenField(verr, "error_message", f.ErrorMessage, maxErrorLen)

	if len(verr.FieldErrors) == 0 {
		return nil
	}
	return verr
}
