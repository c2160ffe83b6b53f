package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is a single ingested file and its OCR outcome. OCR fields are
// mutated only by the Worker Pool; every other field is set once by the
// Ingestor at creation time and never touched again.
type Document struct {
	ID       uuid.UUID
	Owner    string
	Filename string
	Path     string
	Size     int64
	Mime     string

	ContentHash *string // lowercase hex SHA-256, unique per Owner when present

	OCRStatus         OCRStatus
	OCRText           *string
	OCRConfidence     *float64 // 0-100
	OCRWordCount      *int
	OCRProcessingMS   *int64
	OCRError          *string
	OCRRetryCount     int
	OCRFailureReason  *FailureReason

	SourceType SourceType
	SourceID   *uuid.UUID
	SourcePath *string

	SourceMetadata map[string]interface{}

	CreatedAt         time.Time
	UpdatedAt         time.Time
	OriginalCreatedAt *time.Time
	OriginalModifiedAt *time.Time
}

// Validate enforces the invariants that must hold before a Document is
// written: ocr_status=completed implies non-empty OCRText, ocr_status=failed
// implies non-empty OCRError, and confidence stays in [0, 100].
func (d *Document) Validate() error {
	if !d.OCRStatus.Valid() {
		return errInvalidEnum("ocr_status", string(d.OCRStatus))
	}
	if d.OCRStatus == OCRStatusCompleted && (d.OCRText == nil || *d.OCRText == "") {
		return errInvariant("ocr_status=completed requires non-empty ocr_text")
	}
	if d.OCRStatus == OCRStatusFailed && (d.OCRError == nil || *d.OCRError == "") {
		return errInvariant("ocr_status=failed requires non-empty ocr_error")
	}
	if d.OCRConfidence != nil && (*d.OCRConfidence < 0 || *d.OCRConfidence > 100) {
		return errInvariant("ocr_confidence must be within [0, 100]")
	}
	if d.OCRFailureReason != nil && !d.OCRFailureReason.Valid() {
		return errInvalidEnum("ocr_failure_reason", string(*d.OCRFailureReason))
	}
	if d.SourceType != "" && !d.SourceType.Valid() {
		return errInvalidEnum("source_type", string(d.SourceType))
	}
	return nil
}
