package models

import (
	"time"

	"github.com/google/uuid"
)

// FailureRecord is a terminal failure whose reason and stage are drawn from
// closed enumerations, enforced both in Go (Validate) and at the storage
// edge (a CHECK constraint mirroring the same sets).
type FailureRecord struct {
	ID                uuid.UUID
	Owner             string
	Filename          string
	FailureReason     FailureReason
	FailureStage      FailureStage
	ExistingDocumentID *uuid.UUID
	ErrorMessage      string
	RetryCount        int
	LastRetryAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate rejects any FailureRecord whose reason or stage falls outside
// the closed set. Case-sensitive; leading/trailing whitespace is never
// trimmed before the check, so " ocr " and "Low_OCR_Confidence" are both
// invalid even though a trimmed/lowercased form might match.
func (f *FailureRecord) Validate() error {
	if !f.FailureReason.Valid() {
		return errInvalidEnum("failure_reason", string(f.FailureReason))
	}
	if !f.FailureStage.Valid() {
		return errInvalidEnum("failure_stage", string(f.FailureStage))
	}
	return nil
}

// IgnoredFile short-circuits re-adding content that was previously removed
// intentionally.
type IgnoredFile struct {
	ContentHash string
	Owner       string
	SourceID    *uuid.UUID
	SourcePath  string
	CreatedAt   time.Time
}
