package models

import "github.com/google/uuid"

// IngestionResultKind discriminates the IngestionResult union.
type IngestionResultKind string

const (
	IngestionResultCreated          IngestionResultKind = "created"
	IngestionResultSkipped          IngestionResultKind = "skipped"
	IngestionResultExistingDocument IngestionResultKind = "existing_document"
	IngestionResultTrackedAsDuplicate IngestionResultKind = "tracked_as_duplicate"
)

// IngestionResult is the outcome of a single ingest_from_file_info call.
// Exactly one of Document/ExistingID is meaningful depending on Kind.
type IngestionResult struct {
	Kind       IngestionResultKind
	Document   *Document
	ExistingID *uuid.UUID
	Reason     string
}

func Created(doc *Document) IngestionResult {
	return IngestionResult{Kind: IngestionResultCreated, Document: doc}
}

func Skipped(existingID uuid.UUID, reason string) IngestionResult {
	return IngestionResult{Kind: IngestionResultSkipped, ExistingID: &existingID, Reason: reason}
}

func ExistingDocument(doc *Document) IngestionResult {
	return IngestionResult{Kind: IngestionResultExistingDocument, Document: doc}
}

func TrackedAsDuplicate(existingID uuid.UUID) IngestionResult {
	return IngestionResult{Kind: IngestionResultTrackedAsDuplicate, ExistingID: &existingID}
}
