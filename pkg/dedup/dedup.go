// Package dedup implements the content-addressed deduplication facade
// described in spec.md §4.2: SHA-256 content hashing, the DedupPolicy
// decision, and the hard size caps enforced before hashing where possible.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/docpipe/ocrflow/pkg/models"
)

// Canonical hash of the empty byte string; empty content is allowed and
// always hashes to this value.
const EmptyContentHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

const (
	// MaxIngestSize is the hard cap enforced by the Ingestor before hashing.
	MaxIngestSize int64 = 100 * 1024 * 1024
	// MaxUploadSize is the policy cap enforced at the (out-of-scope) HTTP
	// surface; kept here so callers share one source of truth.
	MaxUploadSize int64 = 50 * 1024 * 1024
)

// HashContent returns the lowercase hex SHA-256 digest of content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Store is the subset of store.Store the dedup index needs.
type Store interface {
	GetDocumentByUserAndHash(ctx context.Context, owner, hash string) (*models.Document, error)
}

// Index is a thin facade over Store.GetDocumentByUserAndHash plus the
// uniqueness constraint the store enforces on (owner, content_hash).
type Index struct {
	store Store
}

func NewIndex(store Store) *Index {
	return &Index{store: store}
}

// Lookup returns the existing document for (owner, hash), or nil if none.
func (i *Index) Lookup(ctx context.Context, owner, hash string) (*models.Document, error) {
	return i.store.GetDocumentByUserAndHash(ctx, owner, hash)
}

// Resolve applies policy against an existing match found at hash for owner.
// With no existing row it returns (nil, true) whatever the policy: ingestion
// proceeds to persist a new document. With an existing row it returns the
// IngestionResult the Ingestor should return without creating a new
// document, and false, for every policy.
func Resolve(policy models.DedupPolicy, existing *models.Document) (result *models.IngestionResult, shouldPersist bool) {
	if existing == nil {
		return nil, true
	}
	switch policy {
	case models.DedupPolicySkip:
		r := models.Skipped(existing.ID, "duplicate content hash")
		return &r, false
	case models.DedupPolicyTrackAsDuplicate:
		r := models.TrackedAsDuplicate(existing.ID)
		return &r, false
	case models.DedupPolicyAllowDuplicate:
		// The DB's unique (owner, content_hash) constraint forbids a second
		// row for the same owner, so the existing document is returned and
		// nothing new is persisted.
		r := models.ExistingDocument(existing)
		return &r, false
	default:
		r := models.Skipped(existing.ID, "duplicate content hash")
		return &r, false
	}
}

// SizeGate reports whether size clears the given ceiling.
func SizeGate(size, ceiling int64) bool {
	return size <= ceiling
}
