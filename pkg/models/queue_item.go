package models

import (
	"time"

	"github.com/google/uuid"
)

// Default tunables named by the queue contract; callers may override most
// of these per item or per deployment via internal/config.
const (
	DefaultMaxAttempts = 3

	PriorityTiny   = 10 // <= 1 MiB
	PrioritySmall  = 8  // <= 5 MiB
	PriorityMedium = 6  // <= 10 MiB
	PriorityLarge  = 4  // <= 50 MiB
	PriorityHuge   = 2  // > 50 MiB
)

// PriorityForSize implements the default size-based priority assignment
// policy. Callers may override the result.
func PriorityForSize(sizeBytes int64) int {
	const mib = 1024 * 1024
	switch {
	case sizeBytes <= 1*mib:
		return PriorityTiny
	case sizeBytes <= 5*mib:
		return PrioritySmall
	case sizeBytes <= 10*mib:
		return PriorityMedium
	case sizeBytes <= 50*mib:
		return PriorityLarge
	default:
		return PriorityHuge
	}
}

// QueueItem is one unit of OCR work against a Document.
type QueueItem struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	Status      QueueItemStatus
	Priority    int
	Attempts    int
	MaxAttempts int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	ErrorMessage *string
	WorkerID     *string
	ProcessingMS *int64
	FileSize     int64
}

// NewQueueItem builds a pending item ready for enqueue, applying
// DefaultMaxAttempts when maxAttempts is non-positive.
func NewQueueItem(documentID uuid.UUID, priority int, fileSize int64, maxAttempts int) *QueueItem {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &QueueItem{
		ID:          uuid.New(),
		DocumentID:  documentID,
		Status:      QueueItemStatusPending,
		Priority:    priority,
		MaxAttempts: maxAttempts,
		FileSize:    fileSize,
	}
}

// IsTerminal reports whether q has reached a frozen status.
func (q *QueueItem) IsTerminal() bool {
	return q.Status == QueueItemStatusCompleted || q.Status == QueueItemStatusFailed
}
