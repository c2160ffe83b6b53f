package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docpipe/ocrflow/pkg/ingest"
	"github.com/docpipe/ocrflow/pkg/models"
	"github.com/docpipe/ocrflow/pkg/queue"
	"github.com/docpipe/ocrflow/pkg/store"
)

type fakeStore struct {
	store.Store
	mu      sync.Mutex
	created []*models.Document
}

func (f *fakeStore) GetDocumentByUserAndHash(ctx context.Context, owner, hash string) (*models.Document, error) {
	return nil, nil
}

func (f *fakeStore) CreateDocument(ctx context.Context, doc *models.Document) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	f.created = append(f.created, doc)
	return doc, nil
}

func (f *fakeStore) Enqueue(ctx context.Context, documentID uuid.UUID, priority int, size int64) (*models.QueueItem, error) {
	return models.NewQueueItem(documentID, priority, size, models.DefaultMaxAttempts), nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeStorage struct{}

func (fakeStorage) Put(ctx context.Context, owner, filename string, content []byte) (string, error) {
	return "/stored/" + filename, nil
}

func TestWatcher_IngestsNewFile(t *testing.T) {
	root := t.TempDir()
	fs := &fakeStore{}
	logger := logrus.New()
	logger.SetOutput(discard{})

	q := queue.New(fs)
	ing := ingest.New(fs, fakeStorage{}, q, logger)

	w, err := New(ing, "alice", root, map[string]struct{}{".txt": {}}, "src-1", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fs.count() == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected 1 document ingested via watcher, got %d", fs.count())
}

func TestWatcher_DebouncesRapidWritesToSamePath(t *testing.T) {
	root := t.TempDir()
	fs := &fakeStore{}
	logger := logrus.New()
	logger.SetOutput(discard{})

	q := queue.New(fs)
	ing := ingest.New(fs, fakeStorage{}, q, logger)

	w, err := New(ing, "alice", root, map[string]struct{}{".txt": {}}, "src-1", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(root, "note.txt")
	// Simulate an editor's truncate-then-write-then-write save sequence,
	// each well within the 500ms debounce window.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("revision"), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fs.count() == 1 {
			// Keep waiting past the first observation to make sure no
			// second ingest arrives from an earlier, un-debounced event.
			time.Sleep(300 * time.Millisecond)
			if fs.count() != 1 {
				t.Fatalf("expected exactly 1 ingest after debouncing, got %d", fs.count())
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected 1 document ingested after rapid writes settled, got %d", fs.count())
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
