// Package watcher feeds the Ingestor from local filesystem change events,
// one of the ingestion sources spec.md §1 lists alongside HTTP upload, bulk
// directory walk, and the WebDAV-like remote scanner.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/docpipe/ocrflow/pkg/ingest"
	"github.com/docpipe/ocrflow/pkg/models"
)

// debounceDelay is how long a path must go quiet before a Write/Create
// event actually triggers an ingest, per spec.md §4.5: editors typically
// emit a truncate-then-write-then-write sequence for a single save, and
// without debouncing each would be ingested independently.
const debounceDelay = 500 * time.Millisecond

// Watcher ingests files as they are created or written under a configured
// root, using fsnotify rather than polling.
type Watcher struct {
	ingestor          *ingest.Ingestor
	fsw               *fsnotify.Watcher
	owner             string
	root              string
	allowedExtensions map[string]struct{}
	sourceID          string
	logger            *logrus.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(ing *ingest.Ingestor, owner, root string, allowedExtensions map[string]struct{}, sourceID string, logger *logrus.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		ingestor:          ing,
		fsw:               fsw,
		owner:             owner,
		root:              root,
		allowedExtensions: allowedExtensions,
		sourceID:          sourceID,
		logger:            logger,
		timers:            map[string]*time.Timer{},
	}
	return w, nil
}

// Start registers watches on root and every existing subdirectory, then
// runs the event loop until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries rather than aborting the watch setup
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("filesystem watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return // file vanished before we could stat it (rename/remove race)
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			_ = w.addRecursive(event.Name)
		}
		return
	}

	if w.allowedExtensions != nil {
		if _, ok := w.allowedExtensions[filepath.Ext(event.Name)]; !ok {
			return
		}
	}

	w.debounce(event.Name, func() { w.ingestPath(ctx, event.Name) })
}

// debounce (re)starts a trailing-edge timer for path: repeated events on
// the same path within debounceDelay collapse into a single fire.
func (w *Watcher) debounce(path string, fire func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		fire()
	})
}

func (w *Watcher) ingestPath(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return // file vanished before the debounce fired
	}

	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Warn("watcher failed to read changed file")
		return
	}

	modTime := info.ModTime()
	fi := ingest.FileInfo{Filename: filepath.Base(path), OriginalModifiedAt: &modTime}
	result, err := w.ingestor.IngestFromFileInfo(ctx, fi, content, w.owner, models.DedupPolicySkip, "watcher:"+w.sourceID)
	if err != nil {
		w.logger.WithError(err).WithField("path", path).Warn("watcher ingest failed")
		return
	}
	w.logger.WithFields(logrus.Fields{"path": path, "kind": result.Kind}).Debug("watcher ingested file")
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
