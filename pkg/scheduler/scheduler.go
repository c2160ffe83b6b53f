// Package scheduler drives per-source sync jobs on a fixed tick, per spec.md
// §4.8: deciding which enabled Sources are due, spawning at most one
// concurrent sync per source, and recovering any sync that was left running
// when the process last exited.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docpipe/ocrflow/pkg/ingest"
	"github.com/docpipe/ocrflow/pkg/models"
	"github.com/docpipe/ocrflow/pkg/notification/delivery"
	"github.com/docpipe/ocrflow/pkg/remote"
	"github.com/docpipe/ocrflow/pkg/smartsync"
	"github.com/docpipe/ocrflow/pkg/store"
)

const (
	tickInterval = 60 * time.Second
	startupGrace = 30 * time.Second
)

// ErrSyncAlreadyActive is returned by TriggerSync when the source already
// has a sync in flight.
var ErrSyncAlreadyActive = errors.New("sync already active")

// ErrNoActiveSync is returned by StopSync when the source has no sync in
// flight to cancel.
var ErrNoActiveSync = errors.New("no active sync")

// ClientFactory builds the WebDAV client and capability cache for one
// source, so the Scheduler doesn't need to know how credentials or
// connection pooling are configured.
type ClientFactory func(src models.Source) (*remote.Client, error)

// Scheduler owns the active-syncs registry and the 60-second tick loop.
type Scheduler struct {
	store     store.Store
	planner   *smartsync.Planner
	ingestor  *ingest.Ingestor
	notifier  delivery.Service
	clientFor ClientFactory
	logger    *logrus.Logger

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
}

func New(s store.Store, planner *smartsync.Planner, ingestor *ingest.Ingestor, notifier delivery.Service, clientFor ClientFactory, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		store:     s,
		planner:   planner,
		ingestor:  ingestor,
		notifier:  notifier,
		clientFor: clientFor,
		logger:    logger,
		active:    map[uuid.UUID]context.CancelFunc{},
	}
}

// Run resets any syncs left running by a previous process, waits out a
// grace period so in-flight work elsewhere has a chance to settle, then
// ticks every 60 seconds until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.store.ResetRunningSyncs(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to reset running syncs at startup")
	}
	if _, err := s.store.ResetRunningWebDAVSyncs(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to reset running webdav syncs at startup")
	}

	select {
	case <-time.After(startupGrace):
	case <-ctx.Done():
		return ctx.Err()
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.cancelAll()
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	sources, err := s.store.ListEnabledSources(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to list enabled sources")
		return
	}
	now := time.Now()
	for _, src := range sources {
		if !src.DueForSync(now) {
			continue
		}
		if err := s.TriggerSync(ctx, src); err != nil {
			s.logger.WithError(err).WithField("source_id", src.ID).Warn("tick skipped source")
		}
	}
}

// TriggerSync spawns a sync for src, returning ErrSyncAlreadyActive if one
// is already running for this source. Per spec.md §199.
func (s *Scheduler) TriggerSync(parent context.Context, src models.Source) error {
	s.mu.Lock()
	if _, running := s.active[src.ID]; running {
		s.mu.Unlock()
		return ErrSyncAlreadyActive
	}
	syncCtx, cancel := context.WithCancel(parent)
	s.active[src.ID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, src.ID)
			s.mu.Unlock()
			cancel()
		}()
		s.runSync(syncCtx, src)
	}()
	return nil
}

// StopSync cancels a running sync for sourceID, returning ErrNoActiveSync
// if none is running. Per spec.md §201.
func (s *Scheduler) StopSync(sourceID uuid.UUID) error {
	s.mu.Lock()
	cancel, ok := s.active[sourceID]
	s.mu.Unlock()
	if !ok {
		return ErrNoActiveSync
	}
	cancel()
	return nil
}

func (s *Scheduler) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.active {
		cancel()
	}
}

func (s *Scheduler) runSync(ctx context.Context, src models.Source) {
	if err := s.store.UpdateSourceStatus(ctx, src.ID, models.SourceStatusSyncing, nil); err != nil {
		s.logger.WithError(err).WithField("source_id", src.ID).Error("failed to mark source syncing")
		return
	}

	var syncErr error
	switch src.Type {
	case models.SourceTypeWebDAV:
		syncErr = s.runWebDAVSync(ctx, src)
	case models.SourceTypeLocalFolder:
		syncErr = s.runLocalFolderSync(ctx, src)
	default:
		// S3 sources are tracked but have no sync implementation yet; see DESIGN.md.
		syncErr = fmt.Errorf("sync not implemented for source type %q", src.Type)
	}

	if syncErr != nil {
		msg := syncErr.Error()
		if err := s.store.UpdateSourceStatus(ctx, src.ID, models.SourceStatusError, &msg); err != nil {
			s.logger.WithError(err).Error("failed to record source sync error")
		}
		s.notify(ctx, "Sync failed", src.Name+": "+msg)
		return
	}

	if err := s.store.UpdateSourceStatus(ctx, src.ID, models.SourceStatusIdle, nil); err != nil {
		s.logger.WithError(err).Error("failed to mark source idle after sync")
	}
}

func (s *Scheduler) runWebDAVSync(ctx context.Context, src models.Source) error {
	if src.Config.WebDAV == nil {
		return errMissingConfig(src, "webdav")
	}
	client, err := s.clientFor(src)
	if err != nil {
		return err
	}

	root := src.Config.WebDAV.RootPath
	strategy, err := s.planner.Plan(ctx, client, src.Owner, src.Config.WebDAV.ServerURL, root)
	if err != nil {
		return err
	}
	if strategy.Kind == smartsync.StrategySkip {
		return nil
	}
	nodes, err := s.planner.Execute(ctx, client, strategy, src.Owner, src.Config.WebDAV.ServerURL, root)
	if err != nil {
		return err
	}

	var totalBytes int64
	for _, n := range nodes {
		totalBytes += n.TotalSize
	}
	if err := s.store.RecordSyncResult(ctx, src.ID, int64(len(nodes)), totalBytes, time.Now()); err != nil {
		return err
	}
	s.notify(ctx, "Sync completed", src.Name+": synced "+time.Now().Format(time.RFC3339))
	return nil
}

func (s *Scheduler) runLocalFolderSync(ctx context.Context, src models.Source) error {
	if src.Config.LocalFolder == nil {
		return errMissingConfig(src, "local_folder")
	}
	result, err := s.ingestor.IngestDirectory(ctx, src.Config.LocalFolder.Path, ingest.BulkConfig{
		Owner:       src.Owner,
		DedupPolicy: models.DedupPolicySkip,
		SourceTag:   "scheduler:" + src.ID.String(),
	})
	if err != nil {
		return err
	}
	return s.store.RecordSyncResult(ctx, src.ID, int64(result.FilesIngested), 0, time.Now())
}

func (s *Scheduler) notify(ctx context.Context, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Deliver(ctx, &delivery.Notification{Subject: subject, Body: body}); err != nil {
		s.logger.WithError(err).Warn("failed to deliver sync notification")
	}
}

func errMissingConfig(src models.Source, kind string) error {
	return &configError{sourceID: src.ID, kind: kind}
}

type configError struct {
	sourceID uuid.UUID
	kind     string
}

func (e *configError) Error() string {
	return "source " + e.sourceID.String() + " is missing its " + e.kind + " config"
}
