// Command ocrflowd runs the document ingestion and OCR pipeline core: the
// durable queue, the bounded OCR worker pool, the per-source sync
// scheduler, and a minimal admin/health surface. HTTP upload, auth, and
// search are out of scope per spec.md §1 and live in a separate service.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/docpipe/ocrflow/internal/config"
	"github.com/docpipe/ocrflow/internal/database"
	"github.com/docpipe/ocrflow/pkg/ingest"
	"github.com/docpipe/ocrflow/pkg/metrics"
	"github.com/docpipe/ocrflow/pkg/models"
	"github.com/docpipe/ocrflow/pkg/notification/delivery"
	"github.com/docpipe/ocrflow/pkg/ocr"
	"github.com/docpipe/ocrflow/pkg/queue"
	"github.com/docpipe/ocrflow/pkg/remote"
	"github.com/docpipe/ocrflow/pkg/scheduler"
	sharedhttp "github.com/docpipe/ocrflow/pkg/shared/http"
	"github.com/docpipe/ocrflow/pkg/smartsync"
	"github.com/docpipe/ocrflow/pkg/storage"
	"github.com/docpipe/ocrflow/pkg/store"
	"github.com/docpipe/ocrflow/pkg/watcher"
	"github.com/docpipe/ocrflow/pkg/workerpool"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the pipeline config file")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	configureLogger(logger, cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}
	pools, err := database.ConnectPools(dbConfig, cfg.Database.BackgroundPoolSize, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer pools.Close()

	if err := store.Migrate(pools.Foreground.DB.DB); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	pg := store.NewPostgres(pools.Background.DB, logger)

	q := queue.New(pg)
	notifyListener := queue.NewNotifyListener(q, dbConfig.ConnectionString(), 10*time.Second, time.Minute, logger)
	if err := notifyListener.Start(); err != nil {
		logger.WithError(err).Warn("failed to start LISTEN/NOTIFY wakeup; falling back to poll-only dequeue")
	} else {
		defer notifyListener.Stop()
	}

	metricsRegistry := metrics.NewMetrics("ocrflow")
	engine := ocr.NewTesseractEngine("tesseract", "", cfg.Worker.OCRTimeout)

	pool := workerpool.New(q, pg, engine, metricsRegistry, logger, workerpool.Config{
		MaxConcurrentJobs: cfg.Worker.MaxConcurrentJobs,
		WorkerID:          "ocrflowd",
	})

	storageDriver := storage.NewLocalDriver("./data/documents")
	ingestor := ingest.New(pg, storageDriver, q, logger)

	notifier := newNotifier(cfg.Notify, logger)
	planner := smartsync.NewPlanner(pg)
	sched := scheduler.New(pg, planner, ingestor, notifier, webdavClientFactory(cfg.Redis, logger), logger)

	var wg sync.WaitGroup
	runInBackground := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	runInBackground(func() { pool.Run(ctx) })
	runInBackground(func() { pool.RunMaintenance(ctx) })
	runInBackground(func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("scheduler stopped unexpectedly")
		}
	})
	runInBackground(func() { startLocalFolderWatchers(ctx, pg, ingestor, logger) })

	adminServer := &http.Server{Addr: ":" + cfg.Server.AdminPort, Handler: newAdminRouter(q, pg, sched, logger)}
	metricsServer := &http.Server{Addr: ":" + cfg.Server.MetricsPort, Handler: newMetricsRouter()}
	runInBackground(func() {
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("admin server stopped")
		}
	})
	runInBackground(func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics server stopped")
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = adminServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	wg.Wait()
}

// startLocalFolderWatchers gives every enabled local_folder source a live
// fsnotify watcher in addition to the scheduler's periodic bulk-walk catch
// up pass: new files land in the queue immediately instead of waiting for
// the next 60s tick. Sources are snapshotted once at startup; a source
// added after the process starts picks up its watcher on the next restart.
func startLocalFolderWatchers(ctx context.Context, s store.Store, ingestor *ingest.Ingestor, logger *logrus.Logger) {
	sources, err := s.ListEnabledSources(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to list sources for filesystem watchers")
		return
	}
	for _, src := range sources {
		if src.Type != models.SourceTypeLocalFolder || src.Config.LocalFolder == nil {
			continue
		}
		w, err := watcher.New(ingestor, src.Owner, src.Config.LocalFolder.Path, nil, src.ID.String(), logger)
		if err != nil {
			logger.WithError(err).WithField("source_id", src.ID).Error("failed to create filesystem watcher")
			continue
		}
		if err := w.Start(ctx); err != nil {
			logger.WithError(err).WithField("source_id", src.ID).Error("failed to start filesystem watcher")
		}
	}
	<-ctx.Done()
}

func configureLogger(logger *logrus.Logger, cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func newNotifier(cfg config.NotifyConfig, logger *logrus.Logger) delivery.Service {
	switch cfg.Channel {
	case "slack":
		return delivery.NewSlackDeliveryService(cfg.SlackURL, "")
	case "none", "":
		return nil
	default:
		dir := cfg.Directory
		if dir == "" {
			dir = "./notifications"
		}
		return delivery.NewFileDeliveryService(dir)
	}
}

// webdavClientFactory builds the shared HTTP client and per-source
// capability cache the scheduler hands to the Smart Sync Planner. Server
// kind detection (Nextcloud vs. ownCloud vs. generic) is left generic here;
// a deployment with a fixed provider can specialize this factory. When
// cfg.Addr is set the capability probe cache is backed by Redis so restarts
// don't force every source to re-probe DAV compliance on the next tick;
// otherwise it falls back to an in-process map.
func webdavClientFactory(cfg config.RedisConfig, logger *logrus.Logger) scheduler.ClientFactory {
	var caps remote.CapabilityCache
	if cfg.Addr != "" {
		caps = remote.NewRedisCapabilityCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}), cfg.TTL)
	} else {
		logger.Info("no redis address configured, using in-process WebDAV capability cache")
		caps = remote.NewCapabilityCache()
	}
	httpClient := sharedhttp.NewClient(sharedhttp.DefaultClientConfig())
	return func(src models.Source) (*remote.Client, error) {
		urlManager := remote.URLManager{Kind: remote.ServerGeneric, Username: src.Config.WebDAV.Username}
		return remote.NewClient(httpClient, src.Name, urlManager, caps), nil
	}
}
