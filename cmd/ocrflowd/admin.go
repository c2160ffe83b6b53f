package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	apperrors "github.com/docpipe/ocrflow/internal/errors"
	"github.com/docpipe/ocrflow/pkg/queue"
	"github.com/docpipe/ocrflow/pkg/scheduler"
	"github.com/docpipe/ocrflow/pkg/store"
)

// newAdminRouter builds the operator-facing surface: health, queue stats,
// pause/resume/requeue, and per-source manual sync control. Document
// upload, auth, and search are out of scope per spec.md §1.
func newAdminRouter(q *queue.Queue, st store.Store, sched *scheduler.Scheduler, logger *logrus.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/queue/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := q.Stats(r.Context())
		if err != nil {
			appErr := apperrors.NewDatabaseError("queue_statistics", err)
			logger.WithFields(apperrors.LogFields(appErr)).Error("failed to read queue stats")
			http.Error(w, apperrors.SafeErrorMessage(appErr), apperrors.GetStatusCode(appErr))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	r.Post("/queue/pause", func(w http.ResponseWriter, r *http.Request) {
		q.Pause()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/queue/resume", func(w http.ResponseWriter, r *http.Request) {
		q.Resume()
		q.Wake()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/queue/requeue-failed", func(w http.ResponseWriter, r *http.Request) {
		n, err := q.RequeueFailed(r.Context())
		if err != nil {
			appErr := apperrors.NewDatabaseError("requeue_failed", err)
			logger.WithFields(apperrors.LogFields(appErr)).Error("failed to requeue failed items")
			http.Error(w, apperrors.SafeErrorMessage(appErr), apperrors.GetStatusCode(appErr))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{"requeued": n})
	})

	r.Post("/sources/{id}/sync", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid source id", http.StatusBadRequest)
			return
		}
		src, err := st.GetSource(r.Context(), id)
		if err != nil {
			var notFound *store.ErrNotFound
			if errors.As(err, &notFound) {
				http.Error(w, "source not found", http.StatusNotFound)
				return
			}
			appErr := apperrors.NewDatabaseError("get_source", err)
			logger.WithFields(apperrors.LogFields(appErr)).Error("failed to look up source")
			http.Error(w, apperrors.SafeErrorMessage(appErr), apperrors.GetStatusCode(appErr))
			return
		}
		if err := sched.TriggerSync(r.Context(), *src); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	r.Post("/sources/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid source id", http.StatusBadRequest)
			return
		}
		if err := sched.StopSync(id); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func newMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return r
}
