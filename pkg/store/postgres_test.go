package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/docpipe/ocrflow/pkg/models"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Postgres Store Suite")
}

var _ = Describe("Postgres", func() {
	var (
		repo   *Postgres
		db     *sqlx.DB
		mock   sqlmock.Sqlmock
		ctx    context.Context
		logger *logrus.Logger
	)

	BeforeEach(func() {
		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())

		db = sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		logger = logrus.New()
		logger.SetOutput(GinkgoWriter)
		repo = NewPostgres(db, logger)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		db.Close()
	})

	Describe("CreateDocument", func() {
		It("inserts and fills in the returned timestamps", func() {
			now := time.Now()
			doc := &models.Document{
				ID:         uuid.New(),
				Owner:      "alice",
				Filename:   "invoice.pdf",
				Path:       "/alice/invoice.pdf",
				Size:       1024,
				Mime:       "application/pdf",
				OCRStatus:  models.OCRStatusPending,
				SourceType: models.SourceTypeLocalFolder,
			}

			mock.ExpectQuery(`INSERT INTO documents`).
				WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

			result, err := repo.CreateDocument(ctx, doc)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.CreatedAt).To(BeTemporally("==", now))
		})

		It("maps a unique violation to ErrDuplicateHash", func() {
			doc := &models.Document{
				ID: uuid.New(), Owner: "alice", Filename: "a.pdf", Path: "/a.pdf",
				OCRStatus: models.OCRStatusPending, SourceType: models.SourceTypeLocalFolder,
			}
			mock.ExpectQuery(`INSERT INTO documents`).
				WillReturnError(&pgconn.PgError{Code: "23505"})

			_, err := repo.CreateDocument(ctx, doc)
			Expect(err).To(HaveOccurred())
			var dupErr *ErrDuplicateHash
			Expect(err).To(BeAssignableToTypeOf(dupErr))
		})
	})

	Describe("GetDocumentByUserAndHash", func() {
		It("returns nil, nil when no row matches", func() {
			mock.ExpectQuery(`SELECT (.+) FROM documents WHERE owner`).
				WithArgs("alice", "deadbeef").
				WillReturnError(sql.ErrNoRows)

			doc, err := repo.GetDocumentByUserAndHash(ctx, "alice", "deadbeef")
			Expect(err).ToNot(HaveOccurred())
			Expect(doc).To(BeNil())
		})

		It("scans a matching row", func() {
			now := time.Now()
			id := uuid.New()
			mock.ExpectQuery(`SELECT (.+) FROM documents WHERE owner`).
				WithArgs("alice", "deadbeef").
				WillReturnRows(sqlmock.NewRows([]string{
					"id", "owner", "filename", "path", "size", "mime", "content_hash",
					"ocr_status", "ocr_text", "ocr_confidence", "ocr_word_count",
					"ocr_processing_ms", "ocr_error", "ocr_retry_count", "ocr_failure_reason",
					"source_type", "source_id", "source_path", "created_at", "updated_at",
				}).AddRow(
					id, "alice", "scan.pdf", "/alice/scan.pdf", int64(2048), "application/pdf", "deadbeef",
					"completed", "hello world", 97.5, 12,
					int64(450), nil, 0, nil,
					"local_folder", nil, nil, now, now,
				))

			doc, err := repo.GetDocumentByUserAndHash(ctx, "alice", "deadbeef")
			Expect(err).ToNot(HaveOccurred())
			Expect(doc).ToNot(BeNil())
			Expect(doc.ID).To(Equal(id))
			Expect(*doc.OCRText).To(Equal("hello world"))
			Expect(*doc.OCRConfidence).To(Equal(97.5))
		})
	})

	Describe("UpdateDocumentOCR", func() {
		It("executes the update statement", func() {
			id := uuid.New()
			text := "result text"
			confidence := 88.0
			words := 5
			ms := int64(300)

			mock.ExpectExec(`UPDATE documents`).
				WithArgs(id, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "completed", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.UpdateDocumentOCR(ctx, id, &text, &confidence, &words, &ms, models.OCRStatusCompleted, nil)
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Enqueue", func() {
		It("inserts a pending queue item", func() {
			now := time.Now()
			docID := uuid.New()

			mock.ExpectQuery(`INSERT INTO queue_items`).
				WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

			item, err := repo.Enqueue(ctx, docID, models.PriorityMedium, 4096)
			Expect(err).ToNot(HaveOccurred())
			Expect(item.DocumentID).To(Equal(docID))
			Expect(item.Status).To(Equal(models.QueueItemStatusPending))
			Expect(item.CreatedAt).To(BeTemporally("==", now))
		})
	})

	Describe("Dequeue", func() {
		It("claims the highest-priority pending row", func() {
			mock.ExpectBegin()

			itemID := uuid.New()
			docID := uuid.New()
			mock.ExpectQuery(`SELECT id, document_id, attempts, max_attempts, file_size`).
				WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "attempts", "max_attempts", "file_size"}).
					AddRow(itemID, docID, 0, 3, int64(1024)))

			now := time.Now()
			mock.ExpectQuery(`UPDATE queue_items`).
				WithArgs(itemID, "worker-1").
				WillReturnRows(sqlmock.NewRows([]string{"status", "started_at", "worker_id", "attempts", "created_at"}).
					AddRow("processing", now, "worker-1", 1, now))

			mock.ExpectCommit()

			item, err := repo.Dequeue(ctx, "worker-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(item).ToNot(BeNil())
			Expect(item.ID).To(Equal(itemID))
			Expect(item.Status).To(Equal(models.QueueItemStatus("processing")))
		})

		It("returns nil, nil when the queue is empty", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT id, document_id, attempts, max_attempts, file_size`).
				WillReturnError(sql.ErrNoRows)
			mock.ExpectRollback()

			item, err := repo.Dequeue(ctx, "worker-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(item).To(BeNil())
		})
	})

	Describe("MarkFailed", func() {
		It("requeues to pending when attempts remain", func() {
			itemID := uuid.New()
			docID := uuid.New()

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT attempts, max_attempts, document_id FROM queue_items`).
				WithArgs(itemID).
				WillReturnRows(sqlmock.NewRows([]string{"attempts", "max_attempts", "document_id"}).
					AddRow(1, 3, docID))
			mock.ExpectExec(`UPDATE queue_items SET status = 'pending'`).
				WithArgs(itemID, "ocr engine timed out").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			err := repo.MarkFailed(ctx, itemID, "ocr engine timed out", models.FailureReasonOCRTimeout, models.FailureStageOCR)
			Expect(err).ToNot(HaveOccurred())
		})

		It("writes a failure ledger row once attempts are exhausted", func() {
			itemID := uuid.New()
			docID := uuid.New()

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT attempts, max_attempts, document_id FROM queue_items`).
				WithArgs(itemID).
				WillReturnRows(sqlmock.NewRows([]string{"attempts", "max_attempts", "document_id"}).
					AddRow(3, 3, docID))
			mock.ExpectExec(`UPDATE queue_items SET status = 'failed'`).
				WithArgs(itemID, "ocr engine timed out").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(`SELECT owner, filename FROM documents`).
				WithArgs(docID).
				WillReturnRows(sqlmock.NewRows([]string{"owner", "filename"}).AddRow("alice", "scan.pdf"))
			mock.ExpectExec(`INSERT INTO failure_records`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			err := repo.MarkFailed(ctx, itemID, "ocr engine timed out", models.FailureReasonOCRTimeout, models.FailureStageOCR)
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("RecoverStale", func() {
		It("resets processing rows older than the threshold", func() {
			mock.ExpectExec(`UPDATE queue_items`).
				WillReturnResult(sqlmock.NewResult(0, 4))

			n, err := repo.RecoverStale(ctx, 10*time.Minute)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(4)))
		})
	})

	Describe("CleanupCompleted", func() {
		It("deletes completed rows older than the horizon", func() {
			mock.ExpectExec(`DELETE FROM queue_items`).
				WillReturnResult(sqlmock.NewResult(0, 2))

			n, err := repo.CleanupCompleted(ctx, 7*24*time.Hour)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(2)))
		})
	})

	Describe("ResetRunningSyncs", func() {
		It("resets syncing sources to idle", func() {
			mock.ExpectExec(`UPDATE sources SET status = 'idle'`).
				WillReturnResult(sqlmock.NewResult(0, 3))

			n, err := repo.ResetRunningSyncs(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(3)))
		})
	})

	Describe("SyncDirectories", func() {
		It("upserts provided nodes and deletes stale ones under the root", func() {
			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO directory_nodes`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`DELETE FROM directory_nodes`).
				WillReturnResult(sqlmock.NewResult(0, 2))
			mock.ExpectCommit()

			err := repo.SyncDirectories(ctx, "alice", "/Photos", []models.DirectoryNode{
				{Owner: "alice", Path: "/Photos/2024", DirectoryETag: "etag-1"},
			})
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Ping", func() {
		It("pings the underlying connection", func() {
			mock.ExpectPing()
			Expect(repo.Ping(ctx)).To(Succeed())
		})
	})

	Describe("CreateSource", func() {
		It("marshals Config to JSON and returns the assigned status/timestamps", func() {
			now := time.Now()
			mock.ExpectQuery(`INSERT INTO sources`).
				WillReturnRows(sqlmock.NewRows([]string{"status", "created_at", "updated_at"}).
					AddRow("idle", now, now))

			src := &models.Source{
				Owner: "alice", Name: "My WebDAV", Type: models.SourceTypeWebDAV,
				Enabled: true, AutoSync: true, SyncIntervalMinutes: 60,
				Config: models.SourceConfig{WebDAV: &models.WebDAVConfig{
					ServerURL: "https://cloud.example.com", Username: "alice", Password: "secret", RootPath: "/",
				}},
			}
			created, err := repo.CreateSource(ctx, src)
			Expect(err).ToNot(HaveOccurred())
			Expect(created.Status).To(Equal(models.SourceStatusIdle))
		})
	})

	Describe("ListEnabledSources", func() {
		It("unmarshals the config JSONB column back into SourceConfig", func() {
			id := uuid.New()
			now := time.Now()
			configJSON := `{"WebDAV":{"ServerURL":"https://cloud.example.com","Username":"alice","Password":"secret","RootPath":"/"}}`
			mock.ExpectQuery(`SELECT .* FROM sources WHERE enabled = true`).
				WillReturnRows(sqlmock.NewRows([]string{
					"id", "owner", "name", "type", "enabled", "config", "status", "last_sync_at", "last_error",
					"files_synced", "files_pending", "bytes", "auto_sync", "sync_interval_minutes", "created_at", "updated_at",
				}).AddRow(id, "alice", "My WebDAV", "webdav", true, []byte(configJSON), "idle", nil, nil,
					int64(0), int64(0), int64(0), true, 60, now, now))

			sources, err := repo.ListEnabledSources(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(sources).To(HaveLen(1))
			Expect(sources[0].Config.WebDAV).ToNot(BeNil())
			Expect(sources[0].Config.WebDAV.ServerURL).To(Equal("https://cloud.example.com"))
		})
	})

	Describe("UpdateSourceStatus", func() {
		It("updates status and last_error", func() {
			id := uuid.New()
			mock.ExpectExec(`UPDATE sources SET status`).
				WillReturnResult(sqlmock.NewResult(0, 1))

			errMsg := "connection refused"
			Expect(repo.UpdateSourceStatus(ctx, id, models.SourceStatusError, &errMsg)).To(Succeed())
		})
	})

	Describe("RecordSyncResult", func() {
		It("increments counters and stamps last_sync_at", func() {
			id := uuid.New()
			mock.ExpectExec(`UPDATE sources\s+SET files_synced`).
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(repo.RecordSyncResult(ctx, id, 5, 1024, time.Now())).To(Succeed())
		})
	})
})
