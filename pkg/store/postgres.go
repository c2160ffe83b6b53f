package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/docpipe/ocrflow/pkg/models"
	"github.com/docpipe/ocrflow/pkg/repository/sqlutil"
	sharederrors "github.com/docpipe/ocrflow/pkg/shared/errors"
	"github.com/docpipe/ocrflow/pkg/shared/logging"
	"github.com/docpipe/ocrflow/pkg/validation"
)

const postgresUniqueViolation = "23505"

// Postgres is the Store implementation backed by a *sqlx.DB. The caller is
// responsible for passing the correct pool (foreground vs. background) for
// the calling component, per §4.1.
type Postgres struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func NewPostgres(db *sqlx.DB, logger *logrus.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	return false
}

func (p *Postgres) CreateDocument(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	query := `
		INSERT INTO documents (
			id, owner, filename, path, size, mime, content_hash,
			ocr_status, source_type, source_id, source_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	row := p.db.QueryRowContext(ctx, query,
		doc.ID, doc.Owner, doc.Filename, doc.Path, doc.Size, doc.Mime,
		sqlutil.ToNullString(doc.ContentHash), string(doc.OCRStatus),
		string(doc.SourceType), sqlutil.ToNullUUID(doc.SourceID),
		sqlutil.ToNullString(doc.SourcePath),
	)
	if err := row.Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			hash := ""
			if doc.ContentHash != nil {
				hash = *doc.ContentHash
			}
			return nil, &ErrDuplicateHash{Owner: doc.Owner, Hash: hash}
		}
		p.logger.WithFields(logging.DatabaseFields("create_document", "documents").ToLogrus()).
			WithError(err).Error("insert document failed")
		return nil, sharederrors.DatabaseError("create_document", err)
	}
	return doc, nil
}

const documentColumns = `id, owner, filename, path, size, mime, content_hash,
		       ocr_status, ocr_text, ocr_confidence, ocr_word_count,
		       ocr_processing_ms, ocr_error, ocr_retry_count, ocr_failure_reason,
		       source_type, source_id, source_path, created_at, updated_at`

// scanDocumentRow scans one documents row selected with documentColumns.
func scanDocumentRow(row *sql.Row) (*models.Document, error) {
	var (
		doc              models.Document
		contentHash      sql.NullString
		ocrText          sql.NullString
		ocrConfidence    sql.NullFloat64
		ocrWordCount     sql.NullInt32
		ocrProcessingMS  sql.NullInt64
		ocrError         sql.NullString
		ocrFailureReason sql.NullString
		sourceID         sql.NullString
		sourcePath       sql.NullString
		ocrStatus        string
		sourceType       string
	)

	err := row.Scan(
		&doc.ID, &doc.Owner, &doc.Filename, &doc.Path, &doc.Size, &doc.Mime, &contentHash,
		&ocrStatus, &ocrText, &ocrConfidence, &ocrWordCount,
		&ocrProcessingMS, &ocrError, &ocrFailureReason,
		&sourceType, &sourceID, &sourcePath, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.ContentHash = sqlutil.FromNullString(contentHash)
	doc.OCRStatus = models.OCRStatus(ocrStatus)
	doc.OCRText = sqlutil.FromNullString(ocrText)
	doc.OCRConfidence = sqlutil.FromNullFloat64(ocrConfidence)
	doc.OCRWordCount = sqlutil.FromNullInt(ocrWordCount)
	doc.OCRProcessingMS = sqlutil.FromNullInt64(ocrProcessingMS)
	doc.OCRError = sqlutil.FromNullString(ocrError)
	if ocrFailureReason.Valid {
		reason := models.FailureReason(ocrFailureReason.String)
		doc.OCRFailureReason = &reason
	}
	doc.SourceType = models.SourceType(sourceType)
	doc.SourceID = sqlutil.FromNullUUID(sourceID)
	doc.SourcePath = sqlutil.FromNullString(sourcePath)
	return &doc, nil
}

func (p *Postgres) GetDocumentByUserAndHash(ctx context.Context, owner, hash string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE owner = $1 AND content_hash = $2`
	doc, err := scanDocumentRow(p.db.QueryRowContext(ctx, query, owner, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sharederrors.DatabaseError("get_document_by_user_and_hash", err)
	}
	return doc, nil
}

func (p *Postgres) GetDocumentByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocumentRow(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Resource: "document", ID: id.String()}
	}
	if err != nil {
		return nil, sharederrors.DatabaseError("get_document_by_id", err)
	}
	return doc, nil
}

func (p *Postgres) UpdateDocumentOCR(ctx context.Context, id uuid.UUID, text *string, confidence *float64, words *int, ms *int64, status models.OCRStatus, ocrErr *string) error {
	query := `
		UPDATE documents
		SET ocr_text = $2, ocr_confidence = $3, ocr_word_count = $4,
		    ocr_processing_ms = $5, ocr_status = $6, ocr_error = $7, updated_at = now()
		WHERE id = $1`

	_, err := p.db.ExecContext(ctx, query, id,
		sqlutil.ToNullString(text), sqlutil.ToNullFloat64(confidence), sqlutil.ToNullInt(words),
		sqlutil.ToNullInt64(ms), string(status), sqlutil.ToNullString(ocrErr),
	)
	if err != nil {
		return sharederrors.DatabaseError("update_document_ocr", err)
	}
	return nil
}

func (p *Postgres) BulkDeleteDocuments(ctx context.Context, ids []uuid.UUID, owner string, isAdmin bool) (DeletePartition, error) {
	partition := DeletePartition{}
	if len(ids) == 0 {
		return partition, nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return partition, sharederrors.DatabaseError("bulk_delete_documents", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range ids {
		var query string
		var args []interface{}
		if isAdmin {
			query = `DELETE FROM documents WHERE id = $1 RETURNING id`
			args = []interface{}{id}
		} else {
			query = `DELETE FROM documents WHERE id = $1 AND owner = $2 RETURNING id`
			args = []interface{}{id, owner}
		}
		var deletedID uuid.UUID
		err := tx.QueryRowxContext(ctx, query, args...).Scan(&deletedID)
		if errors.Is(err, sql.ErrNoRows) {
			partition.Failed = append(partition.Failed, id)
			continue
		}
		if err != nil {
			return DeletePartition{}, sharederrors.DatabaseError("bulk_delete_documents", err)
		}
		partition.Deleted = append(partition.Deleted, deletedID)
	}

	if err := tx.Commit(); err != nil {
		return DeletePartition{}, sharederrors.DatabaseError("bulk_delete_documents", err)
	}
	return partition, nil
}

func (p *Postgres) Enqueue(ctx context.Context, documentID uuid.UUID, priority int, size int64) (*models.QueueItem, error) {
	item := models.NewQueueItem(documentID, priority, size, models.DefaultMaxAttempts)
	query := `
		INSERT INTO queue_items (id, document_id, status, priority, max_attempts, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	err := p.db.QueryRowContext(ctx, query, item.ID, item.DocumentID, string(item.Status),
		item.Priority, item.MaxAttempts, item.FileSize).Scan(&item.CreatedAt)
	if err != nil {
		return nil, sharederrors.DatabaseError("enqueue", err)
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify('ocrflow_queue', $1)`, item.ID.String()); err != nil {
		p.logger.WithError(err).Warn("failed to notify queue listeners after enqueue")
	}
	return item, nil
}

func (p *Postgres) EnqueueBatch(ctx context.Context, items []*models.QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return sharederrors.DatabaseError("enqueue_batch", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO queue_items (id, document_id, status, priority, max_attempts, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if _, err := tx.ExecContext(ctx, query, item.ID, item.DocumentID, string(item.Status),
			item.Priority, item.MaxAttempts, item.FileSize); err != nil {
			return sharederrors.DatabaseError("enqueue_batch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return sharederrors.DatabaseError("enqueue_batch", err)
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify('ocrflow_queue', 'batch')`); err != nil {
		p.logger.WithError(err).Warn("failed to notify queue listeners after enqueue_batch")
	}
	return nil
}

// Dequeue implements the atomic claim described in §4.3: SELECT ... FOR
// UPDATE SKIP LOCKED against the priority/age ordering, then an UPDATE of
// the claimed row, all inside one transaction.
func (p *Postgres) Dequeue(ctx context.Context, workerID string) (*models.QueueItem, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, sharederrors.DatabaseError("dequeue", err)
	}
	defer tx.Rollback() //nolint:errcheck

	selectQuery := `
		SELECT id, document_id, attempts, max_attempts, file_size
		FROM queue_items
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`

	var item models.QueueItem
	err = tx.QueryRowxContext(ctx, selectQuery).Scan(
		&item.ID, &item.DocumentID, &item.Attempts, &item.MaxAttempts, &item.FileSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sharederrors.DatabaseError("dequeue", err)
	}

	updateQuery := `
		UPDATE queue_items
		SET status = 'processing', started_at = now(), worker_id = $2, attempts = attempts + 1
		WHERE id = $1
		RETURNING status, started_at, worker_id, attempts, created_at`
	err = tx.QueryRowxContext(ctx, updateQuery, item.ID, workerID).Scan(
		&item.Status, &item.StartedAt, &item.WorkerID, &item.Attempts, &item.CreatedAt)
	if err != nil {
		return nil, sharederrors.DatabaseError("dequeue", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, sharederrors.DatabaseError("dequeue", err)
	}
	return &item, nil
}

func (p *Postgres) MarkComplete(ctx context.Context, itemID uuid.UUID, processingMS int64) error {
	query := `
		UPDATE queue_items
		SET status = 'completed', completed_at = now(), processing_ms = $2
		WHERE id = $1`
	_, err := p.db.ExecContext(ctx, query, itemID, processingMS)
	if err != nil {
		return sharederrors.DatabaseError("mark_complete", err)
	}
	return nil
}

// MarkFailed implements the retry-or-terminate branch from §4.3: items
// under their attempt ceiling go back to pending; items at the ceiling
// become terminally failed and get a Failure Ledger row.
func (p *Postgres) MarkFailed(ctx context.Context, itemID uuid.UUID, errMsg string, reason models.FailureReason, stage models.FailureStage) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return sharederrors.DatabaseError("mark_failed", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		attempts, maxAttempts int
		documentID            uuid.UUID
	)
	err = tx.QueryRowxContext(ctx, `SELECT attempts, max_attempts, document_id FROM queue_items WHERE id = $1`, itemID).
		Scan(&attempts, &maxAttempts, &documentID)
	if err != nil {
		return sharederrors.DatabaseError("mark_failed", err)
	}

	terminal := attempts >= maxAttempts
	if terminal {
		_, err = tx.ExecContext(ctx,
			`UPDATE queue_items SET status = 'failed', error_message = $2 WHERE id = $1`,
			itemID, errMsg)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE queue_items SET status = 'pending', worker_id = NULL, started_at = NULL, error_message = $2 WHERE id = $1`,
			itemID, errMsg)
	}
	if err != nil {
		return sharederrors.DatabaseError("mark_failed", err)
	}

	if terminal {
		var owner, filename string
		if err := tx.QueryRowxContext(ctx, `SELECT owner, filename FROM documents WHERE id = $1`, documentID).
			Scan(&owner, &filename); err != nil {
			return sharederrors.DatabaseError("mark_failed", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO failure_records (id, owner, filename, failure_reason, failure_stage, error_message)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), owner, filename, string(reason), string(stage), errMsg)
		if err != nil {
			return sharederrors.DatabaseError("mark_failed", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sharederrors.DatabaseError("mark_failed", err)
	}
	return nil
}

func (p *Postgres) RecoverStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	query := `
		UPDATE queue_items
		SET status = 'pending', worker_id = NULL, started_at = NULL
		WHERE status = 'processing' AND started_at < now() - ($1 || ' seconds')::interval`
	result, err := p.db.ExecContext(ctx, query, int64(maxAge.Seconds()))
	if err != nil {
		return 0, sharederrors.DatabaseError("recover_stale", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, sharederrors.DatabaseError("recover_stale", err)
	}
	return n, nil
}

func (p *Postgres) CleanupCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM queue_items WHERE status = 'completed' AND completed_at < now() - ($1 || ' seconds')::interval`
	result, err := p.db.ExecContext(ctx, query, int64(olderThan.Seconds()))
	if err != nil {
		return 0, sharederrors.DatabaseError("cleanup_completed", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, sharederrors.DatabaseError("cleanup_completed", err)
	}
	return n, nil
}

// RequeueFailed resets every failed item that still has attempts remaining
// back to pending, per spec.md §6's requeue_failed() operation.
func (p *Postgres) RequeueFailed(ctx context.Context) (int64, error) {
	query := `
		UPDATE queue_items
		SET status = 'pending', worker_id = NULL, started_at = NULL
		WHERE status = 'failed' AND attempts < max_attempts`
	result, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return 0, sharederrors.DatabaseError("requeue_failed", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, sharederrors.DatabaseError("requeue_failed", err)
	}
	return n, nil
}

func (p *Postgres) QueueStatistics(ctx context.Context) (QueueStats, error) {
	query := `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'processing'),
			count(*) FILTER (WHERE status = 'failed'),
			count(*) FILTER (WHERE status = 'completed' AND completed_at >= date_trunc('day', now())),
			avg(extract(epoch FROM (now() - created_at)) / 60) FILTER (WHERE status = 'pending'),
			max(extract(epoch FROM (now() - created_at)) / 60) FILTER (WHERE status = 'pending')
		FROM queue_items`

	var stats QueueStats
	var avgWait, oldestPending sql.NullFloat64
	err := p.db.QueryRowContext(ctx, query).Scan(
		&stats.Pending, &stats.Processing, &stats.Failed, &stats.CompletedToday,
		&avgWait, &oldestPending)
	if err != nil {
		return QueueStats{}, sharederrors.DatabaseError("stats", err)
	}
	stats.AvgWaitMinutes = sqlutil.FromNullFloat64(avgWait)
	stats.OldestPendingMinutes = sqlutil.FromNullFloat64(oldestPending)
	return stats, nil
}

func (p *Postgres) BulkUpsertDirectories(ctx context.Context, nodes []models.DirectoryNode) error {
	if len(nodes) == 0 {
		return nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return sharederrors.DatabaseError("bulk_upsert_directories", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertDirectoryNodes(ctx, tx, nodes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return sharederrors.DatabaseError("bulk_upsert_directories", err)
	}
	return nil
}

func upsertDirectoryNodes(ctx context.Context, tx *sqlx.Tx, nodes []models.DirectoryNode) error {
	query := `
		INSERT INTO directory_nodes (owner, path, directory_etag, file_count, total_size, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (owner, path) DO UPDATE SET
			directory_etag = EXCLUDED.directory_etag,
			file_count = EXCLUDED.file_count,
			total_size = EXCLUDED.total_size,
			updated_at = now()`
	for _, n := range nodes {
		owner, path := n.Key()
		if _, err := tx.ExecContext(ctx, query, owner, path, n.DirectoryETag, n.FileCount, n.TotalSize); err != nil {
			return sharederrors.DatabaseError("upsert_directory_node", err)
		}
	}
	return nil
}

// SyncDirectories implements the atomic tracker sync from §4.6: upsert every
// node in nodes, then delete any existing row for (owner, path) under root
// that did not appear in nodes.
func (p *Postgres) SyncDirectories(ctx context.Context, owner, root string, nodes []models.DirectoryNode) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return sharederrors.DatabaseError("sync_directories", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertDirectoryNodes(ctx, tx, nodes); err != nil {
		return err
	}

	keep := make([]string, 0, len(nodes))
	for _, n := range nodes {
		_, path := n.Key()
		keep = append(keep, path)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM directory_nodes
		WHERE owner = $1 AND path LIKE $2 || '%' AND NOT (path = ANY($3::text[]))`,
		owner, root, stringsToPGArray(keep)); err != nil {
		return sharederrors.DatabaseError("sync_directories", err)
	}

	if err := tx.Commit(); err != nil {
		return sharederrors.DatabaseError("sync_directories", err)
	}
	return nil
}

// stringsToPGArray renders ss as a Postgres text[] array literal suitable
// for binding into an ANY($n::text[]) predicate.
func stringsToPGArray(ss []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, s := range ss {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(s, `"`, `\"`))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

func (p *Postgres) ResetRunningSyncs(ctx context.Context) (int64, error) {
	return p.resetSyncingSources(ctx, `type != 'webdav'`)
}

func (p *Postgres) ResetRunningWebDAVSyncs(ctx context.Context) (int64, error) {
	return p.resetSyncingSources(ctx, `type = 'webdav'`)
}

func (p *Postgres) resetSyncingSources(ctx context.Context, typeFilter string) (int64, error) {
	query := `UPDATE sources SET status = 'idle', updated_at = now() WHERE status = 'syncing' AND ` + typeFilter
	result, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return 0, sharederrors.DatabaseError("reset_running_syncs", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, sharederrors.DatabaseError("reset_running_syncs", err)
	}
	return n, nil
}

func (p *Postgres) KnownDirectoriesUnder(ctx context.Context, owner, root string) ([]models.DirectoryNode, error) {
	query := `
		SELECT owner, path, directory_etag, file_count, total_size, updated_at
		FROM directory_nodes
		WHERE owner = $1 AND path LIKE $2 || '%'`
	rows, err := p.db.QueryContext(ctx, query, owner, root)
	if err != nil {
		return nil, sharederrors.DatabaseError("known_directories_under", err)
	}
	defer rows.Close()

	var nodes []models.DirectoryNode
	for rows.Next() {
		var n models.DirectoryNode
		if err := rows.Scan(&n.Owner, &n.Path, &n.DirectoryETag, &n.FileCount, &n.TotalSize, &n.UpdatedAt); err != nil {
			return nil, sharederrors.DatabaseError("known_directories_under", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

const sourceColumns = `id, owner, name, type, enabled, config, status, last_sync_at, last_error,
		       files_synced, files_pending, bytes, auto_sync, sync_interval_minutes, created_at, updated_at`

func scanSourceRow(scan func(dest ...interface{}) error) (*models.Source, error) {
	var (
		src        models.Source
		sourceType string
		status     string
		config     []byte
		lastSyncAt sql.NullTime
		lastError  sql.NullString
	)
	err := scan(
		&src.ID, &src.Owner, &src.Name, &sourceType, &src.Enabled, &config, &status,
		&lastSyncAt, &lastError, &src.FilesSynced, &src.FilesPending, &src.Bytes,
		&src.AutoSync, &src.SyncIntervalMinutes, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	src.Type = models.SourceType(sourceType)
	src.Status = models.SourceStatus(status)
	src.LastSyncAt = sqlutil.FromNullTime(lastSyncAt)
	src.LastError = sqlutil.FromNullString(lastError)
	if err := json.Unmarshal(config, &src.Config); err != nil {
		return nil, err
	}
	return &src, nil
}

func (p *Postgres) CreateSource(ctx context.Context, src *models.Source) (*models.Source, error) {
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	if src.Status == "" {
		src.Status = models.SourceStatusIdle
	}
	if verr := validation.NewSourceValidator().Validate(src); verr != nil {
		return nil, verr
	}
	config, err := json.Marshal(src.Config)
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO sources (id, owner, name, type, enabled, config, auto_sync, sync_interval_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING status, created_at, updated_at`
	var status string
	row := p.db.QueryRowContext(ctx, query, src.ID, src.Owner, src.Name, string(src.Type),
		src.Enabled, config, src.AutoSync, src.SyncIntervalMinutes)
	if err := row.Scan(&status, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return nil, sharederrors.DatabaseError("create_source", err)
	}
	src.Status = models.SourceStatus(status)
	return src, nil
}

func (p *Postgres) ListEnabledSources(ctx context.Context) ([]models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE enabled = true`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, sharederrors.DatabaseError("list_enabled_sources", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		src, err := scanSourceRow(rows.Scan)
		if err != nil {
			return nil, sharederrors.DatabaseError("list_enabled_sources", err)
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

func (p *Postgres) GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`
	src, err := scanSourceRow(p.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Resource: "source", ID: id.String()}
	}
	if err != nil {
		return nil, sharederrors.DatabaseError("get_source", err)
	}
	return src, nil
}

func (p *Postgres) UpdateSourceStatus(ctx context.Context, id uuid.UUID, status models.SourceStatus, lastError *string) error {
	query := `UPDATE sources SET status = $2, last_error = $3, updated_at = now() WHERE id = $1`
	_, err := p.db.ExecContext(ctx, query, id, string(status), sqlutil.ToNullString(lastError))
	if err != nil {
		return sharederrors.DatabaseError("update_source_status", err)
	}
	return nil
}

func (p *Postgres) RecordSyncResult(ctx context.Context, id uuid.UUID, filesSynced, bytesTransferred int64, syncedAt time.Time) error {
	query := `
		UPDATE sources
		SET files_synced = files_synced + $2, bytes = bytes + $3, last_sync_at = $4, updated_at = now()
		WHERE id = $1`
	_, err := p.db.ExecContext(ctx, query, id, filesSynced, bytesTransferred, syncedAt)
	if err != nil {
		return sharederrors.DatabaseError("record_sync_result", err)
	}
	return nil
}

func (p *Postgres) CreateFailureRecord(ctx context.Context, rec *models.FailureRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO failure_records (id, owner, filename, failure_reason, failure_stage, existing_document_id, error_message, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.db.ExecContext(ctx, query, rec.ID, rec.Owner, rec.Filename,
		string(rec.FailureReason), string(rec.FailureStage),
		sqlutil.ToNullUUID(rec.ExistingDocumentID), rec.ErrorMessage, rec.RetryCount)
	if err != nil {
		return sharederrors.DatabaseError("create_failure_record", err)
	}
	return nil
}

// CreateIgnoredFile records that content was seen again under policy
// TrackAsDuplicate and was not persisted. (owner, content_hash) is the
// primary key, so a re-seen duplicate overwrites source_id and source_path
// with the latest sighting and refreshes created_at.
func (p *Postgres) CreateIgnoredFile(ctx context.Context, f *models.IgnoredFile) error {
	query := `
		INSERT INTO ignored_files (owner, content_hash, source_id, source_path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, content_hash) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			source_path = EXCLUDED.source_path,
			created_at = now()`
	_, err := p.db.ExecContext(ctx, query, f.Owner, f.ContentHash, sqlutil.ToNullUUID(f.SourceID), f.SourcePath)
	if err != nil {
		return sharederrors.DatabaseError("create_ignored_file", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return sharederrors.DatabaseError("ping", err)
	}
	return nil
}
