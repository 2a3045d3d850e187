package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
)

// Documents is the tenant-scoped document repository.
type Documents struct {
	db       *sql.DB
	tenantID uuid.UUID
}

// NewDocuments creates a document repository scoped to one tenant.
func NewDocuments(db *sql.DB, tenantID uuid.UUID) *Documents {
	return &Documents{db: db, tenantID: tenantID}
}

const documentColumns = `id, tenant_id, uploader_id, department_id, collection_id,
	filename, content_type, size_bytes, sha256, file_category, language,
	status, retention_policy, legal_hold, storage_bucket, storage_key,
	uploaded_at, validated_at, processed_at, archived_at, deleted_at`

// Create inserts a new document row.
func (r *Documents) Create(ctx context.Context, d *models.Document) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		d.ID, r.tenantID, d.UploaderID, d.DepartmentID, d.CollectionID,
		d.Filename, d.ContentType, d.SizeBytes, d.SHA256, d.FileCategory, d.Language,
		d.Status, d.RetentionPolicy, d.LegalHold, d.StorageBucket, d.StorageKey,
		d.UploadedAt, d.ValidatedAt, d.ProcessedAt, d.ArchivedAt, d.DeletedAt)
	return classify("create document", err)
}

// Get returns a document by ID. Soft-deleted documents are not visible.
func (r *Documents) Get(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1 AND tenant_id = $2 AND status <> $3`,
		id, r.tenantID, models.StatusDeleted)
	return scanDocument(row)
}

// ListOptions filters and paginates document listings.
type ListOptions struct {
	// Status filters to one lifecycle state when non-empty.
	Status models.DocumentStatus
	// Cursor is the document ID to continue after (exclusive).
	Cursor string
	Limit  int
}

// List returns documents newest-first with cursor pagination. The returned
// cursor is empty when no further page exists. Document IDs carry a
// millisecond timestamp prefix, so ordering by ID is ordering by creation.
func (r *Documents) List(ctx context.Context, opts ListOptions) ([]*models.Document, string, error) {
	limit := opts.Limit
	if limit < 1 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE tenant_id = $1
		  AND status <> $2
		  AND ($3 = '' OR status = $3)
		  AND ($4 = '' OR id < $4)
		ORDER BY id DESC
		LIMIT $5`,
		r.tenantID, models.StatusDeleted, string(opts.Status), opts.Cursor, limit+1)
	if err != nil {
		return nil, "", classify("list documents", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, "", err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, "", classify("list documents", err)
	}

	var next string
	if len(docs) > limit {
		docs = docs[:limit]
		next = docs[len(docs)-1].ID
	}
	return docs, next, nil
}

// Transition atomically moves a document through the lifecycle state
// machine, stamping the matching timestamp column. Illegal transitions and
// legal-hold violations surface as conflicts without modifying the row.
func (r *Documents) Transition(ctx context.Context, id string, next models.DocumentStatus) (*models.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin transition", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE`,
		id, r.tenantID)
	d, err := scanDocument(row)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := d.TransitionTo(next, now); err != nil {
		var hold *models.LegalHoldViolation
		if errors.As(err, &hold) {
			return nil, faults.Wrap(faults.KindConflict, "LEGAL_HOLD", err.Error(), err)
		}
		return nil, faults.Wrap(faults.KindConflict, "ILLEGAL_TRANSITION", err.Error(), err)
	}

	if col := models.TimestampColumn(next); col != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET status = $1, `+col+` = $2 WHERE id = $3 AND tenant_id = $4`,
			d.Status, now, id, r.tenantID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET status = $1 WHERE id = $2 AND tenant_id = $3`,
			d.Status, id, r.tenantID)
	}
	if err != nil {
		return nil, classify("update document status", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("commit transition", err)
	}
	return d, nil
}

// SetLanguage stamps the dominant detected language on a document.
func (r *Documents) SetLanguage(ctx context.Context, id, language string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET language = $1 WHERE id = $2 AND tenant_id = $3`,
		language, id, r.tenantID)
	if err != nil {
		return classify("set document language", err)
	}
	return requireRow(res, "set document language")
}

// SetLegalHold toggles the legal-hold flag. Held documents cannot be deleted.
func (r *Documents) SetLegalHold(ctx context.Context, id string, hold bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET legal_hold = $1 WHERE id = $2 AND tenant_id = $3 AND status <> $4`,
		hold, id, r.tenantID, models.StatusDeleted)
	if err != nil {
		return classify("set legal hold", err)
	}
	return requireRow(res, "set legal hold")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return faults.New(faults.KindNotFound, "NOT_FOUND", op+": no matching document")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.ID, &d.TenantID, &d.UploaderID, &d.DepartmentID, &d.CollectionID,
		&d.Filename, &d.ContentType, &d.SizeBytes, &d.SHA256, &d.FileCategory, &d.Language,
		&d.Status, &d.RetentionPolicy, &d.LegalHold, &d.StorageBucket, &d.StorageKey,
		&d.UploadedAt, &d.ValidatedAt, &d.ProcessedAt, &d.ArchivedAt, &d.DeletedAt)
	if err != nil {
		return nil, classify("scan document", err)
	}
	return &d, nil
}
