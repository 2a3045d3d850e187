package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/models"
)

// Chunks is the tenant-scoped chunk repository.
type Chunks struct {
	db       *sql.DB
	tenantID uuid.UUID
}

// NewChunks creates a chunk repository scoped to one tenant.
func NewChunks(db *sql.DB, tenantID uuid.UUID) *Chunks {
	return &Chunks{db: db, tenantID: tenantID}
}

// ReplaceForDocument atomically replaces the document's chunks. Chunk
// indices must be dense from 0; the unique (document_id, chunk_index)
// constraint rejects duplicates.
func (r *Chunks) ReplaceForDocument(ctx context.Context, documentID string, chunks []models.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin replace chunks", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = $1 AND tenant_id = $2`,
		documentID, r.tenantID)
	if err != nil {
		return classify("clear chunks", err)
	}

	now := time.Now().UTC()
	for i := range chunks {
		c := &chunks[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (
				chunk_id, document_id, tenant_id, chunk_index,
				text, language, token_count, page_number, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ChunkID, documentID, r.tenantID, c.ChunkIndex,
			c.Text, c.Language, c.TokenCount, c.PageNumber, now)
		if err != nil {
			return classify("insert chunk", err)
		}
	}

	return classify("commit replace chunks", tx.Commit())
}

// ListByDocument returns the document's chunks in index order.
func (r *Chunks) ListByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, tenant_id, chunk_index,
		       text, language, token_count, page_number
		FROM chunks
		WHERE document_id = $1 AND tenant_id = $2
		ORDER BY chunk_index`,
		documentID, r.tenantID)
	if err != nil {
		return nil, classify("list chunks", err)
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		var c models.Chunk
		err := rows.Scan(
			&c.ChunkID, &c.DocumentID, &c.TenantID, &c.ChunkIndex,
			&c.Text, &c.Language, &c.TokenCount, &c.PageNumber)
		if err != nil {
			return nil, classify("scan chunk", err)
		}
		out = append(out, c)
	}
	return out, classify("list chunks", rows.Err())
}

// CountByDocument returns the number of stored chunks for a document.
func (r *Chunks) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1 AND tenant_id = $2`,
		documentID, r.tenantID).Scan(&n)
	if err != nil {
		return 0, classify("count chunks", err)
	}
	return n, nil
}
