package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
)

// Extractions is the tenant-scoped extraction-result repository.
type Extractions struct {
	db       *sql.DB
	tenantID uuid.UUID
}

// NewExtractions creates an extraction repository scoped to one tenant.
func NewExtractions(db *sql.DB, tenantID uuid.UUID) *Extractions {
	return &Extractions{db: db, tenantID: tenantID}
}

// Create writes the extraction result for a document. Results are written
// exactly once; replaying the same document is a no-op and returns false.
func (r *Extractions) Create(ctx context.Context, res *models.ExtractionResult) (bool, error) {
	pages, err := json.Marshal(res.Pages)
	if err != nil {
		return false, faults.Wrap(faults.KindInternal, "ENCODE_FAILED", "encode pages", err)
	}
	segments, err := json.Marshal(res.Segments)
	if err != nil {
		return false, faults.Wrap(faults.KindInternal, "ENCODE_FAILED", "encode segments", err)
	}

	out, err := r.db.ExecContext(ctx, `
		INSERT INTO extraction_results (
			id, document_id, tenant_id, extraction_type, full_text,
			pages, segments, page_count, mean_confidence,
			detected_language, model_version, processing_time_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (document_id) DO NOTHING`,
		res.ID, res.DocumentID, r.tenantID, res.Type, res.FullText,
		pages, segments, res.PageCount, res.MeanConfidence,
		res.DetectedLanguage, res.ModelVersion, res.ProcessingTimeMS, res.CreatedAt)
	if err != nil {
		return false, classify("create extraction result", err)
	}

	n, err := out.RowsAffected()
	if err != nil {
		return false, classify("create extraction result", err)
	}
	return n > 0, nil
}

// GetByDocument returns the extraction result for a document.
func (r *Extractions) GetByDocument(ctx context.Context, documentID string) (*models.ExtractionResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, document_id, tenant_id, extraction_type, full_text,
		       pages, segments, page_count, mean_confidence,
		       detected_language, model_version, processing_time_ms, created_at
		FROM extraction_results
		WHERE document_id = $1 AND tenant_id = $2`,
		documentID, r.tenantID)

	var res models.ExtractionResult
	var pages, segments []byte
	err := row.Scan(
		&res.ID, &res.DocumentID, &res.TenantID, &res.Type, &res.FullText,
		&pages, &segments, &res.PageCount, &res.MeanConfidence,
		&res.DetectedLanguage, &res.ModelVersion, &res.ProcessingTimeMS, &res.CreatedAt)
	if err != nil {
		return nil, classify("get extraction result", err)
	}
	if len(pages) > 0 {
		if err := json.Unmarshal(pages, &res.Pages); err != nil {
			return nil, faults.Wrap(faults.KindInternal, "DECODE_FAILED", "decode pages", err)
		}
	}
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &res.Segments); err != nil {
			return nil, faults.Wrap(faults.KindInternal, "DECODE_FAILED", "decode segments", err)
		}
	}
	return &res, nil
}
