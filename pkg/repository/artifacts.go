package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
)

// Artifacts is the tenant-scoped linguistic-artifact repository.
type Artifacts struct {
	db       *sql.DB
	tenantID uuid.UUID
}

// NewArtifacts creates an artifact repository scoped to one tenant.
func NewArtifacts(db *sql.DB, tenantID uuid.UUID) *Artifacts {
	return &Artifacts{db: db, tenantID: tenantID}
}

// ReplaceForDocument atomically replaces the document's artifacts with the
// given set. Stage replays converge on the same rows instead of duplicating.
func (r *Artifacts) ReplaceForDocument(ctx context.Context, documentID string, artifacts []models.LinguisticArtifact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin replace artifacts", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM linguistic_artifacts WHERE document_id = $1 AND tenant_id = $2`,
		documentID, r.tenantID)
	if err != nil {
		return classify("clear artifacts", err)
	}

	for i := range artifacts {
		a := &artifacts[i]
		changes, err := json.Marshal(a.Changes)
		if err != nil {
			return faults.Wrap(faults.KindInternal, "ENCODE_FAILED", "encode normalization changes", err)
		}
		var translation []byte
		if a.Translation != nil {
			if translation, err = json.Marshal(a.Translation); err != nil {
				return faults.Wrap(faults.KindInternal, "ENCODE_FAILED", "encode translation record", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO linguistic_artifacts (
				id, document_id, tenant_id, segment_index, page_number,
				original_text, normalized_text, translated_text,
				language_code, detection_confidence, script,
				normalization_version, changes, translation, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			a.ID, documentID, r.tenantID, a.SegmentIndex, a.PageNumber,
			a.OriginalText, a.NormalizedText, a.TranslatedText,
			a.LanguageCode, a.DetectionConfidence, a.Script,
			a.NormalizationVersion, changes, translation, a.CreatedAt)
		if err != nil {
			return classify("insert artifact", err)
		}
	}

	return classify("commit replace artifacts", tx.Commit())
}

// ListByDocument returns the document's artifacts in segment order.
func (r *Artifacts) ListByDocument(ctx context.Context, documentID string) ([]models.LinguisticArtifact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, document_id, tenant_id, segment_index, page_number,
		       original_text, normalized_text, translated_text,
		       language_code, detection_confidence, script,
		       normalization_version, changes, translation, created_at
		FROM linguistic_artifacts
		WHERE document_id = $1 AND tenant_id = $2
		ORDER BY segment_index`,
		documentID, r.tenantID)
	if err != nil {
		return nil, classify("list artifacts", err)
	}
	defer rows.Close()

	var out []models.LinguisticArtifact
	for rows.Next() {
		var a models.LinguisticArtifact
		var changes, translation []byte
		err := rows.Scan(
			&a.ID, &a.DocumentID, &a.TenantID, &a.SegmentIndex, &a.PageNumber,
			&a.OriginalText, &a.NormalizedText, &a.TranslatedText,
			&a.LanguageCode, &a.DetectionConfidence, &a.Script,
			&a.NormalizationVersion, &changes, &translation, &a.CreatedAt)
		if err != nil {
			return nil, classify("scan artifact", err)
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &a.Changes); err != nil {
				return nil, faults.Wrap(faults.KindInternal, "DECODE_FAILED", "decode normalization changes", err)
			}
		}
		if len(translation) > 0 {
			if err := json.Unmarshal(translation, &a.Translation); err != nil {
				return nil, faults.Wrap(faults.KindInternal, "DECODE_FAILED", "decode translation record", err)
			}
		}
		out = append(out, a)
	}
	return out, classify("list artifacts", rows.Err())
}
