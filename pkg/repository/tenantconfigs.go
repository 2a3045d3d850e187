package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/models"
)

// TranslationConfigs stores the per-tenant translation policy. Tenants
// without a stored row fall back to the deployment default; that fallback
// lives in the language service, not here.
type TranslationConfigs struct {
	db       *sql.DB
	tenantID uuid.UUID
}

// NewTranslationConfigs creates a config repository scoped to one tenant.
func NewTranslationConfigs(db *sql.DB, tenantID uuid.UUID) *TranslationConfigs {
	return &TranslationConfigs{db: db, tenantID: tenantID}
}

// Get returns the tenant's translation policy, or a not-found fault when
// none is stored.
func (r *TranslationConfigs) Get(ctx context.Context) (*models.TranslationConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT strategy, canonical_language, translate_on_ingest
		FROM tenant_translation_configs
		WHERE tenant_id = $1`,
		r.tenantID)

	var cfg models.TranslationConfig
	if err := row.Scan(&cfg.Strategy, &cfg.CanonicalLanguage, &cfg.TranslateOnIngest); err != nil {
		return nil, classify("get translation config", err)
	}
	return &cfg, nil
}

// Upsert stores or replaces the tenant's translation policy.
func (r *TranslationConfigs) Upsert(ctx context.Context, cfg *models.TranslationConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_translation_configs (tenant_id, strategy, canonical_language, translate_on_ingest, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			strategy = EXCLUDED.strategy,
			canonical_language = EXCLUDED.canonical_language,
			translate_on_ingest = EXCLUDED.translate_on_ingest,
			updated_at = now()`,
		r.tenantID, cfg.Strategy, cfg.CanonicalLanguage, cfg.TranslateOnIngest)
	return classify("upsert translation config", err)
}
