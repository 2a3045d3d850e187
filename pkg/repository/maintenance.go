package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/waqedi/platform/pkg/models"
)

// Maintenance runs cross-tenant purge statements for the retention job.
// It is the only repository that is not tenant-scoped.
type Maintenance struct {
	db *sql.DB
}

// NewMaintenance creates the maintenance repository.
func NewMaintenance(db *sql.DB) *Maintenance {
	return &Maintenance{db: db}
}

// PurgeDeletedDocuments physically removes document rows soft-deleted
// before the cutoff. Stage rows go with them via cascade. Rows under
// legal hold are never purged.
func (r *Maintenance) PurgeDeletedDocuments(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE status = $1 AND deleted_at < $2 AND legal_hold = FALSE`,
		models.StatusDeleted, cutoff)
	if err != nil {
		return 0, classify("purge deleted documents", err)
	}
	return res.RowsAffected()
}

// PurgeOldTraces removes reasoning traces created before the cutoff.
func (r *Maintenance) PurgeOldTraces(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM reasoning_traces
		WHERE created_at < $1`,
		cutoff)
	if err != nil {
		return 0, classify("purge old traces", err)
	}
	return res.RowsAffected()
}
