package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
)

// Traces is the tenant-scoped reasoning-trace repository. One trace is
// written per answering call for auditability.
type Traces struct {
	db       *sql.DB
	tenantID uuid.UUID
}

// NewTraces creates a trace repository scoped to one tenant.
func NewTraces(db *sql.DB, tenantID uuid.UUID) *Traces {
	return &Traces{db: db, tenantID: tenantID}
}

// Create persists a reasoning trace.
func (r *Traces) Create(ctx context.Context, t *models.ReasoningTrace) error {
	retrieved, err := json.Marshal(t.RetrievedChunks)
	if err != nil {
		return faults.Wrap(faults.KindInternal, "ENCODE_FAILED", "encode retrieved chunks", err)
	}
	citations, err := json.Marshal(t.Citations)
	if err != nil {
		return faults.Wrap(faults.KindInternal, "ENCODE_FAILED", "encode citations", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reasoning_traces (
			trace_id, tenant_id, query, retrieved_chunks,
			context_tokens, prompt_tokens, answer, citations,
			confidence, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.TraceID, r.tenantID, t.Query, retrieved,
		t.ContextTokens, t.PromptTokens, t.Answer, citations,
		t.Confidence, t.LatencyMS, t.CreatedAt)
	return classify("create reasoning trace", err)
}

// Get returns one trace by ID.
func (r *Traces) Get(ctx context.Context, traceID string) (*models.ReasoningTrace, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT trace_id, tenant_id, query, retrieved_chunks,
		       context_tokens, prompt_tokens, answer, citations,
		       confidence, latency_ms, created_at
		FROM reasoning_traces
		WHERE trace_id = $1 AND tenant_id = $2`,
		traceID, r.tenantID)

	var t models.ReasoningTrace
	var retrieved, citations []byte
	err := row.Scan(
		&t.TraceID, &t.TenantID, &t.Query, &retrieved,
		&t.ContextTokens, &t.PromptTokens, &t.Answer, &citations,
		&t.Confidence, &t.LatencyMS, &t.CreatedAt)
	if err != nil {
		return nil, classify("get reasoning trace", err)
	}
	if len(retrieved) > 0 {
		if err := json.Unmarshal(retrieved, &t.RetrievedChunks); err != nil {
			return nil, faults.Wrap(faults.KindInternal, "DECODE_FAILED", "decode retrieved chunks", err)
		}
	}
	if len(citations) > 0 {
		if err := json.Unmarshal(citations, &t.Citations); err != nil {
			return nil, faults.Wrap(faults.KindInternal, "DECODE_FAILED", "decode citations", err)
		}
	}
	return &t, nil
}
