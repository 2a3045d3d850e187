// Package retrieval is the synchronous vector-search path. The tenant
// predicate is applied inside the vector store and cannot be bypassed from
// here: there is no unfiltered search entry point.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/inference"
	"github.com/waqedi/platform/pkg/vectorstore"
)

// Request is one retrieval call for a tenant.
type Request struct {
	TenantID   uuid.UUID
	Query      string
	TopK       int
	Language   string
	DocumentID string
	MinScore   float64
}

// RetrievedChunk is one ranked search result.
type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Score      float64 `json:"score"`
	PageNumber *int    `json:"page_number,omitempty"`
}

// Searcher is the slice of the vector store retrieval needs. The tenant
// filter lives behind this interface.
type Searcher interface {
	Search(ctx context.Context, tenantID uuid.UUID, params vectorstore.SearchParams) ([]vectorstore.Hit, error)
}

// Retriever embeds queries and searches the tenant's slice of the index.
type Retriever struct {
	cfg      config.RetrievalConfig
	embedder inference.Embedder
	store    Searcher
	logger   *slog.Logger
}

func New(cfg config.RetrievalConfig, embedder inference.Embedder, store Searcher, logger *slog.Logger) *Retriever {
	return &Retriever{cfg: cfg, embedder: embedder, store: store, logger: logger}
}

// effectiveTopK applies the configured default to an unset top_k and
// bounds explicit values.
func (r *Retriever) effectiveTopK(topK int) (int, error) {
	if topK == 0 {
		return r.cfg.DefaultTopK, nil
	}
	if topK < 1 || topK > r.cfg.MaxTopK {
		return 0, faults.Validationf("INVALID_TOP_K", "top_k must be in [1, %d]", r.cfg.MaxTopK)
	}
	return topK, nil
}

// Search embeds the query and returns up to top_k results in descending
// similarity. This is the client-facing entry point.
func (r *Retriever) Search(ctx context.Context, req Request) ([]RetrievedChunk, error) {
	topK, err := r.effectiveTopK(req.TopK)
	if err != nil {
		return nil, err
	}
	chunks, err := r.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks, nil
}

// Retrieve embeds the query and returns up to 2x top_k candidates in
// descending similarity, for downstream reranking. Results whose stored
// embedding version differs from the query-time version are refused rather
// than silently mis-scored.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]RetrievedChunk, error) {
	if req.Query == "" {
		return nil, faults.Validationf("EMPTY_QUERY", "query text is required")
	}
	topK, err := r.effectiveTopK(req.TopK)
	if err != nil {
		return nil, err
	}

	vectors, err := r.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, err
	}

	limit := topK * 2
	if limit > r.cfg.OverfetchCap {
		limit = r.cfg.OverfetchCap
	}
	minScore := req.MinScore
	if minScore <= 0 {
		minScore = r.cfg.MinRelevanceScore
	}

	hits, err := r.store.Search(ctx, req.TenantID, vectorstore.SearchParams{
		Vector:     vectors[0],
		Limit:      limit,
		Language:   req.Language,
		DocumentID: req.DocumentID,
		MinScore:   minScore,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		if h.EmbeddingVersion != "" && h.EmbeddingVersion != r.embedder.Version() {
			return nil, faults.Validationf("EMBEDDING_VERSION_MISMATCH",
				"index holds vectors for embedding version %q, query embedded with %q; reindex required",
				h.EmbeddingVersion, r.embedder.Version())
		}
		chunks = append(chunks, RetrievedChunk{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Text:       h.Text,
			Language:   h.Language,
			Score:      h.Score,
			PageNumber: h.PageNumber,
		})
	}

	r.logger.Debug("retrieval complete",
		"tenant_id", req.TenantID,
		"top_k", topK,
		"overfetch_limit", limit,
		"hits", len(chunks),
	)
	return chunks, nil
}
