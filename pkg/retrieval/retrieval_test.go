package retrieval

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/vectorstore"
)

type stubEmbedder struct {
	version string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}
func (s *stubEmbedder) Model() string   { return "stub-embed" }
func (s *stubEmbedder) Version() string { return s.version }
func (s *stubEmbedder) Dim() int        { return 3 }

type stubSearcher struct {
	hits       []vectorstore.Hit
	lastTenant uuid.UUID
	lastParams vectorstore.SearchParams
}

func (s *stubSearcher) Search(_ context.Context, tenantID uuid.UUID, params vectorstore.SearchParams) ([]vectorstore.Hit, error) {
	s.lastTenant = tenantID
	s.lastParams = params
	return s.hits, nil
}

func testRetriever(store *stubSearcher) *Retriever {
	cfg := config.RetrievalConfig{
		MinRelevanceScore: 0.35,
		DefaultTopK:       5,
		MaxTopK:           20,
		OverfetchCap:      30,
	}
	return New(cfg, &stubEmbedder{version: "v1"}, store, slog.Default())
}

func TestRetrieve(t *testing.T) {
	tenantID := uuid.New()

	t.Run("passes tenant and overfetch limit", func(t *testing.T) {
		store := &stubSearcher{hits: []vectorstore.Hit{
			{ChunkID: "chunk_a", DocumentID: "doc_1", Score: 0.9, EmbeddingVersion: "v1"},
			{ChunkID: "chunk_b", DocumentID: "doc_2", Score: 0.7, EmbeddingVersion: "v1"},
		}}
		r := testRetriever(store)

		chunks, err := r.Retrieve(context.Background(), Request{
			TenantID: tenantID,
			Query:    "deadline for the annual report",
			TopK:     5,
			Language: "en",
		})
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
		assert.Equal(t, tenantID, store.lastTenant)
		assert.Equal(t, 10, store.lastParams.Limit)
		assert.Equal(t, "en", store.lastParams.Language)
		assert.InDelta(t, 0.35, store.lastParams.MinScore, 0.001)
		assert.Equal(t, "chunk_a", chunks[0].ChunkID)
	})

	t.Run("overfetch capped", func(t *testing.T) {
		store := &stubSearcher{}
		r := testRetriever(store)
		_, err := r.Retrieve(context.Background(), Request{TenantID: tenantID, Query: "q", TopK: 20})
		require.NoError(t, err)
		assert.Equal(t, 30, store.lastParams.Limit)
	})

	t.Run("request min score overrides default", func(t *testing.T) {
		store := &stubSearcher{}
		r := testRetriever(store)
		_, err := r.Retrieve(context.Background(), Request{TenantID: tenantID, Query: "q", TopK: 3, MinScore: 0.6})
		require.NoError(t, err)
		assert.InDelta(t, 0.6, store.lastParams.MinScore, 0.001)
	})

	t.Run("embedding version mismatch refused", func(t *testing.T) {
		store := &stubSearcher{hits: []vectorstore.Hit{
			{ChunkID: "chunk_old", EmbeddingVersion: "v0"},
		}}
		r := testRetriever(store)
		_, err := r.Retrieve(context.Background(), Request{TenantID: tenantID, Query: "q", TopK: 3})
		require.Error(t, err)
		assert.Equal(t, "EMBEDDING_VERSION_MISMATCH", faults.CodeOf(err))
		assert.Equal(t, faults.KindValidation, faults.KindOf(err))
	})

	t.Run("unset top_k defaults", func(t *testing.T) {
		store := &stubSearcher{hits: []vectorstore.Hit{
			{ChunkID: "chunk_a", EmbeddingVersion: "v1", Score: 0.9},
		}}
		r := testRetriever(store)
		chunks, err := r.Retrieve(context.Background(), Request{
			TenantID: tenantID,
			Query:    "What is the capital of France?",
		})
		require.NoError(t, err)
		assert.Len(t, chunks, 1)
		assert.Equal(t, 10, store.lastParams.Limit, "default top_k of 5, doubled for overfetch")
	})

	t.Run("rejects empty query and bad top_k", func(t *testing.T) {
		r := testRetriever(&stubSearcher{})
		_, err := r.Retrieve(context.Background(), Request{TenantID: tenantID, TopK: 3})
		assert.Equal(t, "EMPTY_QUERY", faults.CodeOf(err))

		_, err = r.Retrieve(context.Background(), Request{TenantID: tenantID, Query: "q", TopK: 21})
		assert.Equal(t, "INVALID_TOP_K", faults.CodeOf(err))

		_, err = r.Retrieve(context.Background(), Request{TenantID: tenantID, Query: "q", TopK: -1})
		assert.Equal(t, "INVALID_TOP_K", faults.CodeOf(err))
	})
}

func TestSearchTruncatesToTopK(t *testing.T) {
	tenantID := uuid.New()
	store := &stubSearcher{}
	for i := 0; i < 6; i++ {
		store.hits = append(store.hits, vectorstore.Hit{
			ChunkID:          models.NewChunkID(),
			EmbeddingVersion: "v1",
			Score:            0.9 - float64(i)*0.05,
		})
	}
	r := testRetriever(store)

	out, err := r.Search(context.Background(), Request{TenantID: tenantID, Query: "q", TopK: 3})
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, store.hits[0].ChunkID, out[0].ChunkID, "highest-scoring hits survive the cut")
	assert.Equal(t, 6, store.lastParams.Limit, "overfetch stays internal")

	out, err = r.Search(context.Background(), Request{TenantID: tenantID, Query: "q"})
	require.NoError(t, err)
	assert.Len(t, out, 5, "unset top_k truncates at the default")
}
