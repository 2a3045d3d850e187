// Package indexing embeds chunk texts and upserts the resulting vectors.
// Upserts are idempotent because point IDs derive deterministically from
// (tenant, chunk).
package indexing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/inference"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/vectorstore"
)

// Upserter is the slice of the vector store indexing needs.
type Upserter interface {
	Upsert(ctx context.Context, tenantID uuid.UUID, points []vectorstore.Point) error
}

// Indexer embeds and upserts a document's chunks in bounded batches.
type Indexer struct {
	cfg      config.IndexingConfig
	embedder inference.Embedder
	store    Upserter
	logger   *slog.Logger
}

func New(cfg config.IndexingConfig, embedder inference.Embedder, store Upserter, logger *slog.Logger) *Indexer {
	return &Indexer{cfg: cfg, embedder: embedder, store: store, logger: logger}
}

// IndexChunks embeds every chunk and upserts the vectors. Returns the
// number of vectors indexed.
func (x *Indexer) IndexChunks(ctx context.Context, tenantID uuid.UUID, documentID string, chunks []models.Chunk) (int, error) {
	indexed := 0
	for start := 0; start < len(chunks); start += x.cfg.BatchSize {
		end := start + x.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := x.embedder.Embed(ctx, texts)
		if err != nil {
			return indexed, err
		}

		points := make([]vectorstore.Point, len(batch))
		for i, c := range batch {
			points[i] = vectorstore.Point{
				Chunk:            c,
				Vector:           vectors[i],
				EmbeddingModel:   x.embedder.Model(),
				EmbeddingVersion: x.embedder.Version(),
			}
		}
		if err := x.store.Upsert(ctx, tenantID, points); err != nil {
			return indexed, err
		}
		indexed += len(batch)
	}

	x.logger.Info("indexing complete",
		"document_id", documentID,
		"tenant_id", tenantID,
		"vectors_indexed", indexed,
		"embedding_model", x.embedder.Model(),
		"embedding_version", x.embedder.Version(),
	)
	return indexed, nil
}
