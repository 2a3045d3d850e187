package pipeline

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/bus"
	"github.com/waqedi/platform/pkg/chunking"
	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/extraction"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/indexing"
	"github.com/waqedi/platform/pkg/language"
	"github.com/waqedi/platform/pkg/models"
)

// Stage names, used for consumer groups and the --stages flag.
const (
	StageExtraction = "extraction"
	StageChunking   = "chunking"
	StageIndexing   = "indexing"
)

// DocumentStore is the per-tenant document surface the stages need.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	Transition(ctx context.Context, id string, next models.DocumentStatus) (*models.Document, error)
	SetLanguage(ctx context.Context, id, language string) error
}

// ExtractionStore persists extraction output, satisfied by
// repository.Extractions.
type ExtractionStore interface {
	Create(ctx context.Context, res *models.ExtractionResult) (bool, error)
	GetByDocument(ctx context.Context, documentID string) (*models.ExtractionResult, error)
}

// ArtifactStore persists language processing output.
type ArtifactStore interface {
	ReplaceForDocument(ctx context.Context, documentID string, artifacts []models.LinguisticArtifact) error
}

// ChunkStore persists chunking output.
type ChunkStore interface {
	ReplaceForDocument(ctx context.Context, documentID string, chunks []models.Chunk) error
	ListByDocument(ctx context.Context, documentID string) ([]models.Chunk, error)
}

// TranslationConfigStore reads the tenant translation policy.
type TranslationConfigStore interface {
	Get(ctx context.Context) (*models.TranslationConfig, error)
}

// BlobGetter reads document payloads from the object store.
type BlobGetter interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ExtractionStage consumes document.uploaded and emits document.extracted.
type ExtractionStage struct {
	extractor   *extraction.Extractor
	blobs       BlobGetter
	docs        func(uuid.UUID) DocumentStore
	extractions func(uuid.UUID) ExtractionStore
	logger      *slog.Logger
}

// NewExtractionStage wires the extraction consumer.
func NewExtractionStage(extractor *extraction.Extractor, blobs BlobGetter, docs func(uuid.UUID) DocumentStore, extractions func(uuid.UUID) ExtractionStore, logger *slog.Logger) *ExtractionStage {
	return &ExtractionStage{
		extractor:   extractor,
		blobs:       blobs,
		docs:        docs,
		extractions: extractions,
		logger:      logger,
	}
}

func (s *ExtractionStage) Stage() string { return StageExtraction }

func (s *ExtractionStage) Accepts(eventType string) bool {
	return eventType == bus.EventDocumentUploaded
}

func (s *ExtractionStage) FailureEventType() string {
	return bus.EventDocumentExtractionFailed
}

func (s *ExtractionStage) Handle(ctx context.Context, env bus.Envelope) ([]bus.Envelope, error) {
	var ev bus.DocumentUploaded
	if err := env.DecodePayload(&ev); err != nil {
		return nil, err
	}

	store := s.extractions(env.TenantID)
	existing, err := store.GetByDocument(ctx, ev.DocumentID)
	if err == nil {
		// Replay: the stage already ran for this document. Republish the
		// downstream event so the rest of the pipeline catches up.
		s.logger.Info("Extraction already exists, republishing",
			"document_id", ev.DocumentID, "extraction_id", existing.ID)
		return extractedEnvelopes(env, existing)
	}
	if faults.KindOf(err) != faults.KindNotFound {
		return nil, err
	}

	docs := s.docs(env.TenantID)
	doc, err := docs.Transition(ctx, ev.DocumentID, models.StatusProcessing)
	if faults.KindOf(err) == faults.KindConflict {
		// Already PROCESSING from an interrupted run.
		doc, err = docs.Get(ctx, ev.DocumentID)
	}
	if err != nil {
		return nil, err
	}

	rc, err := s.blobs.Get(ctx, ev.StorageKey)
	if err != nil {
		return nil, err
	}
	blob, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, faults.Transientf("BLOB_READ_FAILED", err, "read %s", ev.StorageKey)
	}

	res, err := s.extractor.Extract(ctx, doc, blob)
	if err != nil {
		return nil, err
	}
	if _, err := store.Create(ctx, res); err != nil {
		return nil, err
	}
	return extractedEnvelopes(env, res)
}

func extractedEnvelopes(env bus.Envelope, res *models.ExtractionResult) ([]bus.Envelope, error) {
	out, err := bus.NewEnvelope(bus.EventDocumentExtracted, env.TenantID, env.CorrelationID,
		bus.DocumentExtracted{
			DocumentID:       res.DocumentID,
			ExtractionID:     res.ID,
			ExtractionType:   res.Type,
			Text:             res.FullText,
			PageCount:        res.PageCount,
			Language:         res.DetectedLanguage,
			Confidence:       res.MeanConfidence,
			ProcessingTimeMS: res.ProcessingTimeMS,
		})
	if err != nil {
		return nil, err
	}
	return []bus.Envelope{out}, nil
}

// ChunkingStage consumes document.extracted, runs language processing over
// the extraction's segments, persists the artifacts, chunks them, and emits
// document.chunked.
type ChunkingStage struct {
	processor    *language.Processor
	chunker      *chunking.Chunker
	strategy     config.ChunkingStrategy
	docs         func(uuid.UUID) DocumentStore
	extractions  func(uuid.UUID) ExtractionStore
	artifacts    func(uuid.UUID) ArtifactStore
	chunks       func(uuid.UUID) ChunkStore
	translations func(uuid.UUID) TranslationConfigStore
	logger       *slog.Logger
}

// NewChunkingStage wires the combined language+chunking consumer.
func NewChunkingStage(cfg config.ChunkingConfig, processor *language.Processor, docs func(uuid.UUID) DocumentStore, extractions func(uuid.UUID) ExtractionStore, artifacts func(uuid.UUID) ArtifactStore, chunks func(uuid.UUID) ChunkStore, translations func(uuid.UUID) TranslationConfigStore, logger *slog.Logger) *ChunkingStage {
	return &ChunkingStage{
		processor:    processor,
		chunker:      chunking.New(cfg),
		strategy:     cfg.Strategy,
		docs:         docs,
		extractions:  extractions,
		artifacts:    artifacts,
		chunks:       chunks,
		translations: translations,
		logger:       logger,
	}
}

func (s *ChunkingStage) Stage() string { return StageChunking }

func (s *ChunkingStage) Accepts(eventType string) bool {
	return eventType == bus.EventDocumentExtracted
}

func (s *ChunkingStage) FailureEventType() string {
	return bus.EventDocumentChunkingFailed
}

func (s *ChunkingStage) Handle(ctx context.Context, env bus.Envelope) ([]bus.Envelope, error) {
	var ev bus.DocumentExtracted
	if err := env.DecodePayload(&ev); err != nil {
		return nil, err
	}

	chunkStore := s.chunks(env.TenantID)
	if existing, err := chunkStore.ListByDocument(ctx, ev.DocumentID); err != nil {
		return nil, err
	} else if len(existing) > 0 {
		s.logger.Info("Chunks already exist, republishing",
			"document_id", ev.DocumentID, "chunk_count", len(existing))
		return chunkedEnvelopes(env, ev.DocumentID, string(s.strategy), existing)
	}

	tenantCfg, err := s.translations(env.TenantID).Get(ctx)
	if err != nil {
		if faults.KindOf(err) != faults.KindNotFound {
			return nil, err
		}
		tenantCfg = nil
	}

	res, err := s.extractions(env.TenantID).GetByDocument(ctx, ev.DocumentID)
	if err != nil {
		return nil, err
	}

	segments := language.SegmentExtraction(res)
	artifacts, primary, err := s.processor.Process(ctx, env.TenantID, ev.DocumentID, segments, tenantCfg)
	if err != nil {
		return nil, err
	}
	if err := s.artifacts(env.TenantID).ReplaceForDocument(ctx, ev.DocumentID, artifacts); err != nil {
		return nil, err
	}
	if err := s.docs(env.TenantID).SetLanguage(ctx, ev.DocumentID, primary); err != nil {
		return nil, err
	}

	chunks := s.chunker.ChunkArtifacts(env.TenantID, ev.DocumentID, artifacts)
	if err := chunkStore.ReplaceForDocument(ctx, ev.DocumentID, chunks); err != nil {
		return nil, err
	}
	return chunkedEnvelopes(env, ev.DocumentID, string(s.strategy), chunks)
}

func chunkedEnvelopes(env bus.Envelope, documentID, strategy string, chunks []models.Chunk) ([]bus.Envelope, error) {
	projected := make([]bus.EventChunk, len(chunks))
	for i, c := range chunks {
		projected[i] = bus.EventChunk{
			ChunkID:    c.ChunkID,
			Index:      c.ChunkIndex,
			Text:       c.Text,
			TokenCount: c.TokenCount,
			PageNumber: c.PageNumber,
			Language:   c.Language,
		}
	}
	out, err := bus.NewEnvelope(bus.EventDocumentChunked, env.TenantID, env.CorrelationID,
		bus.DocumentChunked{
			DocumentID: documentID,
			ChunkCount: len(chunks),
			Strategy:   strategy,
			Chunks:     projected,
		})
	if err != nil {
		return nil, err
	}
	return []bus.Envelope{out}, nil
}

// IndexingStage consumes document.chunked, embeds and upserts, then moves
// the document to PROCESSED and emits document.indexed.
type IndexingStage struct {
	indexer    *indexing.Indexer
	collection string
	docs       func(uuid.UUID) DocumentStore
	logger     *slog.Logger
}

// NewIndexingStage wires the indexing consumer. collection names the
// vector collection for the document.indexed payload.
func NewIndexingStage(indexer *indexing.Indexer, collection string, docs func(uuid.UUID) DocumentStore, logger *slog.Logger) *IndexingStage {
	return &IndexingStage{
		indexer:    indexer,
		collection: collection,
		docs:       docs,
		logger:     logger,
	}
}

func (s *IndexingStage) Stage() string { return StageIndexing }

func (s *IndexingStage) Accepts(eventType string) bool {
	return eventType == bus.EventDocumentChunked
}

func (s *IndexingStage) FailureEventType() string {
	return bus.EventDocumentIndexingFailed
}

func (s *IndexingStage) Handle(ctx context.Context, env bus.Envelope) ([]bus.Envelope, error) {
	var ev bus.DocumentChunked
	if err := env.DecodePayload(&ev); err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, len(ev.Chunks))
	for i, c := range ev.Chunks {
		chunks[i] = models.Chunk{
			ChunkID:    c.ChunkID,
			DocumentID: ev.DocumentID,
			TenantID:   env.TenantID,
			Text:       c.Text,
			Language:   c.Language,
			TokenCount: c.TokenCount,
			PageNumber: c.PageNumber,
			ChunkIndex: c.Index,
		}
	}

	// Point IDs are deterministic, so a replayed upsert overwrites the
	// same vectors instead of duplicating them.
	indexed, err := s.indexer.IndexChunks(ctx, env.TenantID, ev.DocumentID, chunks)
	if err != nil {
		return nil, err
	}

	if _, err := s.docs(env.TenantID).Transition(ctx, ev.DocumentID, models.StatusProcessed); err != nil {
		if faults.KindOf(err) != faults.KindConflict {
			return nil, err
		}
		// Replay: already PROCESSED.
	}

	out, err := bus.NewEnvelope(bus.EventDocumentIndexed, env.TenantID, env.CorrelationID,
		bus.DocumentIndexed{
			DocumentID:     ev.DocumentID,
			VectorsIndexed: indexed,
			Collection:     s.collection,
		})
	if err != nil {
		return nil, err
	}
	return []bus.Envelope{out}, nil
}
