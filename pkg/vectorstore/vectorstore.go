// Package vectorstore wraps the Qdrant collection shared by all tenants.
// Isolation is enforced by payload filtering: every point carries tenant_id
// and every search this package can express filters on it.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
)

// pointNamespace is the UUIDv5 namespace for deriving point IDs. Qdrant
// accepts only UUID or integer point IDs, so the composite key
// {tenant_id}_{chunk_id} is hashed into a UUID and kept verbatim in the
// payload for lookups.
var pointNamespace = uuid.MustParse("8f9e6c1a-2b4d-4e7f-9a3c-5d8b0e1f2a3b")

// PointID derives the deterministic vector ID for a chunk.
func PointID(tenantID uuid.UUID, chunkID string) uuid.UUID {
	return uuid.NewSHA1(pointNamespace, []byte(tenantID.String()+"_"+chunkID))
}

// Point is one vector with its retrieval payload.
type Point struct {
	Chunk            models.Chunk
	Vector           []float32
	EmbeddingModel   string
	EmbeddingVersion string
}

// Hit is one search result.
type Hit struct {
	ChunkID          string
	DocumentID       string
	Text             string
	Language         string
	Score            float64
	PageNumber       *int
	EmbeddingVersion string
}

// SearchParams narrows a vector search. TenantID is implicit: the store
// adds it to every filter and callers cannot remove it.
type SearchParams struct {
	Vector     []float32
	Limit      int
	Language   string
	DocumentID string
	MinScore   float64
}

// Store is the Qdrant-backed vector index.
type Store struct {
	client     *qdrant.Client
	collection string
	dim        int
}

// New connects to Qdrant and ensures the shared collection exists with its
// payload indexes.
func New(ctx context.Context, cfg config.VectorStoreConfig, dim int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vector store: %w", err)
	}

	s := &Store{client: client, collection: cfg.CollectionName(), dim: dim}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Collection returns the shared collection name.
func (s *Store) Collection() string {
	return s.collection
}

// Ping reports whether Qdrant is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return faults.Transientf("VECTORSTORE_UNAVAILABLE", err, "qdrant health check")
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return faults.Transientf("VECTORSTORE_UNAVAILABLE", err, "check collection %s", s.collection)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return faults.Transientf("VECTORSTORE_UNAVAILABLE", err, "create collection %s", s.collection)
		}
	}

	// Keyword indexes back the mandatory tenant filter and the
	// per-document delete path.
	for _, field := range []string{"tenant_id", "document_id", "language"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return faults.Transientf("VECTORSTORE_UNAVAILABLE", err, "index payload field %s", field)
		}
	}
	return nil
}

// Upsert writes one batch of points. Re-upserting a chunk overwrites its
// previous vector because point IDs are deterministic.
func (s *Store) Upsert(ctx context.Context, tenantID uuid.UUID, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	indexedAt := time.Now().UTC()
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if len(p.Vector) != s.dim {
			return faults.New(faults.KindTerminal, "DIMENSION_MISMATCH",
				fmt.Sprintf("vector for %s has %d dims, collection expects %d", p.Chunk.ChunkID, len(p.Vector), s.dim))
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(tenantID, p.Chunk.ChunkID).String()),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(pointPayload(tenantID, p, indexedAt)),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return faults.Transientf("VECTORSTORE_UNAVAILABLE", err, "upsert %d points", len(structs))
	}
	return nil
}

// pointPayload builds the retrieval payload for one point. indexedAt is
// recorded as ingestion_timestamp so reindexing a chunk refreshes it.
func pointPayload(tenantID uuid.UUID, p Point, indexedAt time.Time) map[string]any {
	payload := map[string]any{
		"point_key":           tenantID.String() + "_" + p.Chunk.ChunkID,
		"chunk_id":            p.Chunk.ChunkID,
		"document_id":         p.Chunk.DocumentID,
		"tenant_id":           tenantID.String(),
		"text":                p.Chunk.Text,
		"language":            p.Chunk.Language,
		"chunk_index":         int64(p.Chunk.ChunkIndex),
		"token_count":         int64(p.Chunk.TokenCount),
		"embedding_model":     p.EmbeddingModel,
		"embedding_version":   p.EmbeddingVersion,
		"ingestion_timestamp": indexedAt.UTC().Format(time.RFC3339),
	}
	if p.Chunk.PageNumber != nil {
		payload["page_number"] = int64(*p.Chunk.PageNumber)
	}
	return payload
}

// Search runs a filtered nearest-neighbour query for one tenant.
func (s *Store) Search(ctx context.Context, tenantID uuid.UUID, params SearchParams) ([]Hit, error) {
	must := []*qdrant.Condition{
		qdrant.NewMatch("tenant_id", tenantID.String()),
	}
	if params.Language != "" {
		must = append(must, qdrant.NewMatch("language", params.Language))
	}
	if params.DocumentID != "" {
		must = append(must, qdrant.NewMatch("document_id", params.DocumentID))
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(params.Vector...),
		Limit:          qdrant.PtrOf(uint64(params.Limit)),
		Filter:         &qdrant.Filter{Must: must},
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if params.MinScore > 0 {
		query.ScoreThreshold = qdrant.PtrOf(float32(params.MinScore))
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, faults.Transientf("VECTORSTORE_UNAVAILABLE", err, "query collection %s", s.collection)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hit := Hit{
			ChunkID:          p.Payload["chunk_id"].GetStringValue(),
			DocumentID:       p.Payload["document_id"].GetStringValue(),
			Text:             p.Payload["text"].GetStringValue(),
			Language:         p.Payload["language"].GetStringValue(),
			EmbeddingVersion: p.Payload["embedding_version"].GetStringValue(),
			Score:            float64(p.Score),
		}
		if v, ok := p.Payload["page_number"]; ok {
			page := int(v.GetIntegerValue())
			hit.PageNumber = &page
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteByDocument removes every vector of one document, tenant-filtered.
func (s *Store) DeleteByDocument(ctx context.Context, tenantID uuid.UUID, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("tenant_id", tenantID.String()),
				qdrant.NewMatch("document_id", documentID),
			},
		}),
	})
	if err != nil {
		return faults.Transientf("VECTORSTORE_UNAVAILABLE", err, "delete vectors for %s", documentID)
	}
	return nil
}

// Close tears down the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}
