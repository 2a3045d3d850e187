// Package bus carries the durable document-event stream. One Kafka topic
// holds all event types; the message key is the document ID, so one
// partition sees a document's entire trace in emission order.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/models"
)

// Event types on the documents topic.
const (
	EventDocumentUploaded         = "document.uploaded"
	EventDocumentExtracted        = "document.extracted"
	EventDocumentExtractionFailed = "document.extraction_failed"
	EventDocumentChunked          = "document.chunked"
	EventDocumentChunkingFailed   = "document.chunking_failed"
	EventDocumentIndexed          = "document.indexed"
	EventDocumentIndexingFailed   = "document.indexing_failed"
)

// Envelope wraps every event on the bus.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope around a payload. The correlation ID links
// every event in one document's trace; pass the one from the consumed event
// or a fresh ID at the head of the pipeline.
func NewEnvelope(eventType string, tenantID uuid.UUID, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		TenantID:      tenantID,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *Envelope) DecodePayload(target any) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// DocumentUploaded is emitted by ingestion after the blob and metadata row
// are persisted.
type DocumentUploaded struct {
	DocumentID    string              `json:"document_id"`
	FileCategory  models.FileCategory `json:"file_category"`
	ContentType   string              `json:"content_type"`
	SizeBytes     int64               `json:"size_bytes"`
	StorageBucket string              `json:"storage_bucket"`
	StorageKey    string              `json:"storage_key"`
}

// DocumentExtracted is emitted after the extraction result is persisted.
type DocumentExtracted struct {
	DocumentID       string                `json:"document_id"`
	ExtractionID     string                `json:"extraction_id"`
	ExtractionType   models.ExtractionType `json:"extraction_type"`
	Text             string                `json:"text"`
	PageCount        int                   `json:"page_count"`
	Language         string                `json:"language"`
	Confidence       float64               `json:"confidence"`
	ProcessingTimeMS int64                 `json:"processing_time_ms"`
}

// EventChunk is the chunk projection carried on document.chunked.
type EventChunk struct {
	ChunkID    string `json:"chunk_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	PageNumber *int   `json:"page_number,omitempty"`
	Language   string `json:"language"`
}

// DocumentChunked is emitted after the chunk set is persisted.
type DocumentChunked struct {
	DocumentID string       `json:"document_id"`
	ChunkCount int          `json:"chunk_count"`
	Strategy   string       `json:"strategy"`
	Chunks     []EventChunk `json:"chunks"`
}

// DocumentIndexed is emitted after every vector batch is upserted.
type DocumentIndexed struct {
	DocumentID     string `json:"document_id"`
	VectorsIndexed int    `json:"vectors_indexed"`
	Collection     string `json:"collection"`
}

// StageFailure is the payload of every *_failed event.
type StageFailure struct {
	DocumentID string `json:"document_id"`
	Error      string `json:"error"`
}
