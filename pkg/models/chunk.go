package models

import (
	"encoding/hex"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Chunk is a bounded, semantically coherent span of text, the unit of
// vector indexing and retrieval. Immutable once written.
// (DocumentID, ChunkIndex) uniquely identifies a chunk within a document;
// indices are dense, starting at 0.
type Chunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Text       string    `json:"text"`
	Language   string    `json:"language"`
	TokenCount int       `json:"token_count"`
	PageNumber *int      `json:"page_number,omitempty"`
	ChunkIndex int       `json:"chunk_index"`
}

// NewChunkID generates a chunk identifier: chunk_{12 hex chars}.
func NewChunkID() string {
	u := uuid.New()
	return "chunk_" + hex.EncodeToString(u[:])[:12]
}

// EstimateTokens approximates the token count of text as ceil(chars/4).
// Advisory only; retrieval correctness never depends on it.
func EstimateTokens(text string) int {
	n := (utf8.RuneCountInString(text) + 3) / 4
	if n < 1 {
		return 1
	}
	return n
}
