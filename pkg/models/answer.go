package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryIntent classifies what the user is asking for.
type QueryIntent string

const (
	IntentFactual       QueryIntent = "FACTUAL"
	IntentSummary       QueryIntent = "SUMMARY"
	IntentComparison    QueryIntent = "COMPARISON"
	IntentProcedural    QueryIntent = "PROCEDURAL"
	IntentClarification QueryIntent = "CLARIFICATION"
)

// AnswerType describes the structural form of a generated answer.
type AnswerType string

const (
	AnswerDirect      AnswerType = "DIRECT"
	AnswerList        AnswerType = "LIST"
	AnswerSteps       AnswerType = "STEPS"
	AnswerExplanation AnswerType = "EXPLANATION"
)

// RetrievedChunk is one vector-search hit with its similarity score.
type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Score      float64 `json:"score"`
	PageNumber *int    `json:"page_number,omitempty"`
}

// RankedChunk is a retrieved chunk after reranking.
// FinalScore = 0.7*relevance + 0.3*diversity.
type RankedChunk struct {
	ChunkID        string  `json:"chunk_id"`
	DocumentID     string  `json:"document_id"`
	Text           string  `json:"text"`
	Language       string  `json:"language"`
	RelevanceScore float64 `json:"relevance_score"`
	DiversityScore float64 `json:"diversity_score"`
	FinalScore     float64 `json:"final_score"`
	Rank           int     `json:"rank"`
}

// Citation resolves a [chunk_id] marker in a generated answer to its chunk.
type Citation struct {
	ChunkID     string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	TextExcerpt string `json:"text_excerpt"`
}

// Answer is the response envelope of the answering path.
type Answer struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	AnswerType AnswerType `json:"answer_type"`
	Language   string     `json:"language"`
	TraceID    string     `json:"trace_id"`
	LatencyMS  int64      `json:"latency_ms"`
}

// ReasoningTrace is the audit record written for every answering call.
type ReasoningTrace struct {
	TraceID         string    `json:"trace_id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	Query           string    `json:"query"`
	RetrievedChunks []string  `json:"retrieved_chunks"`
	ContextTokens   int       `json:"context_tokens"`
	PromptTokens    int       `json:"prompt_tokens"`
	Answer          string    `json:"answer"`
	Citations       []string  `json:"citations"`
	Confidence      float64   `json:"confidence"`
	LatencyMS       int64     `json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
