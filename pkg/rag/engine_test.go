package rag

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/language"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/retrieval"
)

type stubRetriever struct {
	hits []retrieval.RetrievedChunk
	err  error
	last retrieval.Request
}

func (s *stubRetriever) Retrieve(_ context.Context, req retrieval.Request) ([]retrieval.RetrievedChunk, error) {
	s.last = req
	return s.hits, s.err
}

type stubChat struct {
	reply string
	err   error
	user  string
}

func (s *stubChat) Generate(_ context.Context, _, user string) (string, error) {
	s.user = user
	return s.reply, s.err
}
func (s *stubChat) Model() string { return "stub-chat" }

type memTraces struct {
	traces []*models.ReasoningTrace
}

func (m *memTraces) Create(_ context.Context, t *models.ReasoningTrace) error {
	m.traces = append(m.traces, t)
	return nil
}

func testEngine(t *testing.T, retriever *stubRetriever, chat *stubChat, traces *memTraces) *Engine {
	t.Helper()
	cfg := config.AnsweringConfig{
		MaxContextTokens:       3000,
		MaxChunksPerQuery:      10,
		DeduplicationThreshold: 0.95,
		MaxConversationTurns:   5,
		ConversationCacheSize:  16,
		Temperature:            0.1,
		MaxTokens:              1024,
		RequestTimeout:         5 * time.Second,
	}
	qu, err := NewQueryUnderstanding(testVocabulary(), language.NewDetector(50), 16, 5, slog.Default())
	require.NoError(t, err)
	return NewEngine(cfg, qu, retriever, chat, func(uuid.UUID) TraceWriter { return traces }, slog.Default())
}

func TestAnswerHappyPath(t *testing.T) {
	tenantID := uuid.New()
	retriever := &stubRetriever{hits: []retrieval.RetrievedChunk{
		{ChunkID: "chunk_paris", DocumentID: "doc_geo", Text: "The capital of France is Paris.", Language: "en", Score: 0.92},
	}}
	chat := &stubChat{reply: "The capital of France is Paris [chunk_paris]."}
	traces := &memTraces{}
	e := testEngine(t, retriever, chat, traces)

	answer, err := e.Answer(context.Background(), Request{
		TenantID: tenantID,
		Query:    "What is the capital of France?",
		TopK:     5,
	})
	require.NoError(t, err)

	assert.Contains(t, answer.Answer, "Paris")
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "chunk_paris", answer.Citations[0].ChunkID)
	assert.Equal(t, "doc_geo", answer.Citations[0].DocumentID)
	assert.GreaterOrEqual(t, answer.Confidence, 0.5)
	assert.Equal(t, models.AnswerDirect, answer.AnswerType)
	assert.Equal(t, "en", answer.Language)
	assert.Regexp(t, `^trc_[0-9a-f]{16}$`, answer.TraceID)

	assert.Equal(t, tenantID, retriever.last.TenantID)
	assert.Contains(t, chat.user, "--- CHUNK [chunk_paris] ---")

	require.Len(t, traces.traces, 1)
	trace := traces.traces[0]
	assert.Equal(t, answer.TraceID, trace.TraceID)
	assert.Equal(t, []string{"chunk_paris"}, trace.RetrievedChunks)
	assert.Equal(t, []string{"chunk_paris"}, trace.Citations)
	assert.Greater(t, trace.ContextTokens, 0)
}

func TestAnswerZeroHitsRefusal(t *testing.T) {
	traces := &memTraces{}
	e := testEngine(t, &stubRetriever{}, &stubChat{}, traces)

	t.Run("english", func(t *testing.T) {
		answer, err := e.Answer(context.Background(), Request{
			TenantID: uuid.New(),
			Query:    "What is the refund policy?",
			TopK:     5,
			Language: "en",
		})
		require.NoError(t, err)
		assert.Equal(t, NoInformationPhrase["en"], answer.Answer)
		assert.Empty(t, answer.Citations)
		assert.GreaterOrEqual(t, answer.Confidence, 0.9)
	})

	t.Run("arabic", func(t *testing.T) {
		answer, err := e.Answer(context.Background(), Request{
			TenantID: uuid.New(),
			Query:    "ما هي سياسة الاسترجاع؟",
			TopK:     5,
		})
		require.NoError(t, err)
		assert.Equal(t, NoInformationPhrase["ar"], answer.Answer)
		assert.Equal(t, "ar", answer.Language)
	})
}

func TestAnswerGenerationFailureFallback(t *testing.T) {
	retriever := &stubRetriever{hits: []retrieval.RetrievedChunk{
		{ChunkID: "chunk_a", DocumentID: "doc_1", Text: "Some context.", Language: "en", Score: 0.8},
	}}
	chat := &stubChat{err: fmt.Errorf("model backend unreachable")}
	traces := &memTraces{}
	e := testEngine(t, retriever, chat, traces)

	answer, err := e.Answer(context.Background(), Request{
		TenantID: uuid.New(),
		Query:    "anything",
		TopK:     5,
		Language: "en",
	})
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer["en"], answer.Answer)
	assert.Empty(t, answer.Citations)
	assert.Zero(t, answer.Confidence)
	require.Len(t, traces.traces, 1)
}

func TestAnswerUnsetTopK(t *testing.T) {
	// A request without top_k still assembles context; the retriever owns
	// the default.
	retriever := &stubRetriever{hits: []retrieval.RetrievedChunk{
		{ChunkID: "chunk_paris", DocumentID: "doc_geo", Text: "The capital of France is Paris.", Language: "en", Score: 0.92},
	}}
	chat := &stubChat{reply: "The capital of France is Paris [chunk_paris]."}
	e := testEngine(t, retriever, chat, &memTraces{})

	answer, err := e.Answer(context.Background(), Request{
		TenantID: uuid.New(),
		Query:    "What is the capital of France?",
	})
	require.NoError(t, err)
	assert.Zero(t, retriever.last.TopK)
	require.Len(t, answer.Citations, 1)
	assert.Contains(t, answer.Answer, "Paris")
}

func TestAnswerRetrievalErrorPropagates(t *testing.T) {
	retriever := &stubRetriever{err: fmt.Errorf("vector store down")}
	e := testEngine(t, retriever, &stubChat{}, &memTraces{})
	_, err := e.Answer(context.Background(), Request{TenantID: uuid.New(), Query: "q", TopK: 5})
	require.Error(t, err)
}

func TestCitationWellFormedness(t *testing.T) {
	// The model fabricating citations must not leak them to the caller.
	retriever := &stubRetriever{hits: []retrieval.RetrievedChunk{
		{ChunkID: "chunk_real", DocumentID: "doc_1", Text: "Grounded content.", Language: "en", Score: 0.9},
	}}
	chat := &stubChat{reply: "Claim one [chunk_real]. Claim two [chunk_fabricated]."}
	e := testEngine(t, retriever, chat, &memTraces{})

	answer, err := e.Answer(context.Background(), Request{TenantID: uuid.New(), Query: "q", TopK: 5})
	require.NoError(t, err)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "chunk_real", answer.Citations[0].ChunkID)
}
