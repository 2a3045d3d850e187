package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/inference"
	"github.com/waqedi/platform/pkg/metrics"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/retrieval"
)

// Request is one answering call.
type Request struct {
	TenantID       uuid.UUID
	Query          string
	ConversationID string
	TopK           int
	Language       string
}

// Retriever is the retrieval dependency of the engine.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]retrieval.RetrievedChunk, error)
}

// TraceWriter persists reasoning traces for one tenant.
type TraceWriter interface {
	Create(ctx context.Context, t *models.ReasoningTrace) error
}

// Engine runs the full answering path. Retrieval failures propagate as
// errors; generation failures degrade to a fallback answer with zero
// confidence so the endpoint still responds.
type Engine struct {
	cfg        config.AnsweringConfig
	understand *QueryUnderstanding
	retriever  Retriever
	assembler  *ContextAssembler
	chat       inference.ChatModel
	traces     func(tenantID uuid.UUID) TraceWriter
	logger     *slog.Logger
}

func NewEngine(cfg config.AnsweringConfig, understand *QueryUnderstanding, retriever Retriever, chat inference.ChatModel, traces func(uuid.UUID) TraceWriter, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		understand: understand,
		retriever:  retriever,
		assembler:  NewContextAssembler(cfg),
		chat:       chat,
		traces:     traces,
		logger:     logger,
	}
}

// Answer handles one query end to end.
func (e *Engine) Answer(ctx context.Context, req Request) (*models.Answer, error) {
	start := time.Now()
	traceID := newTraceID()

	query := e.understand.Process(req.Query, req.Language, req.ConversationID)

	hits, err := e.retriever.Retrieve(ctx, retrieval.Request{
		TenantID: req.TenantID,
		Query:    query.Normalized,
		TopK:     req.TopK,
		Language: req.Language,
	})
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		answer := e.refusal(query, traceID, start)
		metrics.AnswerConfidence.Observe(answer.Confidence)
		metrics.AnswersTotal.WithLabelValues(string(answer.AnswerType)).Inc()
		e.writeTrace(ctx, req, query, nil, answer)
		return answer, nil
	}

	window := e.assembler.Assemble(hits, req.TopK)
	prompt := BuildPrompt(query, window)

	generated, genErr := e.generate(ctx, prompt)
	var answer *models.Answer
	if genErr != nil {
		e.logger.Error("generation failed, returning fallback",
			"tenant_id", req.TenantID, "trace_id", traceID, "error", genErr)
		answer = &models.Answer{
			Answer:     fallbackFor(query.Language),
			Citations:  []models.Citation{},
			Confidence: 0.0,
			AnswerType: models.AnswerDirect,
			Language:   query.Language,
			TraceID:    traceID,
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	} else {
		citations := ExtractCitations(generated, window.Chunks)
		answer = &models.Answer{
			Answer:     generated,
			Citations:  citations,
			Confidence: ScoreConfidence(generated, len(citations), len(window.Chunks)),
			AnswerType: DetectAnswerType(generated, query.Intent),
			Language:   query.Language,
			TraceID:    traceID,
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}

	metrics.AnswerConfidence.Observe(answer.Confidence)
	metrics.AnswersTotal.WithLabelValues(string(answer.AnswerType)).Inc()
	e.writeTrace(ctx, req, query, &window, answer)
	return answer, nil
}

func (e *Engine) generate(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	return e.chat.Generate(ctx, prompt.System, prompt.User)
}

// refusal is the zero-hit short circuit: an honest "nothing on record"
// answer at high confidence.
func (e *Engine) refusal(query EnrichedQuery, traceID string, start time.Time) *models.Answer {
	phrase, ok := NoInformationPhrase[query.Language]
	if !ok {
		phrase = NoInformationPhrase["en"]
	}
	return &models.Answer{
		Answer:     phrase,
		Citations:  []models.Citation{},
		Confidence: 0.9,
		AnswerType: models.AnswerDirect,
		Language:   query.Language,
		TraceID:    traceID,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
}

func fallbackFor(lang string) string {
	if s, ok := FallbackAnswer[lang]; ok {
		return s
	}
	return FallbackAnswer["en"]
}

func (e *Engine) writeTrace(ctx context.Context, req Request, query EnrichedQuery, window *ContextWindow, answer *models.Answer) {
	trace := &models.ReasoningTrace{
		TraceID:    answer.TraceID,
		TenantID:   req.TenantID,
		Query:      query.Original,
		Answer:     answer.Answer,
		Confidence: answer.Confidence,
		LatencyMS:  answer.LatencyMS,
		CreatedAt:  time.Now().UTC(),
	}
	if window != nil {
		for _, c := range window.Chunks {
			trace.RetrievedChunks = append(trace.RetrievedChunks, c.ChunkID)
		}
		trace.ContextTokens = window.TotalTokens
		trace.PromptTokens = window.TotalTokens + models.EstimateTokens(query.Normalized)
	}
	for _, c := range answer.Citations {
		trace.Citations = append(trace.Citations, c.ChunkID)
	}

	if err := e.traces(req.TenantID).Create(ctx, trace); err != nil {
		// The answer has already been produced; losing the audit record is
		// logged loudly but does not fail the request.
		e.logger.Error("reasoning trace write failed",
			"tenant_id", req.TenantID, "trace_id", trace.TraceID, "error", err)
	}
}

func newTraceID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "trc_" + raw[:16]
}
