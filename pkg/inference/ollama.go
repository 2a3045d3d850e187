package inference

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
)

// OllamaChat is the ChatModel backed by an Ollama-compatible server.
type OllamaChat struct {
	llm         *ollama.LLM
	model       string
	temperature float64
	maxTokens   int
}

// NewOllamaChat builds the chat client from inference and answering config.
func NewOllamaChat(infCfg config.InferenceConfig, ansCfg config.AnsweringConfig) (*OllamaChat, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(infCfg.OllamaURL),
		ollama.WithModel(infCfg.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	return &OllamaChat{
		llm:         llm,
		model:       infCfg.ChatModel,
		temperature: ansCfg.Temperature,
		maxTokens:   ansCfg.MaxTokens,
	}, nil
}

// Generate produces a completion. The low default temperature keeps answers
// anchored to the provided context.
func (c *OllamaChat) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, system),
			llms.TextParts(llms.ChatMessageTypeHuman, user),
		},
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", faults.Transientf("LLM_UNAVAILABLE", err, "chat completion with %s", c.model)
	}
	if len(resp.Choices) == 0 {
		return "", faults.Terminalf("LLM_EMPTY_RESPONSE", nil, "model %s returned no choices", c.model)
	}
	return resp.Choices[0].Content, nil
}

func (c *OllamaChat) Model() string { return c.model }

// OllamaEmbedder is the Embedder backed by an Ollama-compatible server.
type OllamaEmbedder struct {
	llm     *ollama.LLM
	model   string
	version string
	dim     int
}

// NewOllamaEmbedder builds the embedding client.
func NewOllamaEmbedder(cfg config.InferenceConfig) (*OllamaEmbedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.OllamaURL),
		ollama.WithModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return &OllamaEmbedder{
		llm:     llm,
		model:   cfg.EmbeddingModel,
		version: cfg.EmbeddingVersion,
		dim:     cfg.EmbeddingDim,
	}, nil
}

// Embed batch-encodes texts and validates the returned dimensionality.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vecs, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, faults.Transientf("EMBEDDING_UNAVAILABLE", err, "embed %d texts with %s", len(texts), e.model)
	}
	if len(vecs) != len(texts) {
		return nil, faults.Terminalf("EMBEDDING_MISMATCH", nil,
			"model %s returned %d vectors for %d inputs", e.model, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != e.dim {
			return nil, faults.Terminalf("DIMENSION_MISMATCH", nil,
				"vector %d has %d dims, expected %d", i, len(v), e.dim)
		}
	}
	return vecs, nil
}

func (e *OllamaEmbedder) Model() string   { return e.model }
func (e *OllamaEmbedder) Version() string { return e.version }
func (e *OllamaEmbedder) Dim() int        { return e.dim }
