package config

import (
	"fmt"
	"slices"
)

// knownStages lists the pipeline consumers a process may run. Language
// processing has no event of its own; it runs inside the chunking consumer
// between document.extracted and document.chunked.
var knownStages = []string{"extraction", "chunking", "indexing"}

// Validate performs fail-fast validation on merged configuration.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateDatabase(&cfg.Database); err != nil {
		return err
	}
	if err := validateStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := validateBus(&cfg.Bus); err != nil {
		return err
	}
	if err := validateInference(&cfg.Inference); err != nil {
		return err
	}
	if err := validateLanguage(&cfg.Language); err != nil {
		return err
	}
	if err := validateChunking(&cfg.Chunking); err != nil {
		return err
	}
	if err := validateRetrieval(&cfg.Retrieval); err != nil {
		return err
	}
	if err := validateAnswering(&cfg.Answering); err != nil {
		return err
	}
	if err := validatePipeline(&cfg.Pipeline); err != nil {
		return err
	}
	if err := validateIngest(&cfg.Ingest); err != nil {
		return err
	}
	if err := validateRetention(&cfg.Retention); err != nil {
		return err
	}
	return nil
}

func validateRetention(c *RetentionConfig) error {
	windows := map[string]int64{
		"purge_after":    int64(c.PurgeAfter),
		"trace_ttl":      int64(c.TraceTTL),
		"sweep_interval": int64(c.SweepInterval),
	}
	for field, v := range windows {
		if v < 1 {
			return NewValidationError("retention", field, fmt.Errorf("%w: %d", ErrInvalidValue, v))
		}
	}
	return nil
}

func validateIngest(c *IngestConfig) error {
	limits := map[string]int64{
		"max_document_bytes": c.MaxDocumentBytes,
		"max_image_bytes":    c.MaxImageBytes,
		"max_audio_bytes":    c.MaxAudioBytes,
		"max_video_bytes":    c.MaxVideoBytes,
	}
	for field, v := range limits {
		if v < 1 {
			return NewValidationError("ingest", field, fmt.Errorf("%w: %d", ErrInvalidValue, v))
		}
	}
	return nil
}

func validateServer(c *ServerConfig) error {
	if c.Port < 1 || c.Port > 65535 {
		return NewValidationError("server", "port", fmt.Errorf("%w: %d", ErrInvalidValue, c.Port))
	}
	return nil
}

func validateDatabase(c *DatabaseConfig) error {
	if c.Host == "" {
		return NewValidationError("database", "host", ErrMissingRequiredField)
	}
	if c.Database == "" {
		return NewValidationError("database", "database", ErrMissingRequiredField)
	}
	if c.MaxOpenConns < 1 {
		return NewValidationError("database", "max_open_conns", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}

func validateStorage(c *StorageConfig) error {
	if c.Endpoint == "" {
		return NewValidationError("storage", "endpoint", ErrMissingRequiredField)
	}
	if c.Bucket == "" {
		return NewValidationError("storage", "bucket", ErrMissingRequiredField)
	}
	return nil
}

func validateBus(c *BusConfig) error {
	if len(c.Brokers) == 0 {
		return NewValidationError("bus", "brokers", ErrMissingRequiredField)
	}
	if c.Topic == "" {
		return NewValidationError("bus", "topic", ErrMissingRequiredField)
	}
	return nil
}

func validateInference(c *InferenceConfig) error {
	if c.OllamaURL == "" {
		return NewValidationError("inference", "ollama_url", ErrMissingRequiredField)
	}
	if c.ChatModel == "" {
		return NewValidationError("inference", "chat_model", ErrMissingRequiredField)
	}
	if c.EmbeddingModel == "" {
		return NewValidationError("inference", "embedding_model", ErrMissingRequiredField)
	}
	if c.EmbeddingDim < 1 {
		return NewValidationError("inference", "embedding_dim", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.EmbeddingVersion == "" {
		return NewValidationError("inference", "embedding_version", ErrMissingRequiredField)
	}
	return nil
}

func validateLanguage(c *LanguageConfig) error {
	if !TranslationStrategyName(c.DefaultStrategy) {
		return NewValidationError("language", "default_strategy", fmt.Errorf("%w: %q", ErrInvalidValue, c.DefaultStrategy))
	}
	if c.ShortTextLimit < 0 {
		return NewValidationError("language", "short_text_limit", fmt.Errorf("%w: must be non-negative", ErrInvalidValue))
	}
	return nil
}

// TranslationStrategyName reports whether s names a supported strategy.
func TranslationStrategyName(s string) bool {
	return s == "native" || s == "canonical" || s == "hybrid"
}

func validateChunking(c *ChunkingConfig) error {
	switch c.Strategy {
	case StrategySemantic, StrategyParagraph, StrategySlidingWindow, StrategySentence:
	default:
		return NewValidationError("chunking", "strategy", fmt.Errorf("%w: %q", ErrInvalidValue, c.Strategy))
	}
	if c.MinSize < 1 {
		return NewValidationError("chunking", "min_size", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	// Bounds must nest: min <= target <= max.
	if c.TargetSize < c.MinSize || c.TargetSize > c.MaxSize {
		return NewValidationError("chunking", "target_size",
			fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidValue, c.TargetSize, c.MinSize, c.MaxSize))
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.TargetSize {
		return NewValidationError("chunking", "overlap_tokens",
			fmt.Errorf("%w: must be in [0, target_size)", ErrInvalidValue))
	}
	return nil
}

func validateRetrieval(c *RetrievalConfig) error {
	if c.MinRelevanceScore < 0 || c.MinRelevanceScore > 1 {
		return NewValidationError("retrieval", "min_relevance_score", fmt.Errorf("%w: must be in [0, 1]", ErrInvalidValue))
	}
	if c.MaxTopK < 1 {
		return NewValidationError("retrieval", "max_top_k", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.DefaultTopK < 1 || c.DefaultTopK > c.MaxTopK {
		return NewValidationError("retrieval", "default_top_k", fmt.Errorf("%w: must be in [1, max_top_k]", ErrInvalidValue))
	}
	return nil
}

func validateAnswering(c *AnsweringConfig) error {
	if c.MaxContextTokens < 1 {
		return NewValidationError("answering", "max_context_tokens", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.DeduplicationThreshold < 0 || c.DeduplicationThreshold > 1 {
		return NewValidationError("answering", "deduplication_threshold", fmt.Errorf("%w: must be in [0, 1]", ErrInvalidValue))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return NewValidationError("answering", "temperature", fmt.Errorf("%w: must be in [0, 2]", ErrInvalidValue))
	}
	return nil
}

func validatePipeline(c *PipelineConfig) error {
	if c.Workers < 1 {
		return NewValidationError("pipeline", "workers", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.MaxAttempts < 1 {
		return NewValidationError("pipeline", "max_attempts", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	for _, stage := range c.Stages {
		if !slices.Contains(knownStages, stage) {
			return NewValidationError("pipeline", "stages", fmt.Errorf("%w: unknown stage %q", ErrInvalidValue, stage))
		}
	}
	return nil
}
