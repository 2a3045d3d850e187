package config

import "time"

// Defaults returns the built-in configuration. User YAML is merged on top;
// any field left zero after the merge takes the value here.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  2 << 30, // video limit, the largest category
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "waqedi",
			Database:        "waqedi",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Endpoint:     "http://localhost:9000",
			Region:       "us-east-1",
			Bucket:       "waqedi-documents",
			UsePathStyle: true,
		},
		Bus: BusConfig{
			Brokers:       []string{"localhost:9092"},
			Topic:         "documents",
			GroupPrefix:   "waqedi",
			BatchTimeout:  50 * time.Millisecond,
			CommitTimeout: 10 * time.Second,
		},
		VectorStore: VectorStoreConfig{
			Host:             "localhost",
			Port:             6334,
			CollectionPrefix: "waqedi",
		},
		Inference: InferenceConfig{
			OllamaURL:        "http://localhost:11434",
			ChatModel:        "qwen2.5:7b-instruct",
			EmbeddingModel:   "nomic-embed-text",
			EmbeddingDim:     768,
			EmbeddingVersion: "v1",
			OCREndpoint:      "http://localhost:8091",
			STTEndpoint:      "http://localhost:8092",
			RequestTimeout:   60 * time.Second,
		},
		Extraction: ExtractionConfig{
			ScannedTextThreshold: 100,
			RasterDPI:            200,
			MaxImageEdge:         4000,
			TempDir:              "/tmp/waqedi-extraction",
			FFmpegPath:           "ffmpeg",
		},
		Language: LanguageConfig{
			NormalizationVersion:     "v2",
			ShortTextLimit:           50,
			DefaultStrategy:          "native",
			CanonicalLanguage:        "en",
			PreserveArabicDiacritics: true,
		},
		Chunking: ChunkingConfig{
			Strategy:      StrategySemantic,
			TargetSize:    512,
			MinSize:       100,
			MaxSize:       1024,
			OverlapTokens: 50,
		},
		Indexing: IndexingConfig{
			BatchSize: 100,
		},
		Retrieval: RetrievalConfig{
			MinRelevanceScore: 0.3,
			DefaultTopK:       5,
			MaxTopK:           20,
			OverfetchCap:      40,
		},
		Answering: AnsweringConfig{
			MaxContextTokens:       3000,
			MaxChunksPerQuery:      10,
			DeduplicationThreshold: 0.95,
			MaxConversationTurns:   5,
			ConversationCacheSize:  1024,
			Temperature:            0.1,
			MaxTokens:              1024,
			RequestTimeout:         90 * time.Second,
		},
		Pipeline: PipelineConfig{
			Workers:        3,
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
			ShutdownGrace:  60 * time.Second,
			Stages:         []string{"extraction", "chunking", "indexing"},
		},
		Ingest: IngestConfig{
			MaxDocumentBytes: 100 << 20,
			MaxImageBytes:    50 << 20,
			MaxAudioBytes:    500 << 20,
			MaxVideoBytes:    2 << 30,
		},
		Auth: AuthConfig{
			Issuer:   "waqedi-auth",
			Audience: "waqedi-platform",
		},
		Retention: RetentionConfig{
			PurgeAfter:    30 * 24 * time.Hour,
			TraceTTL:      90 * 24 * time.Hour,
			SweepInterval: time.Hour,
		},
	}
}
