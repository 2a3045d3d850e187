// Package config loads, merges, and validates the platform configuration.
//
// Configuration comes from waqedi.yaml in the config directory, with
// {{.VAR}} environment expansion and built-in defaults merged underneath.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the fully merged and validated platform configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Bus         BusConfig         `yaml:"bus"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Inference   InferenceConfig   `yaml:"inference"`
	Extraction  ExtractionConfig  `yaml:"extraction"`
	Language    LanguageConfig    `yaml:"language"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Answering   AnsweringConfig   `yaml:"answering"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Auth        AuthConfig        `yaml:"auth"`
	Retention   RetentionConfig   `yaml:"retention"`
}

// RetentionConfig drives the background purge of soft-deleted data.
// Deletion through the API is a soft delete; the purge job is the only
// thing that physically removes rows.
type RetentionConfig struct {
	// PurgeAfter is how long a DELETED document row survives before the
	// purge job removes it together with its cascaded stage rows.
	PurgeAfter time.Duration `yaml:"purge_after"`
	// TraceTTL bounds how long reasoning traces are kept.
	TraceTTL time.Duration `yaml:"trace_ttl"`
	// SweepInterval is the pause between purge passes.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// IngestConfig bounds uploads per file category.
type IngestConfig struct {
	MaxDocumentBytes int64 `yaml:"max_document_bytes"`
	MaxImageBytes    int64 `yaml:"max_image_bytes"`
	MaxAudioBytes    int64 `yaml:"max_audio_bytes"`
	MaxVideoBytes    int64 `yaml:"max_video_bytes"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxUploadBytes bounds the multipart body before category-specific
	// limits apply.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Database, c.SSLMode)
}

// StorageConfig holds S3-compatible object store settings.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	// UsePathStyle must be true for MinIO.
	UsePathStyle bool `yaml:"use_path_style"`
}

// BusConfig holds Kafka settings. One topic carries all document events;
// the message key is the document ID so one partition sees a document's
// whole trace in order.
type BusConfig struct {
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	GroupPrefix   string        `yaml:"group_prefix"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
	CommitTimeout time.Duration `yaml:"commit_timeout"`
}

// GroupID returns the consumer-group name for a stage.
func (c BusConfig) GroupID(stage string) string {
	return c.GroupPrefix + "-" + stage
}

// VectorStoreConfig holds Qdrant settings.
type VectorStoreConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	CollectionPrefix string `yaml:"collection_prefix"`
	UseTLS           bool   `yaml:"use_tls"`
}

// CollectionName returns the shared collection name, {prefix}_vectors.
func (c VectorStoreConfig) CollectionName() string {
	return c.CollectionPrefix + "_vectors"
}

// InferenceConfig locates the model engines. Chat and embeddings run on an
// Ollama-compatible server; OCR and STT are HTTP inference sidecars.
type InferenceConfig struct {
	OllamaURL        string        `yaml:"ollama_url"`
	ChatModel        string        `yaml:"chat_model"`
	EmbeddingModel   string        `yaml:"embedding_model"`
	EmbeddingDim     int           `yaml:"embedding_dim"`
	EmbeddingVersion string        `yaml:"embedding_version"`
	OCREndpoint      string        `yaml:"ocr_endpoint"`
	STTEndpoint      string        `yaml:"stt_endpoint"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// ExtractionConfig tunes the extraction stage.
type ExtractionConfig struct {
	// ScannedTextThreshold is the extractable-chars-per-page count below
	// which a PDF is treated as scanned and rasterized for OCR.
	ScannedTextThreshold int `yaml:"scanned_text_threshold"`
	// RasterDPI is the DPI used when rasterizing scanned PDF pages.
	RasterDPI int `yaml:"raster_dpi"`
	// MaxImageEdge bounds the longest image edge before OCR (Lanczos resize).
	MaxImageEdge int `yaml:"max_image_edge"`
	// TempDir is the stage-scoped scratch directory for audio transcoding.
	TempDir string `yaml:"temp_dir"`
	// FFmpegPath is the transcoder binary used for the STT path.
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// LanguageConfig tunes the language processing stage.
type LanguageConfig struct {
	NormalizationVersion string `yaml:"normalization_version"`
	// ShortTextLimit is the character count below which the short-text
	// detector is used instead of the high-accuracy one.
	ShortTextLimit int `yaml:"short_text_limit"`
	// DefaultStrategy applies to tenants without a stored TranslationConfig.
	DefaultStrategy   string `yaml:"default_strategy"`
	CanonicalLanguage string `yaml:"canonical_language"`
	// PreserveArabicDiacritics keeps tashkeel during Arabic normalization.
	PreserveArabicDiacritics bool `yaml:"preserve_arabic_diacritics"`
}

// ChunkingStrategy enumerates the supported chunking strategies.
type ChunkingStrategy string

const (
	StrategySemantic      ChunkingStrategy = "semantic"
	StrategyParagraph     ChunkingStrategy = "paragraph"
	StrategySlidingWindow ChunkingStrategy = "sliding_window"
	StrategySentence      ChunkingStrategy = "sentence"
)

// ChunkingConfig tunes the chunking stage. Sizes are estimated tokens.
type ChunkingConfig struct {
	Strategy      ChunkingStrategy `yaml:"strategy"`
	TargetSize    int              `yaml:"target_size"`
	MinSize       int              `yaml:"min_size"`
	MaxSize       int              `yaml:"max_size"`
	OverlapTokens int              `yaml:"overlap_tokens"`
}

// IndexingConfig tunes the indexing stage.
type IndexingConfig struct {
	// BatchSize bounds upsert batches to cap memory and failure blast radius.
	BatchSize int `yaml:"batch_size"`
}

// RetrievalConfig tunes vector search.
type RetrievalConfig struct {
	MinRelevanceScore float64 `yaml:"min_relevance_score"`
	// DefaultTopK applies when a request leaves top_k unset.
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
	// OverfetchCap bounds the 2x top_k over-fetch used for reranking.
	OverfetchCap int `yaml:"overfetch_cap"`
}

// AnsweringConfig tunes the answering path.
type AnsweringConfig struct {
	MaxContextTokens       int           `yaml:"max_context_tokens"`
	MaxChunksPerQuery      int           `yaml:"max_chunks_per_query"`
	DeduplicationThreshold float64       `yaml:"deduplication_threshold"`
	MaxConversationTurns   int           `yaml:"max_conversation_turns"`
	ConversationCacheSize  int           `yaml:"conversation_cache_size"`
	Temperature            float64       `yaml:"temperature"`
	MaxTokens              int           `yaml:"max_tokens"`
	RequestTimeout         time.Duration `yaml:"request_timeout"`
}

// PipelineConfig tunes the stage consumers.
type PipelineConfig struct {
	// Workers is the bounded in-flight unit count per stage consumer.
	Workers int `yaml:"workers"`
	// MaxAttempts caps retries of transient failures before the document
	// terminates in FAILED.
	MaxAttempts int `yaml:"max_attempts"`
	// InitialBackoff seeds the exponential retry backoff.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// MaxBackoff caps a single retry wait.
	MaxBackoff time.Duration `yaml:"max_backoff"`
	// ShutdownGrace bounds the drain wait for in-flight units on shutdown.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
	// Stages selects which consumers this process runs.
	Stages []string `yaml:"stages"`
}

// AuthConfig holds bearer-token verification settings. Tokens are issued by
// the external identity system; this service only verifies them.
type AuthConfig struct {
	// SigningKey verifies HMAC-signed tokens.
	SigningKey string `yaml:"signing_key"`
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}
