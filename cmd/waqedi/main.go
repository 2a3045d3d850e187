// Waqedi platform server: serves the HTTP API and runs the configured
// pipeline stage consumers in one process.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/waqedi/platform/pkg/api"
	"github.com/waqedi/platform/pkg/bus"
	"github.com/waqedi/platform/pkg/cleanup"
	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/database"
	"github.com/waqedi/platform/pkg/extraction"
	"github.com/waqedi/platform/pkg/indexing"
	"github.com/waqedi/platform/pkg/inference"
	"github.com/waqedi/platform/pkg/ingest"
	"github.com/waqedi/platform/pkg/language"
	"github.com/waqedi/platform/pkg/pipeline"
	"github.com/waqedi/platform/pkg/rag"
	"github.com/waqedi/platform/pkg/repository"
	"github.com/waqedi/platform/pkg/retrieval"
	"github.com/waqedi/platform/pkg/storage"
	"github.com/waqedi/platform/pkg/vectorstore"
	"github.com/waqedi/platform/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	stagesFlag := flag.String("stages", "",
		"Comma-separated pipeline stages to run (overrides config; empty runs the configured set)")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	logger := slog.Default()
	slog.Info("Starting waqedi", "version", version.Full(), "config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. PostgreSQL
	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	if err := database.Migrate(dbClient.DB(), cfg.Database.Database); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database")

	// 3. Object store
	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize object store", "error", err)
		os.Exit(1)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		slog.Error("Failed to ensure bucket", "bucket", blobs.Bucket(), "error", err)
		os.Exit(1)
	}
	slog.Info("Object store ready", "bucket", blobs.Bucket())

	// 4. Event bus producer
	producer := bus.NewProducer(cfg.Bus)
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("Error closing producer", "error", err)
		}
	}()

	// 5. Inference engines
	embedder, err := inference.NewOllamaEmbedder(cfg.Inference)
	if err != nil {
		slog.Error("Failed to initialize embedder", "error", err)
		os.Exit(1)
	}
	chat, err := inference.NewOllamaChat(cfg.Inference, cfg.Answering)
	if err != nil {
		slog.Error("Failed to initialize chat model", "error", err)
		os.Exit(1)
	}
	ocr := inference.NewOCREngine(cfg.Inference)
	stt := inference.NewSTTEngine(cfg.Inference)
	slog.Info("Inference engines initialized",
		"embedding_model", embedder.Model(),
		"embedding_dim", embedder.Dim())

	// 6. Vector store (collection is created on first start)
	vectors, err := vectorstore.New(ctx, cfg.VectorStore, embedder.Dim())
	if err != nil {
		slog.Error("Failed to initialize vector store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := vectors.Close(); err != nil {
			slog.Error("Error closing vector store client", "error", err)
		}
	}()

	// 7. Language and stage processors
	detector := language.NewDetector(cfg.Language.ShortTextLimit)
	processor := language.NewProcessor(cfg.Language, language.NewChatEngine(chat))
	extractor := extraction.New(cfg.Extraction, ocr, stt, detector, logger)
	indexer := indexing.New(cfg.Indexing, embedder, vectors, logger)
	retriever := retrieval.New(cfg.Retrieval, embedder, vectors, logger)

	// 8. Answering engine
	vocab, err := rag.LoadVocabulary(ctx, repository.NewLexicon(dbClient.DB()))
	if err != nil {
		slog.Error("Failed to load lexicon", "error", err)
		os.Exit(1)
	}
	understand, err := rag.NewQueryUnderstanding(vocab, detector,
		cfg.Answering.ConversationCacheSize, cfg.Answering.MaxConversationTurns, logger)
	if err != nil {
		slog.Error("Failed to initialize query understanding", "error", err)
		os.Exit(1)
	}
	engine := rag.NewEngine(cfg.Answering, understand, retriever, chat,
		func(tenantID uuid.UUID) rag.TraceWriter {
			return repository.NewTraces(dbClient.DB(), tenantID)
		}, logger)
	slog.Info("Answering engine initialized")

	// 9. Ingestion service
	db := dbClient.DB()
	ingestSvc := ingest.New(cfg.Ingest, blobs, vectors, producer,
		func(tenantID uuid.UUID) ingest.DocumentStore {
			return repository.NewDocuments(db, tenantID)
		}, logger)

	// 10. Retention purge loop
	cleanupSvc := cleanup.NewService(cfg.Retention, repository.NewMaintenance(db), logger)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	// 11. Pipeline stage consumers
	stages := cfg.Pipeline.Stages
	if *stagesFlag != "" {
		stages = strings.Split(*stagesFlag, ",")
	}
	if len(stages) == 0 {
		stages = []string{pipeline.StageExtraction, pipeline.StageChunking, pipeline.StageIndexing}
	}
	runners, runnerCtx := errgroup.WithContext(ctx)
	for _, stage := range stages {
		handler, err := stageHandler(stage, cfg, db, blobs, extractor, processor, indexer, vectors.Collection(), logger)
		if err != nil {
			slog.Error("Unknown pipeline stage", "stage", stage, "error", err)
			os.Exit(1)
		}
		consumer := bus.NewConsumer(cfg.Bus, stage)
		runner := pipeline.NewRunner(cfg.Pipeline, consumer, producer, handler,
			func(tenantID uuid.UUID) pipeline.Transitioner {
				return repository.NewDocuments(db, tenantID)
			}, logger)
		runners.Go(func() error {
			defer func() {
				if err := consumer.Close(); err != nil {
					slog.Error("Error closing consumer", "stage", stage, "error", err)
				}
			}()
			return runner.Run(runnerCtx)
		})
		slog.Info("Stage consumer started", "stage", stage)
	}
	runnerErrs := make(chan error, 1)
	go func() {
		if err := runners.Wait(); err != nil && ctx.Err() == nil {
			runnerErrs <- err
		}
	}()

	// 12. HTTP server
	checks := []api.HealthCheck{
		{Name: "database", Probe: func(ctx context.Context) error {
			_, err := dbClient.Health(ctx)
			return err
		}},
		{Name: "storage", Probe: blobs.Ping},
		{Name: "bus", Probe: func(ctx context.Context) error {
			return bus.Ping(ctx, cfg.Bus)
		}},
		{Name: "vector_store", Probe: vectors.Ping},
	}
	server := api.NewServer(cfg.Server, ingestSvc, retriever, engine,
		api.NewVerifier(cfg.Auth), checks, logger)
	httpServer := server.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("Waqedi started successfully", "stages", stages)

	// 13. Wait for shutdown signal or fatal error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		slog.Error("HTTP server error triggered shutdown", "error", err)
		stop()
	case err := <-runnerErrs:
		slog.Error("Stage consumer error triggered shutdown", "error", err)
		stop()
	}

	// 14. Graceful shutdown. Consumers drain under cfg.Pipeline.ShutdownGrace
	// once ctx is cancelled; the HTTP server gets its own budget.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := runners.Wait(); err != nil {
		slog.Error("Stage consumers stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// stageHandler builds the handler for one pipeline stage name.
func stageHandler(stage string, cfg *config.Config, db *sql.DB, blobs *storage.Client,
	extractor *extraction.Extractor, processor *language.Processor,
	indexer *indexing.Indexer, collection string, logger *slog.Logger) (pipeline.Handler, error) {

	docs := func(tenantID uuid.UUID) pipeline.DocumentStore {
		return repository.NewDocuments(db, tenantID)
	}
	extractions := func(tenantID uuid.UUID) pipeline.ExtractionStore {
		return repository.NewExtractions(db, tenantID)
	}

	switch stage {
	case pipeline.StageExtraction:
		return pipeline.NewExtractionStage(extractor, blobs, docs, extractions, logger), nil
	case pipeline.StageChunking:
		return pipeline.NewChunkingStage(cfg.Chunking, processor, docs, extractions,
			func(tenantID uuid.UUID) pipeline.ArtifactStore {
				return repository.NewArtifacts(db, tenantID)
			},
			func(tenantID uuid.UUID) pipeline.ChunkStore {
				return repository.NewChunks(db, tenantID)
			},
			func(tenantID uuid.UUID) pipeline.TranslationConfigStore {
				return repository.NewTranslationConfigs(db, tenantID)
			}, logger), nil
	case pipeline.StageIndexing:
		return pipeline.NewIndexingStage(indexer, collection, docs, logger), nil
	default:
		return nil, fmt.Errorf("unknown pipeline stage %q", stage)
	}
}
