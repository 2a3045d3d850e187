// Package api exposes the platform over HTTP: document ingestion and
// lifecycle, synchronous search and answering, health, and metrics.
// Every error body follows RFC 7807.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/ingest"
	"github.com/waqedi/platform/pkg/metrics"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/rag"
	"github.com/waqedi/platform/pkg/repository"
	"github.com/waqedi/platform/pkg/retrieval"
)

// DocumentService is the ingestion surface the API exposes.
type DocumentService interface {
	Upload(ctx context.Context, req ingest.UploadRequest) (*models.Document, error)
	ValidateAndQueue(ctx context.Context, tenantID uuid.UUID, documentID string) (*models.Document, error)
	Get(ctx context.Context, tenantID uuid.UUID, documentID string) (*models.Document, error)
	List(ctx context.Context, tenantID uuid.UUID, opts repository.ListOptions) ([]*models.Document, string, error)
	Archive(ctx context.Context, tenantID uuid.UUID, documentID string) (*models.Document, error)
	DownloadURL(ctx context.Context, tenantID uuid.UUID, documentID string) (string, error)
	SetLegalHold(ctx context.Context, tenantID uuid.UUID, documentID string, hold bool) error
	Delete(ctx context.Context, tenantID uuid.UUID, documentID string) error
}

// Searcher is the synchronous retrieval surface. Search returns at most
// top_k results; the over-fetch used for answer reranking never leaves
// the retriever.
type Searcher interface {
	Search(ctx context.Context, req retrieval.Request) ([]retrieval.RetrievedChunk, error)
}

// Answerer is the synchronous answering surface.
type Answerer interface {
	Answer(ctx context.Context, req rag.Request) (*models.Answer, error)
}

// HealthCheck pings one dependency.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server wires the HTTP handlers to the platform services.
type Server struct {
	cfg       config.ServerConfig
	documents DocumentService
	searcher  Searcher
	answerer  Answerer
	verifier  *Verifier
	checks    []HealthCheck
	logger    *slog.Logger
}

// NewServer builds the API server.
func NewServer(cfg config.ServerConfig, documents DocumentService, searcher Searcher, answerer Answerer, verifier *Verifier, checks []HealthCheck, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		documents: documents,
		searcher:  searcher,
		answerer:  answerer,
		verifier:  verifier,
		checks:    checks,
		logger:    logger,
	}
}

// Router assembles the route tree.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders(), observe())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", s.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1", s.requireAuth())
	{
		v1.POST("/documents", s.UploadDocument)
		v1.GET("/documents", s.ListDocuments)
		v1.GET("/documents/:id", s.GetDocument)
		v1.GET("/documents/:id/download", s.DownloadDocument)
		v1.DELETE("/documents/:id", s.DeleteDocument)
		v1.POST("/documents/:id/archive", s.ArchiveDocument)
		v1.PUT("/documents/:id/legal-hold", s.SetLegalHold)
		v1.POST("/search", s.Search)
		v1.POST("/query", s.Query)
	}
	return r
}

// HTTPServer wraps the router in a configured http.Server.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}

// Health reports the status of every wired dependency. Any failing check
// turns the overall status unhealthy with a 503.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	deps := make(map[string]string, len(s.checks))
	healthy := true
	for _, check := range s.checks {
		if err := check.Probe(ctx); err != nil {
			deps[check.Name] = err.Error()
			healthy = false
			continue
		}
		deps[check.Name] = "ok"
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": deps})
}
