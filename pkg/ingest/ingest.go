// Package ingest implements document intake: upload validation, blob
// persistence, the metadata row, and the document.uploaded event, plus the
// lifecycle operations (validate-and-queue, archive, delete, legal hold)
// the API exposes.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/bus"
	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/metrics"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/repository"
	"github.com/waqedi/platform/pkg/storage"
)

// BlobStore is the object-store surface the service needs.
type BlobStore interface {
	Bucket() string
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64, metadata map[string]string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// DocumentStore is the tenant-scoped metadata surface, satisfied by
// repository.Documents.
type DocumentStore interface {
	Create(ctx context.Context, d *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, opts repository.ListOptions) ([]*models.Document, string, error)
	Transition(ctx context.Context, id string, next models.DocumentStatus) (*models.Document, error)
	SetLegalHold(ctx context.Context, id string, hold bool) error
}

// VectorDeleter removes a document's vectors on delete.
type VectorDeleter interface {
	DeleteByDocument(ctx context.Context, tenantID uuid.UUID, documentID string) error
}

// DefaultRetentionPolicy is stamped on documents whose tenant carries no
// explicit policy.
const DefaultRetentionPolicy = "standard"

// Service is the ingestion entry point.
type Service struct {
	cfg       config.IngestConfig
	blobs     BlobStore
	vectors   VectorDeleter
	publisher bus.Publisher
	docs      func(tenantID uuid.UUID) DocumentStore
	logger    *slog.Logger
}

// New wires the ingestion service. docs builds a tenant-scoped document
// store per call, keeping tenant isolation at the repository boundary.
func New(cfg config.IngestConfig, blobs BlobStore, vectors VectorDeleter, publisher bus.Publisher, docs func(uuid.UUID) DocumentStore, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		blobs:     blobs,
		vectors:   vectors,
		publisher: publisher,
		docs:      docs,
		logger:    logger,
	}
}

// UploadRequest carries one incoming file. Size is the declared length; the
// service verifies it against the streamed bytes.
type UploadRequest struct {
	TenantID     uuid.UUID
	UploaderID   uuid.UUID
	DepartmentID *uuid.UUID
	CollectionID *uuid.UUID
	Filename     string
	ContentType  string
	Size         int64
	Body         io.Reader
}

// Upload validates, stores, and records a document, then emits
// document.uploaded. Validation failures happen before any side effect, so
// a rejected upload leaves no blob, no row, and no event.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Document, error) {
	category := models.CategoryForContentType(req.ContentType)
	if category == "" {
		metrics.DocumentsRejected.WithLabelValues("UNSUPPORTED_MEDIA_TYPE").Inc()
		return nil, faults.Validationf("UNSUPPORTED_MEDIA_TYPE",
			"content type %q is not ingestible", req.ContentType)
	}
	limit := s.sizeLimit(category)
	if req.Size > limit {
		metrics.DocumentsRejected.WithLabelValues("FILE_TOO_LARGE").Inc()
		return nil, faults.Validationf("FILE_TOO_LARGE",
			"%s uploads are capped at %d bytes, got %d", category, limit, req.Size)
	}

	// Spool to disk while hashing: the checksum must be known before the
	// blob PUT, and video uploads are too large to buffer in memory.
	tmp, err := os.CreateTemp("", "waqedi-upload-*")
	if err != nil {
		return nil, faults.Wrap(faults.KindInternal, "SPOOL_FAILED", "create upload spool", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	sum := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, sum), io.LimitReader(req.Body, limit+1))
	if err != nil {
		return nil, faults.Wrap(faults.KindInternal, "SPOOL_FAILED", "spool upload body", err)
	}
	if written > limit {
		metrics.DocumentsRejected.WithLabelValues("FILE_TOO_LARGE").Inc()
		return nil, faults.Validationf("FILE_TOO_LARGE",
			"%s uploads are capped at %d bytes", category, limit)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, faults.Wrap(faults.KindInternal, "SPOOL_FAILED", "rewind upload spool", err)
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:              models.NewDocumentID(),
		TenantID:        req.TenantID,
		UploaderID:      req.UploaderID,
		DepartmentID:    req.DepartmentID,
		CollectionID:    req.CollectionID,
		Filename:        req.Filename,
		ContentType:     req.ContentType,
		SizeBytes:       written,
		SHA256:          hex.EncodeToString(sum.Sum(nil)),
		FileCategory:    category,
		Status:          models.StatusUploaded,
		RetentionPolicy: DefaultRetentionPolicy,
		StorageBucket:   s.blobs.Bucket(),
		UploadedAt:      now,
	}
	doc.StorageKey = storage.BuildKey(req.TenantID, doc.ID, req.Filename, now)

	err = s.blobs.Put(ctx, doc.StorageKey, req.ContentType, tmp, written, map[string]string{
		"document_id": doc.ID,
		"tenant_id":   req.TenantID.String(),
		"uploader_id": req.UploaderID.String(),
		"checksum":    doc.SHA256,
	})
	if err != nil {
		return nil, err
	}

	if err := s.docs(req.TenantID).Create(ctx, doc); err != nil {
		// The row is the source of truth. Remove the orphaned blob so a
		// failed insert leaves nothing behind.
		if delErr := s.blobs.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logger.Error("Failed to remove blob after insert failure",
				"document_id", doc.ID, "storage_key", doc.StorageKey, "error", delErr)
		}
		return nil, err
	}

	env, err := bus.NewEnvelope(bus.EventDocumentUploaded, req.TenantID, "", bus.DocumentUploaded{
		DocumentID:    doc.ID,
		FileCategory:  doc.FileCategory,
		ContentType:   doc.ContentType,
		SizeBytes:     doc.SizeBytes,
		StorageBucket: doc.StorageBucket,
		StorageKey:    doc.StorageKey,
	})
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, doc.ID, env); err != nil {
		// The document is persisted; it stays UPLOADED until re-queued.
		return nil, err
	}

	metrics.DocumentsIngested.WithLabelValues(string(doc.FileCategory)).Inc()
	s.logger.Info("Document uploaded",
		"document_id", doc.ID,
		"tenant_id", req.TenantID,
		"file_category", doc.FileCategory,
		"size_bytes", doc.SizeBytes)
	return doc, nil
}

func (s *Service) sizeLimit(category models.FileCategory) int64 {
	switch category {
	case models.CategoryDocument:
		return s.cfg.MaxDocumentBytes
	case models.CategoryImage:
		return s.cfg.MaxImageBytes
	case models.CategoryAudio:
		return s.cfg.MaxAudioBytes
	case models.CategoryVideo:
		return s.cfg.MaxVideoBytes
	default:
		return 0
	}
}

// ValidateAndQueue moves a freshly uploaded document through
// UPLOADED -> VALIDATED -> QUEUED so the extraction consumer can pick it up.
func (s *Service) ValidateAndQueue(ctx context.Context, tenantID uuid.UUID, documentID string) (*models.Document, error) {
	docs := s.docs(tenantID)
	if _, err := docs.Transition(ctx, documentID, models.StatusValidated); err != nil {
		return nil, err
	}
	return docs.Transition(ctx, documentID, models.StatusQueued)
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, documentID string) (*models.Document, error) {
	return s.docs(tenantID).Get(ctx, documentID)
}

// List returns a page of the tenant's documents.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, opts repository.ListOptions) ([]*models.Document, string, error) {
	return s.docs(tenantID).List(ctx, opts)
}

// downloadURLTTL bounds how long a presigned download link stays valid.
const downloadURLTTL = 15 * time.Minute

// DownloadURL returns a time-limited presigned link to the original blob.
func (s *Service) DownloadURL(ctx context.Context, tenantID uuid.UUID, documentID string) (string, error) {
	doc, err := s.docs(tenantID).Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	return s.blobs.PresignGet(ctx, doc.StorageKey, downloadURLTTL)
}

// Archive transitions a processed document to ARCHIVED. The blob stays in
// place for retrieval until deletion.
func (s *Service) Archive(ctx context.Context, tenantID uuid.UUID, documentID string) (*models.Document, error) {
	return s.docs(tenantID).Transition(ctx, documentID, models.StatusArchived)
}

// SetLegalHold toggles the legal-hold flag on a document.
func (s *Service) SetLegalHold(ctx context.Context, tenantID uuid.UUID, documentID string, hold bool) error {
	return s.docs(tenantID).SetLegalHold(ctx, documentID, hold)
}

// Delete soft-deletes a document: the row is transitioned to DELETED and
// the vectors and blob are removed. Legal-hold and state-machine violations
// surface as conflicts before anything is touched.
func (s *Service) Delete(ctx context.Context, tenantID uuid.UUID, documentID string) error {
	docs := s.docs(tenantID)
	doc, err := docs.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if _, err := docs.Transition(ctx, documentID, models.StatusDeleted); err != nil {
		return err
	}
	if err := s.vectors.DeleteByDocument(ctx, tenantID, documentID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		return err
	}
	s.logger.Info("Document deleted",
		"document_id", documentID, "tenant_id", tenantID)
	return nil
}
