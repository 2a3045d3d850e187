package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/ingest"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/repository"
)

// UploadDocument handles POST /api/v1/documents (multipart). The uploaded
// file goes in the "file" part; the tenant and uploader come from the
// token, never the request.
func (s *Server) UploadDocument(c *gin.Context) {
	ident := identity(c)

	if s.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	}

	header, err := c.FormFile("file")
	if err != nil {
		s.writeProblem(c, faults.Validationf("MISSING_FILE", "multipart part %q is required", "file"))
		return
	}

	file, err := header.Open()
	if err != nil {
		s.writeProblem(c, faults.Wrap(faults.KindInternal, "UPLOAD_READ_FAILED", "open multipart part", err))
		return
	}
	defer func() { _ = file.Close() }()

	doc, err := s.documents.Upload(c.Request.Context(), ingest.UploadRequest{
		TenantID:     ident.TenantID,
		UploaderID:   ident.UserID,
		DepartmentID: ident.DepartmentID,
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         file,
	})
	if err != nil {
		s.writeProblem(c, err)
		return
	}

	queued, err := s.documents.ValidateAndQueue(c.Request.Context(), ident.TenantID, doc.ID)
	if err != nil {
		// The document is stored and UPLOADED; queueing can be replayed.
		s.logger.Warn("Uploaded document not queued",
			"document_id", doc.ID, "tenant_id", ident.TenantID, "error", err)
		c.JSON(http.StatusCreated, doc)
		return
	}
	c.JSON(http.StatusCreated, queued)
}

// ListDocuments handles GET /api/v1/documents with cursor pagination and an
// optional status filter.
func (s *Server) ListDocuments(c *gin.Context) {
	ident := identity(c)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeProblem(c, faults.Validationf("INVALID_LIMIT", "limit %q is not an integer", raw))
			return
		}
		limit = n
	}

	docs, next, err := s.documents.List(c.Request.Context(), ident.TenantID, repository.ListOptions{
		Status: models.DocumentStatus(c.Query("status")),
		Cursor: c.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		s.writeProblem(c, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "next_cursor": next})
}

// GetDocument handles GET /api/v1/documents/:id.
func (s *Server) GetDocument(c *gin.Context) {
	ident := identity(c)
	doc, err := s.documents.Get(c.Request.Context(), ident.TenantID, c.Param("id"))
	if err != nil {
		s.writeProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DownloadDocument handles GET /api/v1/documents/:id/download. It answers
// a short-lived presigned URL rather than proxying the blob.
func (s *Server) DownloadDocument(c *gin.Context) {
	ident := identity(c)
	url, err := s.documents.DownloadURL(c.Request.Context(), ident.TenantID, c.Param("id"))
	if err != nil {
		s.writeProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_url": url})
}

// DeleteDocument handles DELETE /api/v1/documents/:id. Held documents
// answer 409.
func (s *Server) DeleteDocument(c *gin.Context) {
	ident := identity(c)
	if err := s.documents.Delete(c.Request.Context(), ident.TenantID, c.Param("id")); err != nil {
		s.writeProblem(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ArchiveDocument handles POST /api/v1/documents/:id/archive.
func (s *Server) ArchiveDocument(c *gin.Context) {
	ident := identity(c)
	doc, err := s.documents.Archive(c.Request.Context(), ident.TenantID, c.Param("id"))
	if err != nil {
		s.writeProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type legalHoldRequest struct {
	Hold *bool `json:"hold" binding:"required"`
}

// SetLegalHold handles PUT /api/v1/documents/:id/legal-hold.
func (s *Server) SetLegalHold(c *gin.Context) {
	ident := identity(c)

	var req legalHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeProblem(c, faults.Validationf("INVALID_BODY", "body must be {\"hold\": bool}"))
		return
	}

	if err := s.documents.SetLegalHold(c.Request.Context(), ident.TenantID, c.Param("id"), *req.Hold); err != nil {
		s.writeProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": c.Param("id"), "legal_hold": *req.Hold})
}
