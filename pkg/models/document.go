// Package models defines the domain entities shared across the platform:
// documents and their lifecycle state machine, extraction results,
// linguistic artifacts, chunks, and answering-path types.
package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the canonical lifecycle state of a document.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "UPLOADED"
	StatusValidated  DocumentStatus = "VALIDATED"
	StatusQueued     DocumentStatus = "QUEUED"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusProcessed  DocumentStatus = "PROCESSED"
	StatusFailed     DocumentStatus = "FAILED"
	StatusArchived   DocumentStatus = "ARCHIVED"
	StatusRejected   DocumentStatus = "REJECTED"
	StatusDeleted    DocumentStatus = "DELETED"
)

// FileCategory routes a document to its extraction path.
type FileCategory string

const (
	CategoryDocument FileCategory = "DOCUMENT"
	CategoryImage    FileCategory = "IMAGE"
	CategoryAudio    FileCategory = "AUDIO"
	CategoryVideo    FileCategory = "VIDEO"
)

// AllowedTransitions is the document state machine. Any (from, to) pair not
// present here is illegal.
var AllowedTransitions = map[DocumentStatus][]DocumentStatus{
	StatusUploaded:   {StatusValidated, StatusRejected},
	StatusValidated:  {StatusQueued},
	StatusQueued:     {StatusProcessing},
	StatusProcessing: {StatusProcessed, StatusFailed},
	StatusProcessed:  {StatusArchived, StatusDeleted},
	StatusFailed:     {StatusQueued},
	StatusArchived:   {StatusDeleted},
	StatusRejected:   {},
	StatusDeleted:    {},
}

// IllegalStateTransition is returned when a transition is not in
// AllowedTransitions.
type IllegalStateTransition struct {
	From, To DocumentStatus
}

func (e *IllegalStateTransition) Error() string {
	return fmt.Sprintf("cannot transition document from %s to %s", e.From, e.To)
}

// LegalHoldViolation is returned when a held document would be deleted.
type LegalHoldViolation struct {
	DocumentID string
}

func (e *LegalHoldViolation) Error() string {
	return fmt.Sprintf("document %s is under legal hold and cannot be deleted", e.DocumentID)
}

// Document is the unit of ingestion and lifecycle.
type Document struct {
	ID           string       `json:"id"`
	TenantID     uuid.UUID    `json:"tenant_id"`
	UploaderID   uuid.UUID    `json:"uploader_id"`
	DepartmentID *uuid.UUID   `json:"department_id,omitempty"`
	CollectionID *uuid.UUID   `json:"collection_id,omitempty"`
	Filename     string       `json:"filename"`
	ContentType  string       `json:"content_type"`
	SizeBytes    int64        `json:"size_bytes"`
	SHA256       string       `json:"sha256"`
	FileCategory FileCategory `json:"file_category"`
	Language     string       `json:"language,omitempty"`

	Status          DocumentStatus `json:"status"`
	RetentionPolicy string         `json:"retention_policy"`
	LegalHold       bool           `json:"legal_hold"`

	StorageBucket string `json:"storage_bucket"`
	StorageKey    string `json:"storage_key"`

	UploadedAt  time.Time  `json:"uploaded_at"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (d *Document) CanTransitionTo(next DocumentStatus) bool {
	for _, s := range AllowedTransitions[d.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the document to next, stamping the matching timestamp.
// The legal-hold check runs before the state-machine check so a held document
// reports the hold regardless of its current state.
func (d *Document) TransitionTo(next DocumentStatus, now time.Time) error {
	if next == StatusDeleted && d.LegalHold {
		return &LegalHoldViolation{DocumentID: d.ID}
	}
	if !d.CanTransitionTo(next) {
		return &IllegalStateTransition{From: d.Status, To: next}
	}
	d.Status = next
	switch next {
	case StatusValidated:
		d.ValidatedAt = &now
	case StatusProcessed:
		d.ProcessedAt = &now
	case StatusArchived:
		d.ArchivedAt = &now
	case StatusDeleted:
		d.DeletedAt = &now
	}
	return nil
}

// TimestampColumn returns the documents column stamped by a transition to
// status, or "" when the transition carries no timestamp.
func TimestampColumn(status DocumentStatus) string {
	switch status {
	case StatusValidated:
		return "validated_at"
	case StatusProcessed:
		return "processed_at"
	case StatusArchived:
		return "archived_at"
	case StatusDeleted:
		return "deleted_at"
	default:
		return ""
	}
}

// NewDocumentID generates a time-ordered document ID:
// doc_{unix_millis_hex}_{random}. The timestamp prefix keeps IDs sortable by
// creation time, which is what cursor pagination relies on.
func NewDocumentID() string {
	ts := time.Now().UnixMilli()
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("doc_%x_%s", ts, hex.EncodeToString(buf))
}

// CategoryForContentType maps a MIME type to its processing category.
// Unknown types return ""; callers must have validated the type already.
func CategoryForContentType(contentType string) FileCategory {
	switch contentType {
	case "application/pdf":
		return CategoryDocument
	case "image/png", "image/jpeg":
		return CategoryImage
	case "audio/mpeg", "audio/wav":
		return CategoryAudio
	case "video/mp4":
		return CategoryVideo
	default:
		return ""
	}
}
