package models

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionType distinguishes the engine that produced a result.
type ExtractionType string

const (
	ExtractionNative ExtractionType = "native_text"
	ExtractionOCR    ExtractionType = "ocr"
	ExtractionSTT    ExtractionType = "stt"
)

// BoundingBox locates a text block on a page, in pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextBlock is one OCR-detected region with its confidence in [0,1].
type TextBlock struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// PageResult holds the extracted text of one page. Confidence is the
// arithmetic mean of block confidences (1.0 for native text).
type PageResult struct {
	PageNumber int         `json:"page_number"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Blocks     []TextBlock `json:"blocks,omitempty"`
}

// TranscriptSegment is one STT segment with timings in seconds.
type TranscriptSegment struct {
	Text    string  `json:"text"`
	StartS  float64 `json:"start_s"`
	EndS    float64 `json:"end_s"`
}

// ExtractionResult is the 1:1 extraction artifact for a document.
// Written exactly once per document; reprocessing a document that already
// has one is a no-op.
type ExtractionResult struct {
	ID               string              `json:"id"`
	DocumentID       string              `json:"document_id"`
	TenantID         uuid.UUID           `json:"tenant_id"`
	Type             ExtractionType      `json:"extraction_type"`
	FullText         string              `json:"full_text"`
	Pages            []PageResult        `json:"pages,omitempty"`
	Segments         []TranscriptSegment `json:"segments,omitempty"`
	PageCount        int                 `json:"page_count"`
	MeanConfidence   float64             `json:"mean_confidence"`
	DetectedLanguage string              `json:"detected_language"`
	ModelVersion     string              `json:"model_version"`
	ProcessingTimeMS int64               `json:"processing_time_ms"`
	CreatedAt        time.Time           `json:"created_at"`
}
