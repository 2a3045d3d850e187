// Package extraction turns uploaded blobs into text.
// Documents and images go through the OCR path, audio and video through the
// STT path. Results are written exactly once per document.
package extraction

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/inference"
	"github.com/waqedi/platform/pkg/language"
	"github.com/waqedi/platform/pkg/models"
)

// Extractor routes a document to its extraction path by file category.
type Extractor struct {
	cfg      config.ExtractionConfig
	ocr      inference.OCREngine
	stt      inference.STTEngine
	detector *language.Detector
	logger   *slog.Logger
}

// New wires the extraction stage.
func New(cfg config.ExtractionConfig, ocr inference.OCREngine, stt inference.STTEngine, detector *language.Detector, logger *slog.Logger) *Extractor {
	return &Extractor{cfg: cfg, ocr: ocr, stt: stt, detector: detector, logger: logger}
}

// Extract produces the extraction result for one document.
func (e *Extractor) Extract(ctx context.Context, doc *models.Document, blob []byte) (*models.ExtractionResult, error) {
	start := time.Now()

	var (
		result *models.ExtractionResult
		err    error
	)
	switch doc.FileCategory {
	case models.CategoryDocument:
		result, err = e.extractPDF(ctx, blob)
	case models.CategoryImage:
		result, err = e.extractImage(ctx, blob)
	case models.CategoryAudio, models.CategoryVideo:
		result, err = e.extractAudio(ctx, blob)
	default:
		return nil, faults.Terminalf("UNKNOWN_CATEGORY", nil, "no extraction path for category %q", doc.FileCategory)
	}
	if err != nil {
		return nil, err
	}

	result.ID = newExtractionID()
	result.DocumentID = doc.ID
	result.TenantID = doc.TenantID
	result.DetectedLanguage = e.detector.Detect(result.FullText).PrimaryLanguage
	result.ProcessingTimeMS = time.Since(start).Milliseconds()
	result.CreatedAt = time.Now().UTC()

	e.logger.Info("extraction complete",
		"document_id", doc.ID,
		"tenant_id", doc.TenantID,
		"extraction_type", result.Type,
		"page_count", result.PageCount,
		"chars", len(result.FullText),
		"mean_confidence", result.MeanConfidence,
		"duration_ms", result.ProcessingTimeMS,
	)
	return result, nil
}

// extractPDF classifies the PDF as native or scanned, then either uses the
// embedded text layer or OCRs each page.
func (e *Extractor) extractPDF(ctx context.Context, blob []byte) (*models.ExtractionResult, error) {
	pages, err := nativePages(blob)
	if err != nil {
		return nil, err
	}

	if !isScanned(pages, e.cfg.ScannedTextThreshold) {
		return assemblePages(models.ExtractionNative, "pdf-text", pages), nil
	}

	ocrPages := make([]models.PageResult, 0, len(pages))
	for i := 1; i <= len(pages); i++ {
		page, err := e.ocr.RecognizePDFPage(ctx, blob, i, e.cfg.RasterDPI)
		if err != nil {
			return nil, err
		}
		ocrPages = append(ocrPages, *page)
	}
	return assemblePages(models.ExtractionOCR, e.ocr.Version(), ocrPages), nil
}

func (e *Extractor) extractImage(ctx context.Context, blob []byte) (*models.ExtractionResult, error) {
	prepared, err := preprocessImage(blob, e.cfg.MaxImageEdge)
	if err != nil {
		return nil, err
	}
	page, err := e.ocr.RecognizePage(ctx, prepared, 1)
	if err != nil {
		return nil, err
	}
	return assemblePages(models.ExtractionOCR, e.ocr.Version(), []models.PageResult{*page}), nil
}

func (e *Extractor) extractAudio(ctx context.Context, blob []byte) (*models.ExtractionResult, error) {
	wav, err := transcodeToWAV(ctx, e.cfg.FFmpegPath, e.cfg.TempDir, blob)
	if err != nil {
		return nil, err
	}
	transcript, err := e.stt.Transcribe(ctx, wav)
	if err != nil {
		return nil, err
	}
	return &models.ExtractionResult{
		Type:           models.ExtractionSTT,
		FullText:       strings.TrimSpace(transcript.Text),
		Segments:       transcript.Segments,
		MeanConfidence: 1.0,
		ModelVersion:   e.stt.Version(),
	}, nil
}

// assemblePages concatenates page texts and averages page confidences.
func assemblePages(typ models.ExtractionType, modelVersion string, pages []models.PageResult) *models.ExtractionResult {
	var texts []string
	var sum float64
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
		sum += p.Confidence
	}
	result := &models.ExtractionResult{
		Type:         typ,
		FullText:     strings.Join(texts, "\n\n"),
		Pages:        pages,
		PageCount:    len(pages),
		ModelVersion: modelVersion,
	}
	if len(pages) > 0 {
		result.MeanConfidence = sum / float64(len(pages))
	}
	return result
}

func newExtractionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ext_" + raw[:16]
}
