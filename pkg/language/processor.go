package language

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/models"
)

// Processor runs the language stage over a document's extraction output:
// detect, normalize, then translate per the tenant's policy. One artifact is
// produced per segment; originals are never modified.
type Processor struct {
	detector   *Detector
	normalizer *Normalizer
	engine     Engine
	defaults   models.TranslationConfig
}

// NewProcessor wires the stage from configuration. engine may be nil when no
// translation backend is deployed; segments then keep their source language.
func NewProcessor(cfg config.LanguageConfig, engine Engine) *Processor {
	return &Processor{
		detector:   NewDetector(cfg.ShortTextLimit),
		normalizer: NewNormalizer(cfg.PreserveArabicDiacritics),
		engine:     engine,
		defaults: models.TranslationConfig{
			Strategy:          models.TranslationStrategy(cfg.DefaultStrategy),
			CanonicalLanguage: cfg.CanonicalLanguage,
		},
	}
}

// Segment is one unit of text entering the language stage.
type Segment struct {
	Text       string
	PageNumber *int
}

// SegmentExtraction splits an extraction result into language-stage
// segments: one per page when page structure exists, the full text
// otherwise.
func SegmentExtraction(res *models.ExtractionResult) []Segment {
	if len(res.Pages) > 0 {
		segs := make([]Segment, 0, len(res.Pages))
		for _, page := range res.Pages {
			if strings.TrimSpace(page.Text) == "" {
				continue
			}
			n := page.PageNumber
			segs = append(segs, Segment{Text: page.Text, PageNumber: &n})
		}
		return segs
	}
	if strings.TrimSpace(res.FullText) == "" {
		return nil
	}
	return []Segment{{Text: res.FullText}}
}

// Process runs the stage over a document's segments. The returned primary
// language is the detected language weighted by segment length; callers
// record it on the document. The tenant config falls back to the platform
// default when the tenant has none stored.
func (p *Processor) Process(ctx context.Context, tenantID uuid.UUID, documentID string, segments []Segment, tenantCfg *models.TranslationConfig) ([]models.LinguisticArtifact, string, error) {
	cfg := p.defaults
	if tenantCfg != nil {
		cfg = *tenantCfg
	}

	now := time.Now().UTC()
	artifacts := make([]models.LinguisticArtifact, 0, len(segments))
	langWeights := map[string]int{}

	for i, seg := range segments {
		det := p.detector.Detect(seg.Text)
		normalized, changes := p.normalizer.Normalize(seg.Text, det.PrimaryLanguage)

		artifact := models.LinguisticArtifact{
			ID:                   newArtifactID(),
			DocumentID:           documentID,
			TenantID:             tenantID,
			SegmentIndex:         i,
			PageNumber:           seg.PageNumber,
			OriginalText:         seg.Text,
			NormalizedText:       normalized,
			LanguageCode:         det.PrimaryLanguage,
			DetectionConfidence:  det.Confidence,
			Script:               det.Script,
			NormalizationVersion: NormalizationVersion,
			Changes:              changes,
			CreatedAt:            now,
		}

		if p.engine != nil && ShouldTranslate(cfg, det.PrimaryLanguage) {
			translated, err := p.engine.Translate(ctx, normalized, det.PrimaryLanguage, cfg.CanonicalLanguage)
			if err != nil {
				return nil, "", err
			}
			artifact.TranslatedText = translated
			artifact.Translation = newTranslationRecord(p.engine, det.PrimaryLanguage, cfg.CanonicalLanguage, now)
		}

		if det.PrimaryLanguage != "unknown" {
			langWeights[det.PrimaryLanguage] += len([]rune(seg.Text))
		}
		artifacts = append(artifacts, artifact)
	}

	return artifacts, primaryLanguage(langWeights), nil
}

func primaryLanguage(weights map[string]int) string {
	best, bestWeight := "unknown", 0
	for lang, w := range weights {
		if w > bestWeight || (w == bestWeight && lang < best) {
			best, bestWeight = lang, w
		}
	}
	return best
}

func newArtifactID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "lng_" + raw[:16]
}
