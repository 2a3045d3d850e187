package models

import (
	"time"

	"github.com/google/uuid"
)

// Script classifies the writing system of a text segment.
type Script string

const (
	ScriptLatin   Script = "latin"
	ScriptArabic  Script = "arabic"
	ScriptMixed   Script = "mixed"
	ScriptUnknown Script = "unknown"
)

// LanguageDetection is the detector's verdict for one text segment.
type LanguageDetection struct {
	PrimaryLanguage    string              `json:"primary_language"`
	Confidence         float64             `json:"confidence"`
	SecondaryLanguages []LanguageCandidate `json:"secondary_languages,omitempty"`
	Script             Script              `json:"script"`
	IsMixed            bool                `json:"is_mixed"`
}

// LanguageCandidate is a runner-up language with its probability.
type LanguageCandidate struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// NormalizationChange records one rule application for auditability.
type NormalizationChange struct {
	Position    int    `json:"position"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Rule        string `json:"rule"`
}

// TranslationStrategy selects when ingest-time translation happens.
type TranslationStrategy string

const (
	// TranslateNative never translates; segments are processed as-is.
	TranslateNative TranslationStrategy = "native"
	// TranslateCanonical translates every segment not already in the
	// tenant's canonical language.
	TranslateCanonical TranslationStrategy = "canonical"
	// TranslateHybrid translates on ingest only when the tenant opts in;
	// otherwise translation is deferred to query time.
	TranslateHybrid TranslationStrategy = "hybrid"
)

// TranslationConfig is the per-tenant translation policy.
type TranslationConfig struct {
	Strategy          TranslationStrategy `json:"strategy"`
	CanonicalLanguage string              `json:"canonical_language"`
	TranslateOnIngest bool                `json:"translate_on_ingest"`
}

// TranslationRecord documents a completed translation.
type TranslationRecord struct {
	Engine        string    `json:"engine"`
	EngineVersion string    `json:"engine_version"`
	SourceLang    string    `json:"source_lang"`
	TargetLang    string    `json:"target_lang"`
	Timestamp     time.Time `json:"timestamp"`
}

// LinguisticArtifact is one processed text segment of a document (1:N).
// The original text is always preserved; normalization is reproducible from
// (original, language, normalization_version).
type LinguisticArtifact struct {
	ID                   string                `json:"id"`
	DocumentID           string                `json:"document_id"`
	TenantID             uuid.UUID             `json:"tenant_id"`
	SegmentIndex         int                   `json:"segment_index"`
	PageNumber           *int                  `json:"page_number,omitempty"`
	OriginalText         string                `json:"original_text"`
	NormalizedText       string                `json:"normalized_text"`
	TranslatedText       string                `json:"translated_text,omitempty"`
	LanguageCode         string                `json:"language_code"`
	DetectionConfidence  float64               `json:"detection_confidence"`
	Script               Script                `json:"script"`
	NormalizationVersion string                `json:"normalization_version"`
	Changes              []NormalizationChange `json:"normalization_changes,omitempty"`
	Translation          *TranslationRecord    `json:"translation,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
}

// IndexableText returns the text the chunker should operate on: the
// canonical translation when present, the normalized original otherwise.
func (a *LinguisticArtifact) IndexableText() string {
	if a.TranslatedText != "" {
		return a.TranslatedText
	}
	return a.NormalizedText
}
