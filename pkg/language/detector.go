// Package language implements the language-processing stage: detection,
// normalization, and tenant-configurable translation. Each step is a pure
// function of its inputs and a version tag, so artifacts are reproducible.
package language

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/waqedi/platform/pkg/models"
)

// scriptSampleSize bounds how much text script classification inspects.
const scriptSampleSize = 500

// mixedCandidateThreshold marks a detection as mixed when the runner-up
// probability exceeds it.
const mixedCandidateThreshold = 0.2

// Detector classifies the language and script of text segments. Inputs
// shorter than ShortTextLimit take a fast script-only path; longer inputs
// get frequency-based scoring with candidate probabilities.
type Detector struct {
	shortTextLimit int
}

// NewDetector builds a detector with the configured short-text limit.
func NewDetector(shortTextLimit int) *Detector {
	return &Detector{shortTextLimit: shortTextLimit}
}

// Detect classifies one text segment.
func (d *Detector) Detect(text string) models.LanguageDetection {
	trimmed := strings.TrimSpace(text)
	runes := utf8.RuneCountInString(trimmed)
	if runes < 10 {
		return models.LanguageDetection{
			PrimaryLanguage: "unknown",
			Confidence:      0,
			Script:          models.ScriptUnknown,
		}
	}

	script := DetectScript(trimmed)

	if runes < d.shortTextLimit {
		return detectShort(trimmed, script)
	}
	return detectLong(trimmed, script)
}

// DetectBatch classifies multiple segments.
func (d *Detector) DetectBatch(texts []string) []models.LanguageDetection {
	out := make([]models.LanguageDetection, len(texts))
	for i, t := range texts {
		out[i] = d.Detect(t)
	}
	return out
}

// DetectScript classifies the writing system by counting code points in the
// first part of the text. A script wins only with a 2x majority over the
// other; otherwise the text is mixed.
func DetectScript(text string) models.Script {
	var arabic, latin, seen int
	for _, r := range text {
		seen++
		if seen > scriptSampleSize {
			break
		}
		switch {
		case r >= 0x0600 && r <= 0x06FF:
			arabic++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}

	total := arabic + latin
	switch {
	case total == 0:
		return models.ScriptUnknown
	case arabic > latin*2:
		return models.ScriptArabic
	case latin > arabic*2:
		return models.ScriptLatin
	default:
		return models.ScriptMixed
	}
}

// detectShort maps script directly to language. Short inputs carry too
// little signal for frequency scoring, so confidence is capped.
func detectShort(text string, script models.Script) models.LanguageDetection {
	det := models.LanguageDetection{Script: script, Confidence: 0.6}
	switch script {
	case models.ScriptArabic:
		det.PrimaryLanguage = "ar"
	case models.ScriptLatin:
		det.PrimaryLanguage = "en"
	case models.ScriptMixed:
		det.PrimaryLanguage = dominantByCount(text)
		det.IsMixed = true
		det.Confidence = 0.5
	default:
		det.PrimaryLanguage = "unknown"
		det.Confidence = 0
	}
	return det
}

// detectLong scores languages by the share of their code points plus
// function-word hits, normalized into probabilities.
func detectLong(text string, script models.Script) models.LanguageDetection {
	scores := map[string]float64{}

	var arabic, latin, total int
	for _, r := range text {
		switch {
		case r >= 0x0600 && r <= 0x06FF:
			arabic++
			total++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
			total++
		}
	}
	if total == 0 {
		return models.LanguageDetection{PrimaryLanguage: "unknown", Script: script}
	}

	scores["ar"] = float64(arabic) / float64(total)
	scores["en"] = float64(latin) / float64(total)

	// Function words disambiguate Latin-script languages and boost
	// confidence on clean monolingual text.
	lower := strings.ToLower(text)
	words := strings.Fields(lower)
	var enHits, arHits int
	for _, w := range words {
		w = strings.Trim(w, ".,!?؟:;\"'()[]")
		if _, ok := englishFunctionWords[w]; ok {
			enHits++
		}
		if _, ok := arabicFunctionWords[w]; ok {
			arHits++
		}
	}
	if len(words) > 0 {
		scores["en"] += float64(enHits) / float64(len(words))
		scores["ar"] += float64(arHits) / float64(len(words))
	}

	// Normalize to probabilities.
	var sum float64
	for _, s := range scores {
		sum += s
	}
	type cand struct {
		lang string
		prob float64
	}
	var cands []cand
	for lang, s := range scores {
		cands = append(cands, cand{lang, s / sum})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].prob != cands[j].prob {
			return cands[i].prob > cands[j].prob
		}
		return cands[i].lang < cands[j].lang
	})

	det := models.LanguageDetection{
		PrimaryLanguage: cands[0].lang,
		Confidence:      cands[0].prob,
		Script:          script,
	}
	for _, c := range cands[1:] {
		if c.prob > 0 {
			det.SecondaryLanguages = append(det.SecondaryLanguages, models.LanguageCandidate{
				Language:   c.lang,
				Confidence: c.prob,
			})
		}
	}
	det.IsMixed = len(det.SecondaryLanguages) > 0 && det.SecondaryLanguages[0].Confidence > mixedCandidateThreshold
	return det
}

func dominantByCount(text string) string {
	var arabic, latin int
	for _, r := range text {
		switch {
		case r >= 0x0600 && r <= 0x06FF:
			arabic++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}
	if arabic >= latin {
		return "ar"
	}
	return "en"
}

var englishFunctionWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "and": {},
	"or": {}, "with": {}, "that": {}, "this": {}, "it": {}, "as": {}, "by": {},
}

var arabicFunctionWords = map[string]struct{}{
	"في": {}, "من": {}, "على": {}, "إلى": {}, "عن": {}, "أن": {}, "إن": {},
	"هذا": {}, "هذه": {}, "ذلك": {}, "التي": {}, "الذي": {}, "هو": {}, "هي": {},
	"و": {}, "ما": {}, "لا": {}, "قد": {}, "كان": {}, "مع": {},
}
