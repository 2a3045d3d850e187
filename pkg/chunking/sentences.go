package chunking

import (
	"strings"
	"unicode"
)

// Sentence terminators. Arabic adds the Arabic question mark; the ideographic
// full stop shows up in scanned bilingual material.
var (
	latinTerminators  = map[rune]bool{'.': true, '!': true, '?': true}
	arabicTerminators = map[rune]bool{'.': true, '!': true, '؟': true, '。': true}
)

// abbreviations are tokens whose trailing period does not end a sentence
// ("Dr. Smith", "et al. showed"). Lowercased, without the final period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "al": true,
	"fig": true, "e.g": true, "i.e": true,
}

// endsWithAbbreviation reports whether the pending sentence, which ends
// with a period, ends on a known abbreviation.
func endsWithAbbreviation(pending string) bool {
	trimmed := strings.TrimSuffix(pending, ".")
	idx := strings.LastIndexFunc(trimmed, unicode.IsSpace)
	return abbreviations[strings.ToLower(trimmed[idx+1:])]
}

// SplitSentences splits text on language-appropriate sentence boundaries:
// a terminator followed by whitespace ends a sentence, except after a
// known abbreviation.
func SplitSentences(text, lang string) []string {
	terminators := latinTerminators
	if lang == "ar" {
		terminators = arabicTerminators
	}

	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if terminators[r] && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if r == '.' && i+1 < len(runes) && endsWithAbbreviation(b.String()) {
				continue
			}
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
