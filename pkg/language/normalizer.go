package language

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/waqedi/platform/pkg/models"
)

// NormalizationVersion tags artifacts so a normalized text can be reproduced
// from its original. Bump on any rule change.
const NormalizationVersion = "v2"

// Rule names recorded in NormalizationChange entries.
const (
	ruleOCRLToOne       = "ocr_l_to_1"
	ruleOCRZeroToO      = "ocr_0_to_o"
	ruleArabicAlef      = "arabic_alef_unify"
	ruleArabicYeh       = "arabic_yeh_unify"
	ruleArabicTashkeel  = "arabic_strip_tashkeel"
	ruleEnglishQuote    = "english_quote_straighten"
	ruleEnglishLigature = "english_ligature_expand"
)

var (
	// Standalone letter l followed by a digit is an OCR misread of 1.
	ocrLBeforeDigit = regexp.MustCompile(`\bl([0-9])`)
	// A zero between lowercase letters is an OCR misread of o.
	ocrZeroBetweenLetters = regexp.MustCompile(`([a-z])0([a-z])`)

	horizontalWhitespace = regexp.MustCompile(`[ \t]+`)
	excessBlankLines     = regexp.MustCompile(`\n{3,}`)
)

// arabicLetterMap unifies alef and yeh variants. Diacritics are handled
// separately because tenants may opt to keep them.
var arabicLetterMap = map[rune]rune{
	'أ': 'ا', 'إ': 'ا', 'آ': 'ا',
	'ى': 'ي',
}

// englishCharMap straightens typographic quotes and expands ligatures left
// behind by PDF text extraction.
var englishCharMap = map[rune]string{
	'‘': "'", '’': "'",
	'“': `"`, '”': `"`,
	'ﬁ': "fi", 'ﬂ': "fl", 'ﬀ': "ff",
}

// Normalizer applies a fixed, idempotent rule sequence: Unicode NFC, OCR
// artifact repair, whitespace cleanup, then language-specific character
// unification. Every substitution is recorded.
type Normalizer struct {
	preserveArabicDiacritics bool
}

// NewNormalizer builds a normalizer. When preserveArabicDiacritics is false,
// tashkeel marks are stripped from Arabic text.
func NewNormalizer(preserveArabicDiacritics bool) *Normalizer {
	return &Normalizer{preserveArabicDiacritics: preserveArabicDiacritics}
}

// Normalize rewrites text for the given language and reports every change.
// Normalize(Normalize(t)) == Normalize(t) for all inputs.
func (n *Normalizer) Normalize(text, lang string) (string, []models.NormalizationChange) {
	var changes []models.NormalizationChange

	out := norm.NFC.String(text)
	out, changes = applyRegexRule(out, ocrLBeforeDigit, "1$1", ruleOCRLToOne, changes)
	out, changes = applyRegexRuleFixpoint(out, ocrZeroBetweenLetters, "${1}o${2}", ruleOCRZeroToO, changes)

	switch lang {
	case "ar":
		out, changes = n.normalizeArabic(out, changes)
	case "en":
		out, changes = normalizeEnglish(out, changes)
	}

	// Whitespace collapse runs last: rules that delete characters (tashkeel
	// stripping) can leave doubled spaces that an earlier collapse would miss.
	out = normalizeWhitespace(out)
	return out, changes
}

func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalWhitespace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	text = strings.Join(lines, "\n")
	text = excessBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func (n *Normalizer) normalizeArabic(text string, changes []models.NormalizationChange) (string, []models.NormalizationChange) {
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, r := range text {
		if mapped, ok := arabicLetterMap[r]; ok {
			rule := ruleArabicAlef
			if r == 'ى' {
				rule = ruleArabicYeh
			}
			changes = append(changes, models.NormalizationChange{
				Position:    pos,
				Original:    string(r),
				Replacement: string(mapped),
				Rule:        rule,
			})
			b.WriteRune(mapped)
			pos++
			continue
		}
		if !n.preserveArabicDiacritics && r >= 0x064B && r <= 0x0652 {
			changes = append(changes, models.NormalizationChange{
				Position: pos,
				Original: string(r),
				Rule:     ruleArabicTashkeel,
			})
			continue
		}
		b.WriteRune(r)
		pos++
	}
	return b.String(), changes
}

func normalizeEnglish(text string, changes []models.NormalizationChange) (string, []models.NormalizationChange) {
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, r := range text {
		if repl, ok := englishCharMap[r]; ok {
			rule := ruleEnglishQuote
			if r >= 0xFB00 {
				rule = ruleEnglishLigature
			}
			changes = append(changes, models.NormalizationChange{
				Position:    pos,
				Original:    string(r),
				Replacement: repl,
				Rule:        rule,
			})
			b.WriteString(repl)
			pos += len([]rune(repl))
			continue
		}
		b.WriteRune(r)
		pos++
	}
	return b.String(), changes
}

// applyRegexRule replaces every match once, recording each substitution.
func applyRegexRule(text string, re *regexp.Regexp, repl, rule string, changes []models.NormalizationChange) (string, []models.NormalizationChange) {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, changes
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		replaced := string(re.ExpandString(nil, repl, text, m))
		changes = append(changes, models.NormalizationChange{
			Position:    len([]rune(text[:m[0]])),
			Original:    text[m[0]:m[1]],
			Replacement: replaced,
			Rule:        rule,
		})
		b.WriteString(replaced)
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), changes
}

// applyRegexRuleFixpoint repeats a rule until no match remains. Needed for
// patterns whose matches can overlap, like 0 between letters in "c0l0r".
func applyRegexRuleFixpoint(text string, re *regexp.Regexp, repl, rule string, changes []models.NormalizationChange) (string, []models.NormalizationChange) {
	for re.MatchString(text) {
		text, changes = applyRegexRule(text, re, repl, rule, changes)
	}
	return text, changes
}
