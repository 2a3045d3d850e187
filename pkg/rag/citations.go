package rag

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/waqedi/platform/pkg/models"
)

var (
	citationMarker = regexp.MustCompile(`\[([^\]]+)\]`)
	bulletLine     = regexp.MustCompile(`^\s*(?:[-•*]|\d+[.)])\s`)
)

// refusalPatterns mark an honest "not in the documents" answer, which is
// scored high rather than penalized for missing citations.
var refusalPatterns = []string{
	"cannot find",
	"not available",
	"no information",
	"لا أجد",
	"غير متاحة",
}

const excerptLimit = 100

// ExtractCitations parses [chunk_id] markers in order of appearance,
// keeping only IDs present in the context window and deduplicating while
// preserving order.
func ExtractCitations(answer string, chunks []models.RankedChunk) []models.Citation {
	chunkByID := make(map[string]models.RankedChunk, len(chunks))
	for _, c := range chunks {
		chunkByID[c.ChunkID] = c
	}

	var citations []models.Citation
	seen := map[string]bool{}
	for _, match := range citationMarker.FindAllStringSubmatch(answer, -1) {
		id := strings.TrimSpace(match[1])
		chunk, ok := chunkByID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		citations = append(citations, models.Citation{
			ChunkID:     id,
			DocumentID:  chunk.DocumentID,
			TextExcerpt: excerpt(chunk.Text),
		})
	}
	return citations
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit]) + "..."
}

// IsRefusal reports whether the answer declines for lack of grounding.
func IsRefusal(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range refusalPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ScoreConfidence computes the answer confidence:
// refusal 0.9, no citations 0.3, otherwise citation coverage of the
// context window mapped into [0.2, 0.95] and rounded to 2 decimals.
func ScoreConfidence(answer string, citationCount, contextChunks int) float64 {
	if IsRefusal(answer) {
		return 0.9
	}
	if citationCount == 0 {
		return 0.3
	}
	if contextChunks < 1 {
		contextChunks = 1
	}
	ratio := float64(citationCount) / float64(contextChunks)
	score := math.Min(0.2+0.8*ratio, 0.95)
	return math.Round(score*100) / 100
}

// longAnswerRunes is the length beyond which a prose answer reads as an
// explanation rather than a direct reply.
const longAnswerRunes = 500

// DetectAnswerType derives the structural form of the answer from its
// formatting and the query intent.
func DetectAnswerType(answer string, intent models.QueryIntent) models.AnswerType {
	bullets := 0
	for _, line := range strings.Split(answer, "\n") {
		if bulletLine.MatchString(line) {
			bullets++
		}
	}
	if bullets >= 3 {
		if intent == models.IntentProcedural {
			return models.AnswerSteps
		}
		return models.AnswerList
	}
	if intent == models.IntentSummary || utf8.RuneCountInString(answer) > longAnswerRunes {
		return models.AnswerExplanation
	}
	return models.AnswerDirect
}
