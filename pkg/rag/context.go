package rag

import (
	"sort"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/retrieval"
)

// similaritySample bounds how much text the near-duplicate check compares.
const similaritySample = 500

// ContextWindow is the assembled LLM context.
type ContextWindow struct {
	Chunks      []models.RankedChunk
	TotalTokens int
	DocumentIDs []string
}

// ContextAssembler dedupes, reranks, and budget-selects retrieved chunks.
type ContextAssembler struct {
	maxTokens      int
	maxChunks      int
	dedupThreshold float64
}

func NewContextAssembler(cfg config.AnsweringConfig) *ContextAssembler {
	return &ContextAssembler{
		maxTokens:      cfg.MaxContextTokens,
		maxChunks:      cfg.MaxChunksPerQuery,
		dedupThreshold: cfg.DeduplicationThreshold,
	}
}

// Assemble builds the context window for one query.
func (a *ContextAssembler) Assemble(chunks []retrieval.RetrievedChunk, topK int) ContextWindow {
	if len(chunks) == 0 {
		return ContextWindow{}
	}

	unique := a.deduplicate(chunks)
	scored := scoreChunks(unique)
	selected := a.selectWithinBudget(scored, topK)

	window := ContextWindow{Chunks: selected}
	seenDocs := map[string]bool{}
	for _, c := range selected {
		window.TotalTokens += models.EstimateTokens(c.Text)
		if !seenDocs[c.DocumentID] {
			seenDocs[c.DocumentID] = true
			window.DocumentIDs = append(window.DocumentIDs, c.DocumentID)
		}
	}
	return window
}

func (a *ContextAssembler) deduplicate(chunks []retrieval.RetrievedChunk) []retrieval.RetrievedChunk {
	var unique []retrieval.RetrievedChunk
	for _, chunk := range chunks {
		duplicate := false
		for _, kept := range unique {
			if textSimilarity(chunk.Text, kept.Text) >= a.dedupThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, chunk)
		}
	}
	return unique
}

// textSimilarity is a character-bigram Dice coefficient over the first 500
// characters of each text. Equivalent in practice to a sequence-matcher
// ratio for the near-duplicate threshold used here.
func textSimilarity(a, b string) float64 {
	ba := bigrams(truncateRunes(a, similaritySample))
	bb := bigrams(truncateRunes(b, similaritySample))
	if len(ba) == 0 || len(bb) == 0 {
		if len(ba) == len(bb) {
			return 1.0
		}
		return 0.0
	}

	var common, totalA, totalB int
	for g, n := range ba {
		totalA += n
		if m, ok := bb[g]; ok {
			if m < n {
				common += m
			} else {
				common += n
			}
		}
	}
	for _, n := range bb {
		totalB += n
	}
	return 2.0 * float64(common) / float64(totalA+totalB)
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	grams := make(map[string]int, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}

// scoreChunks blends retrieval relevance with source diversity: the first
// chunk from a document scores 1.0 diversity, later ones 0.7.
func scoreChunks(chunks []retrieval.RetrievedChunk) []models.RankedChunk {
	scored := make([]models.RankedChunk, 0, len(chunks))
	seenDocs := map[string]bool{}
	for _, chunk := range chunks {
		diversity := 1.0
		if seenDocs[chunk.DocumentID] {
			diversity = 0.7
		}
		seenDocs[chunk.DocumentID] = true

		scored = append(scored, models.RankedChunk{
			ChunkID:        chunk.ChunkID,
			DocumentID:     chunk.DocumentID,
			Text:           chunk.Text,
			Language:       chunk.Language,
			RelevanceScore: chunk.Score,
			DiversityScore: diversity,
			FinalScore:     0.7*chunk.Score + 0.3*diversity,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored
}

// selectWithinBudget takes chunks greedily in rank order until the chunk
// cap or the token budget is reached.
func (a *ContextAssembler) selectWithinBudget(chunks []models.RankedChunk, topK int) []models.RankedChunk {
	limit := topK
	if limit <= 0 || limit > a.maxChunks {
		limit = a.maxChunks
	}

	var selected []models.RankedChunk
	tokens := 0
	for _, chunk := range chunks {
		if len(selected) >= limit {
			break
		}
		t := models.EstimateTokens(chunk.Text)
		if tokens+t > a.maxTokens {
			break
		}
		selected = append(selected, chunk)
		tokens += t
	}
	return selected
}
