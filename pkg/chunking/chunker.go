// Package chunking splits normalized text into bounded, retrieval-sized
// chunks. Four strategies are supported; semantic is the default and the
// only one that carries sentence overlap across chunk boundaries.
package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/models"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// piece is a strategy's raw output before document-level assembly.
type piece struct {
	text       string
	pageNumber *int
}

// Chunker turns a document's linguistic artifacts into an ordered chunk
// sequence with dense indices.
type Chunker struct {
	cfg config.ChunkingConfig
}

func New(cfg config.ChunkingConfig) *Chunker {
	return &Chunker{cfg: cfg}
}

// ChunkArtifacts chunks every artifact of a document in segment order and
// assigns dense, monotonically increasing chunk indices across the whole
// document. When the document is too small to yield any chunk, one short
// chunk holding all of its text is emitted so the document stays reachable
// from retrieval.
func (c *Chunker) ChunkArtifacts(tenantID uuid.UUID, documentID string, artifacts []models.LinguisticArtifact) []models.Chunk {
	var chunks []models.Chunk
	for _, artifact := range artifacts {
		text := artifact.IndexableText()
		for _, p := range c.split(text, artifact.LanguageCode, artifact.PageNumber) {
			chunks = append(chunks, models.Chunk{
				ChunkID:    models.NewChunkID(),
				DocumentID: documentID,
				TenantID:   tenantID,
				Text:       p.text,
				Language:   artifact.LanguageCode,
				TokenCount: models.EstimateTokens(p.text),
				PageNumber: p.pageNumber,
				ChunkIndex: len(chunks),
			})
		}
	}

	if len(chunks) == 0 {
		if text := joinArtifactText(artifacts); text != "" {
			first := artifacts[0]
			chunks = append(chunks, models.Chunk{
				ChunkID:    models.NewChunkID(),
				DocumentID: documentID,
				TenantID:   tenantID,
				Text:       text,
				Language:   first.LanguageCode,
				TokenCount: models.EstimateTokens(text),
				PageNumber: first.PageNumber,
				ChunkIndex: 0,
			})
		}
	}
	return chunks
}

func (c *Chunker) split(text, lang string, page *int) []piece {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	switch c.cfg.Strategy {
	case config.StrategyParagraph:
		return c.paragraphSplit(text, page)
	case config.StrategySlidingWindow:
		return c.slidingWindowSplit(text, page)
	case config.StrategySentence:
		return c.sentenceSplit(text, lang, page)
	default:
		return c.semanticSplit(text, lang, page)
	}
}

// semanticSplit accumulates sentences until the target size, then closes the
// chunk and seeds the next one with a sentence tail bounded by the overlap
// budget. Trailing accumulations below min_size are dropped.
func (c *Chunker) semanticSplit(text, lang string, page *int) []piece {
	sentences := c.boundSentences(SplitSentences(text, lang))

	var pieces []piece
	var current []string
	currentTokens := 0

	for _, sentence := range sentences {
		tokens := models.EstimateTokens(sentence)
		if currentTokens+tokens > c.cfg.TargetSize && len(current) > 0 {
			pieces = append(pieces, piece{text: strings.Join(current, " "), pageNumber: page})

			current, currentTokens = overlapTail(current, c.cfg.OverlapTokens)
		}
		current = append(current, sentence)
		currentTokens += tokens
	}

	if len(current) > 0 {
		tail := strings.Join(current, " ")
		if models.EstimateTokens(tail) >= c.cfg.MinSize {
			pieces = append(pieces, piece{text: tail, pageNumber: page})
		}
	}
	return pieces
}

// boundSentences hard-splits any sentence whose token estimate exceeds
// max_size, so one unpunctuated wall of text cannot produce an oversized
// chunk.
func (c *Chunker) boundSentences(sentences []string) []string {
	maxRunes := c.cfg.MaxSize * 4
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		for utf8.RuneCountInString(s) > maxRunes {
			runes := []rune(s)
			cut := maxRunes
			// Prefer breaking on the last space inside the bound.
			if i := strings.LastIndex(string(runes[:cut]), " "); i > 0 {
				cut = utf8.RuneCountInString(string(runes[:cut])[:i])
			}
			out = append(out, strings.TrimSpace(string(runes[:cut])))
			s = strings.TrimSpace(string(runes[cut:]))
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// overlapTail returns the longest sentence suffix of the closed chunk whose
// token estimate fits the overlap budget.
func overlapTail(sentences []string, budget int) ([]string, int) {
	var tail []string
	tokens := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		t := models.EstimateTokens(sentences[i])
		if tokens+t > budget {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
		tokens += t
	}
	return tail, tokens
}

func (c *Chunker) paragraphSplit(text string, page *int) []piece {
	var pieces []piece
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" || models.EstimateTokens(para) < c.cfg.MinSize {
			continue
		}
		pieces = append(pieces, piece{text: para, pageNumber: page})
	}
	return pieces
}

func (c *Chunker) slidingWindowSplit(text string, page *int) []piece {
	words := strings.Fields(text)
	windowWords := c.cfg.TargetSize * 4 / 5
	overlapWords := c.cfg.OverlapTokens * 4 / 5
	step := windowWords - overlapWords
	if step < 1 {
		step = 1
	}

	var pieces []piece
	for i := 0; i < len(words); i += step {
		end := i + windowWords
		if end > len(words) {
			end = len(words)
		}
		window := strings.Join(words[i:end], " ")
		if models.EstimateTokens(window) >= c.cfg.MinSize {
			pieces = append(pieces, piece{text: window, pageNumber: page})
		}
		if end == len(words) {
			break
		}
	}
	return pieces
}

const minSentenceChunkRunes = 20

func (c *Chunker) sentenceSplit(text, lang string, page *int) []piece {
	var pieces []piece
	for _, sentence := range c.boundSentences(SplitSentences(text, lang)) {
		if utf8.RuneCountInString(sentence) <= minSentenceChunkRunes {
			continue
		}
		pieces = append(pieces, piece{text: sentence, pageNumber: page})
	}
	return pieces
}

func joinArtifactText(artifacts []models.LinguisticArtifact) string {
	var parts []string
	for _, a := range artifacts {
		if t := strings.TrimSpace(a.IndexableText()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
