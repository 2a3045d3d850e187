// Package rag is the answering path: query understanding, retrieval,
// reranking, prompt building, generation, and citation extraction.
package rag

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/language"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/repository"
)

const maxKeywords = 10

var excessPunctuation = regexp.MustCompile(`[?!.]{2,}`)

// EnrichedQuery is the query-understanding output.
type EnrichedQuery struct {
	Original          string
	Normalized        string
	Language          string
	Intent            models.QueryIntent
	Keywords          []string
	ConversationTurns []string
}

type intentRule struct {
	intent  models.QueryIntent
	pattern *regexp.Regexp
}

// conversation holds the recent turns of one conversation. The mutex keeps
// concurrent requests on the same conversation ID from interleaving.
type conversation struct {
	mu    sync.Mutex
	turns []string
}

// QueryUnderstanding normalizes, classifies, and enriches incoming queries.
// Vocabulary (stopwords, intent rules) is loaded from the lexicon at
// startup; conversation history lives in a bounded in-memory cache.
type QueryUnderstanding struct {
	detector  *language.Detector
	stopwords map[string]map[string]struct{}
	intents   map[string][]intentRule
	cache     *lru.Cache[string, *conversation]
	maxTurns  int
	logger    *slog.Logger
}

// Vocabulary is the per-language query-understanding lexicon.
type Vocabulary struct {
	Stopwords map[string]map[string]struct{}
	Intents   map[string][]repository.IntentPattern
}

// LoadVocabulary reads the lexicon for the supported languages.
func LoadVocabulary(ctx context.Context, lexicon *repository.Lexicon) (Vocabulary, error) {
	vocab := Vocabulary{
		Stopwords: map[string]map[string]struct{}{},
		Intents:   map[string][]repository.IntentPattern{},
	}
	for _, lang := range []string{"en", "ar"} {
		words, err := lexicon.Stopwords(ctx, lang)
		if err != nil {
			return Vocabulary{}, err
		}
		vocab.Stopwords[lang] = words

		patterns, err := lexicon.IntentPatterns(ctx, lang)
		if err != nil {
			return Vocabulary{}, err
		}
		vocab.Intents[lang] = patterns
	}
	return vocab, nil
}

// NewQueryUnderstanding compiles the vocabulary and sizes the conversation
// cache.
func NewQueryUnderstanding(vocab Vocabulary, detector *language.Detector, cacheSize, maxTurns int, logger *slog.Logger) (*QueryUnderstanding, error) {
	cache, err := lru.New[string, *conversation](cacheSize)
	if err != nil {
		return nil, faults.Wrap(faults.KindInternal, "CACHE_INIT_FAILED", "conversation cache", err)
	}

	qu := &QueryUnderstanding{
		detector:  detector,
		stopwords: vocab.Stopwords,
		intents:   map[string][]intentRule{},
		cache:     cache,
		maxTurns:  maxTurns,
		logger:    logger,
	}
	for lang, patterns := range vocab.Intents {
		for _, p := range patterns {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				logger.Warn("skipping unparseable intent pattern",
					"language", lang, "intent", p.Intent, "pattern", p.Pattern, "error", err)
				continue
			}
			qu.intents[lang] = append(qu.intents[lang], intentRule{
				intent:  models.QueryIntent(p.Intent),
				pattern: re,
			})
		}
	}
	return qu, nil
}

// Process enriches one query and records it in the conversation history.
// History is advisory context for the prompt; it never widens retrieval.
func (q *QueryUnderstanding) Process(rawQuery, languageHint, conversationID string) EnrichedQuery {
	normalized := normalizeQuery(rawQuery)

	lang := languageHint
	if lang == "" {
		lang = q.detectLanguage(normalized)
	}

	enriched := EnrichedQuery{
		Original:          rawQuery,
		Normalized:        normalized,
		Language:          lang,
		Intent:            q.classifyIntent(normalized, lang),
		Keywords:          q.extractKeywords(normalized, lang),
		ConversationTurns: q.recordTurn(conversationID, normalized),
	}

	q.logger.Debug("query understood",
		"language", enriched.Language,
		"intent", enriched.Intent,
		"keywords", len(enriched.Keywords),
		"context_turns", len(enriched.ConversationTurns),
	)
	return enriched
}

func normalizeQuery(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = excessPunctuation.ReplaceAllString(text, "?")
	return strings.TrimSpace(text)
}

func (q *QueryUnderstanding) detectLanguage(text string) string {
	det := q.detector.Detect(text)
	if det.PrimaryLanguage == "ar" {
		return "ar"
	}
	return "en"
}

func (q *QueryUnderstanding) classifyIntent(query, lang string) models.QueryIntent {
	lower := strings.ToLower(query)
	for _, rule := range q.intents[lang] {
		if rule.pattern.MatchString(lower) {
			return rule.intent
		}
	}
	return models.IntentFactual
}

func (q *QueryUnderstanding) extractKeywords(query, lang string) []string {
	stopwords := q.stopwords[lang]
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var keywords []string
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// recordTurn returns the history before this query and appends the query to
// it, bounded to maxTurns.
func (q *QueryUnderstanding) recordTurn(conversationID, query string) []string {
	if conversationID == "" {
		return nil
	}

	conv, ok := q.cache.Get(conversationID)
	if !ok {
		conv = &conversation{}
		// Two concurrent first turns race here; PeekOrAdd keeps one.
		if existing, found, _ := q.cache.PeekOrAdd(conversationID, conv); found {
			conv = existing
		}
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	prior := make([]string, len(conv.turns))
	copy(prior, conv.turns)

	conv.turns = append(conv.turns, query)
	if len(conv.turns) > q.maxTurns {
		conv.turns = conv.turns[len(conv.turns)-q.maxTurns:]
	}
	return prior
}
