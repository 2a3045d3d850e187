package repository

import (
	"context"
	"database/sql"
)

// Lexicon serves the query-understanding vocabulary. It is deliberately not
// tenant-scoped: stopwords and intent patterns are per-language deployment
// data seeded by migrations.
type Lexicon struct {
	db *sql.DB
}

// NewLexicon creates a lexicon repository.
func NewLexicon(db *sql.DB) *Lexicon {
	return &Lexicon{db: db}
}

// Stopwords returns the stopword set for a language.
func (r *Lexicon) Stopwords(ctx context.Context, language string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT word FROM query_stopwords WHERE language = $1`, language)
	if err != nil {
		return nil, classify("load stopwords", err)
	}
	defer rows.Close()

	words := make(map[string]struct{})
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, classify("scan stopword", err)
		}
		words[w] = struct{}{}
	}
	return words, classify("load stopwords", rows.Err())
}

// IntentPattern is one intent-classification rule. Patterns are Go regular
// expressions compiled by the caller; higher priority wins on multi-match.
type IntentPattern struct {
	Intent   string
	Pattern  string
	Priority int
}

// IntentPatterns returns the intent rules for a language, highest
// priority first.
func (r *Lexicon) IntentPatterns(ctx context.Context, language string) ([]IntentPattern, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT intent, pattern, priority
		FROM query_intent_patterns
		WHERE language = $1
		ORDER BY priority DESC, id`,
		language)
	if err != nil {
		return nil, classify("load intent patterns", err)
	}
	defer rows.Close()

	var out []IntentPattern
	for rows.Next() {
		var p IntentPattern
		if err := rows.Scan(&p.Intent, &p.Pattern, &p.Priority); err != nil {
			return nil, classify("scan intent pattern", err)
		}
		out = append(out, p)
	}
	return out, classify("load intent patterns", rows.Err())
}
