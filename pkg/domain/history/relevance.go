package history

import (
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "to": true,
	"for": true, "in": true, "on": true, "with": true, "by": true, "or": true,
}

// Terms splits text into lowercase search terms, dropping stop words and
// one-letter tokens. Order is preserved and duplicates removed.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Relevance is the fraction of query terms that occur in text. An empty
// query matches everything fully.
func Relevance(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 {
		return 1
	}
	have := make(map[string]bool)
	for _, t := range Terms(text) {
		have[t] = true
	}
	hits := 0
	for _, q := range queryTerms {
		if have[q] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}
