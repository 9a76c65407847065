// Package matcher ranks catalog entries against free text using
// bag-of-words cosine similarity.
package matcher

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/jwalitptl/medbot-api/internal/model"
)

const (
	descriptionWeight = 0.7
	nameWeight        = 0.3

	// tokens of this length or shorter are dropped
	minTokenLen = 2
)

// TermVector maps a token to its count in a text.
type TermVector map[string]int

// Tokenize lowercases text, strips punctuation and drops short tokens.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)

	fields := strings.Fields(cleaned)
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Vectorize builds the term-frequency vector of text.
func Vectorize(text string) TermVector {
	v := make(TermVector)
	for _, tok := range Tokenize(text) {
		v[tok]++
	}
	return v
}

// Cosine returns dot(a,b) / (|a|*|b|), or 0 when either vector is empty.
func Cosine(a, b TermVector) float64 {
	var dot, magA, magB float64
	for tok, ca := range a {
		magA += float64(ca * ca)
		if cb, ok := b[tok]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range b {
		magB += float64(cb * cb)
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Score is the weighted similarity of a query vector to one entry.
func Score(query TermVector, entry model.CatalogEntry) float64 {
	desc := Cosine(query, Vectorize(entry.Description))
	name := Cosine(query, Vectorize(entry.Name))
	return descriptionWeight*desc + nameWeight*name
}

// TopK returns at most k entries ordered by descending score. Ties keep
// catalog order, so an empty query yields the first k entries with score 0.
// k below 1 is treated as 1.
func TopK(query string, catalog []model.CatalogEntry, k int) []model.SimilarityResult {
	if len(catalog) == 0 {
		return []model.SimilarityResult{}
	}
	if k < 1 {
		k = 1
	}

	qv := Vectorize(query)
	results := make([]model.SimilarityResult, len(catalog))
	for i, entry := range catalog {
		results[i] = model.SimilarityResult{Entry: entry, Score: Score(qv, entry)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results
}

// Matcher binds a catalog so callers only pass the query.
type Matcher struct {
	catalog []model.CatalogEntry
}

func New(catalog []model.CatalogEntry) *Matcher {
	entries := make([]model.CatalogEntry, len(catalog))
	copy(entries, catalog)
	return &Matcher{catalog: entries}
}

func (m *Matcher) TopK(query string, k int) []model.SimilarityResult {
	return TopK(query, m.catalog, k)
}

// Best returns the highest scoring entry, false when the catalog is empty.
func (m *Matcher) Best(query string) (model.SimilarityResult, bool) {
	results := m.TopK(query, 1)
	if len(results) == 0 {
		return model.SimilarityResult{}, false
	}
	return results[0], true
}

func (m *Matcher) Len() int {
	return len(m.catalog)
}

// Catalog returns a copy of the bound entries.
func (m *Matcher) Catalog() []model.CatalogEntry {
	entries := make([]model.CatalogEntry, len(m.catalog))
	copy(entries, m.catalog)
	return entries
}
