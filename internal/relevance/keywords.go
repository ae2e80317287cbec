package relevance

import (
	"regexp"
	"strings"

	"github.com/recall-mcp/recall/internal/store"
)

// defaultKeywordCap bounds how many query keywords participate in
// candidate selection and scoring.
const defaultKeywordCap = 8

var wordPattern = regexp.MustCompile(`[a-z0-9][a-z0-9_\-./]*`)

// Keywords extracts up to k stopword-filtered keywords from a query, in
// order of first occurrence. Deterministic for fixed input.
func Keywords(text string, k int) []string {
	if k <= 0 {
		k = defaultKeywordCap
	}

	seen := make(map[string]bool)
	var out []string
	for _, tok := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		tok = strings.Trim(tok, "-_./")
		if len(tok) < 2 || store.IsStopword(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
		if len(out) >= k {
			break
		}
	}
	return out
}

// hitFraction counts how many keywords appear in text (case-insensitive
// substring match) and returns the matched fraction.
func hitFraction(keywords []string, text string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// overlapFraction returns the fraction of keywords present in the
// concept set (exact token match).
func overlapFraction(keywords, concepts []string) float64 {
	if len(keywords) == 0 || len(concepts) == 0 {
		return 0
	}
	set := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		set[c] = true
	}
	hits := 0
	for _, kw := range keywords {
		if set[kw] {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}
