package store

import (
	"regexp"
	"sort"
	"strings"
)

// Preview and key-concept derivation happens once, at write time, so the
// relevance engine can score records without ever loading full content.

// directivePattern matches sentences carrying directive keywords — the
// parts of a context most likely to matter when only a preview is shown.
var directivePattern = regexp.MustCompile(`(?i)\b(must|never|always|shall|required|forbidden|do not|don't)\b`)

// headingPattern matches markdown-style headings.
var headingPattern = regexp.MustCompile(`^#{1,4}\s+\S`)

// minSubstantialParagraph is the minimum length for a paragraph to anchor
// a preview.
const minSubstantialParagraph = 60

// DerivePreview extracts a bounded preview from content, favoring
// headings, the first substantial paragraph, and sentences containing
// directive keywords. Deterministic for fixed input.
func DerivePreview(content string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 400
	}

	var parts []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		parts = append(parts, s)
	}

	paragraphs := strings.Split(content, "\n\n")

	// Headings first: they name what the content is about.
	for _, line := range strings.Split(content, "\n") {
		if headingPattern.MatchString(strings.TrimSpace(line)) {
			add(strings.TrimLeft(strings.TrimSpace(line), "# "))
		}
	}

	// First substantial paragraph.
	for _, p := range paragraphs {
		flat := strings.Join(strings.Fields(p), " ")
		if len(flat) >= minSubstantialParagraph && !headingPattern.MatchString(flat) {
			add(flat)
			break
		}
	}

	// Directive sentences, in document order.
	for _, sentence := range splitSentences(content) {
		if directivePattern.MatchString(sentence) {
			add(sentence)
		}
		if previewLen(parts) > maxLen*2 {
			break
		}
	}

	// Nothing matched: fall back to the flattened head of the content.
	if len(parts) == 0 {
		add(strings.Join(strings.Fields(content), " "))
	}

	return Truncate(strings.Join(parts, " "), maxLen)
}

func previewLen(parts []string) int {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	return n
}

// splitSentences is a cheap sentence splitter: good enough for preview
// extraction, not a linguistic tool.
func splitSentences(text string) []string {
	flat := strings.Join(strings.Fields(text), " ")
	var out []string
	start := 0
	for i := 0; i < len(flat); i++ {
		switch flat[i] {
		case '.', '!', '?':
			s := strings.TrimSpace(flat[start : i+1])
			if len(s) > 3 {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(flat[start:]); len(tail) > 3 {
		out = append(out, tail)
	}
	return out
}

// tokenPattern extracts word tokens for concept derivation.
var tokenPattern = regexp.MustCompile(`[a-z0-9][a-z0-9_\-./]{2,}`)

// DeriveKeyConcepts produces a bounded concept set from caller tags plus
// token-frequency heuristics over the content. Tags always make the cut;
// remaining slots go to the most frequent non-stopword tokens, ties broken
// alphabetically so the result is deterministic.
func DeriveKeyConcepts(content string, tags []string, max int) []string {
	if max <= 0 {
		max = 12
	}

	var concepts []string
	seen := make(map[string]bool)
	for _, t := range normalizeTags(tags) {
		if len(concepts) >= max {
			break
		}
		if !seen[t] {
			seen[t] = true
			concepts = append(concepts, t)
		}
	}

	counts := make(map[string]int)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(content), -1) {
		tok = strings.Trim(tok, "-_./")
		if len(tok) < 3 || IsStopword(tok) {
			continue
		}
		counts[tok]++
	}

	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})

	for _, tok := range tokens {
		if len(concepts) >= max {
			break
		}
		if !seen[tok] {
			seen[tok] = true
			concepts = append(concepts, tok)
		}
	}

	return concepts
}

// stopwords shared by concept derivation and the relevance engine's
// query keyword extraction.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"has": true, "have": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "that": true, "these": true, "those": true,
	"from": true, "they": true, "them": true, "then": true, "than": true,
	"its": true, "it's": true, "into": true, "onto": true, "over": true,
	"under": true, "about": true, "after": true, "before": true,
	"when": true, "where": true, "which": true, "while": true, "what": true,
	"who": true, "whom": true, "why": true, "how": true, "also": true,
	"been": true, "being": true, "because": true, "between": true,
	"both": true, "each": true, "other": true, "some": true, "such": true,
	"only": true, "own": true, "same": true, "should": true, "would": true,
	"could": true, "there": true, "their": true, "our": true, "out": true,
	"use": true, "used": true, "using": true, "does": true, "did": true,
	"doing": true, "done": true, "just": true, "more": true, "most": true,
	"very": true, "any": true, "via": true, "per": true, "etc": true,
}

// IsStopword reports whether a lowercase token is a stopword.
func IsStopword(word string) bool {
	return stopwords[word]
}
