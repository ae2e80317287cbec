package relevance

import (
	"time"

	"github.com/recall-mcp/recall/internal/store"
)

// Scoring weights. Each signal is monotonic — more keyword hits, fresher
// access, higher priority can only raise the score — and the weights sum
// to 1 so the output stays in [0,1].
const (
	weightLabel    = 0.30
	weightPreview  = 0.20
	weightConcepts = 0.25
	weightRecency  = 0.15
	weightPriority = 0.10
)

// recencyCutoff is the age past which the recency bonus is zero.
const recencyCutoff = 30 * 24 * time.Hour

// priorityBonus maps priority tiers to their score contribution:
// critical > important > reference.
func priorityBonus(p store.Priority) float64 {
	switch p {
	case store.PriorityCritical:
		return 1.0
	case store.PriorityImportant:
		return 0.6
	default:
		return 0.2
	}
}

// recencyBonus decays linearly from 1 at age zero to 0 at the cutoff.
// The freshest of created_at and last_accessed_at counts.
func recencyBonus(c store.Candidate, now time.Time) float64 {
	newest, ok := store.ParseTime(c.CreatedAt)
	if !ok {
		return 0
	}
	if c.LastAccessedAt != nil {
		if accessed, ok := store.ParseTime(*c.LastAccessedAt); ok && accessed.After(newest) {
			newest = accessed
		}
	}
	age := now.UTC().Sub(newest)
	if age < 0 {
		age = 0
	}
	if age >= recencyCutoff {
		return 0
	}
	return 1 - float64(age)/float64(recencyCutoff)
}

// scoreCandidate computes the normalized relevance score for one
// candidate against the query keywords. Deterministic for fixed inputs;
// full content never participates.
func scoreCandidate(c store.Candidate, keywords []string, now time.Time) float64 {
	s := weightLabel*hitFraction(keywords, c.Label) +
		weightPreview*hitFraction(keywords, c.Preview) +
		weightConcepts*overlapFraction(keywords, c.KeyConcepts) +
		weightRecency*recencyBonus(c, now) +
		weightPriority*priorityBonus(c.Priority)
	if s > 1 {
		s = 1
	}
	if s < 0 {
		s = 0
	}
	return s
}
