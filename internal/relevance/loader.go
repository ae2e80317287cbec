package relevance

// LoadPolicy is the single staged-loading policy: it decides which scored
// candidates earn a full-content load. Every operation that materializes
// content consults this one object instead of carrying its own
// try-full-fall-back-to-preview logic.
type LoadPolicy struct {
	// FullLimit caps how many results per query get full content.
	FullLimit int
	// MinScore is the confidence threshold below which results stay
	// preview-only regardless of remaining budget.
	MinScore float64
}

// DefaultLoadPolicy returns the default staged-loading policy.
func DefaultLoadPolicy() LoadPolicy {
	return LoadPolicy{FullLimit: 3, MinScore: 0.35}
}

// Allows reports whether a candidate with the given score may have its
// full content loaded, given how many full loads happened already.
func (p LoadPolicy) Allows(score float64, loadedSoFar int) bool {
	return loadedSoFar < p.FullLimit && score >= p.MinScore
}
