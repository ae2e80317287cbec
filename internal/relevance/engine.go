// Package relevance implements the relevance and exploration engine:
// two-stage scoring over cheap metadata, staged materialization of full
// content, and breadth-first traversal of relationship edges.
package relevance

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recall-mcp/recall/internal/store"
)

// Depth controls how much a query materializes.
type Depth string

// Query depths.
const (
	DepthPreview Depth = "preview" // metadata and previews only
	DepthFull    Depth = "full"    // top candidates get full content
	DepthDeep    Depth = "deep"    // full, plus one exploration hop from top matches
)

// ParseDepth normalizes a depth string, defaulting to full.
func ParseDepth(s string) (Depth, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", string(DepthFull):
		return DepthFull, nil
	case string(DepthPreview):
		return DepthPreview, nil
	case string(DepthDeep):
		return DepthDeep, nil
	default:
		return "", &store.ValidationError{Field: "depth", Value: s, Reason: "must be preview, full, or deep"}
	}
}

// Match is one scored query result. FullLoaded reports whether Content
// was actually materialized — below-threshold results stay preview-only
// and never claim otherwise.
type Match struct {
	Label      string         `json:"label"`
	Version    int            `json:"version"`
	Score      float64        `json:"score"`
	Preview    string         `json:"preview"`
	Content    string         `json:"content,omitempty"`
	FullLoaded bool           `json:"full_loaded"`
	Priority   store.Priority `json:"priority"`
}

// Explored is a record discovered by following edges from a match,
// carrying its discovering edge for provenance.
type Explored struct {
	Label     string `json:"label"`
	Preview   string `json:"preview"`
	FromLabel string `json:"from_label"`
	EdgeKind  string `json:"edge_kind"`
}

// QueryResult holds matches plus any exploration performed at deep depth.
type QueryResult struct {
	Matches  []Match    `json:"matches"`
	Explored []Explored `json:"explored,omitempty"`
}

// Config holds engine tuning knobs.
type Config struct {
	CandidateCap      int
	MaxResults        int
	ExploreDepth      int
	ExploreMaxResults int
	Policy            LoadPolicy
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() Config {
	return Config{
		CandidateCap:      50,
		MaxResults:        10,
		ExploreDepth:      2,
		ExploreMaxResults: 20,
		Policy:            DefaultLoadPolicy(),
	}
}

// Engine answers "what's relevant to X" without exact labels, at minimum
// load cost. It owns no state beyond its store handle and an optional
// semantic side-index.
type Engine struct {
	store *store.Store
	sem   *SemanticIndex // nil when no embedding provider is configured
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
}

// NewEngine creates an Engine. sem may be nil; the keyword path works
// without it.
func NewEngine(st *store.Store, sem *SemanticIndex, cfg Config, log *zap.Logger) *Engine {
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = 50
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.ExploreDepth <= 0 {
		cfg.ExploreDepth = 2
	}
	if cfg.ExploreMaxResults <= 0 {
		cfg.ExploreMaxResults = 20
	}
	if cfg.Policy.FullLimit <= 0 {
		cfg.Policy = DefaultLoadPolicy()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: st, sem: sem, cfg: cfg, log: log.Named("relevance"), now: time.Now}
}

// Index feeds the optional semantic side-index after a successful write.
// Best-effort: failures are logged and never surface to the writer.
func (e *Engine) Index(ctx context.Context, namespace string, ref *store.VersionRef, content string) {
	if e.sem == nil || ref == nil {
		return
	}
	e.sem.Index(ctx, namespace, ref.ID, ref.Label, content)
}

// Forget drops deleted records from the semantic side-index. Best-effort.
func (e *Engine) Forget(ctx context.Context, namespace string, ids []string) {
	if e.sem == nil {
		return
	}
	e.sem.Forget(ctx, namespace, ids)
}

// Query runs the two-stage pipeline: cheap candidate selection over the
// metadata index, deterministic scoring, then staged materialization of
// only the top results. An unreachable candidate is omitted, never a hard
// failure of the whole query.
func (e *Engine) Query(ctx context.Context, namespace, text string, depth Depth, maxResults int) (*QueryResult, error) {
	if maxResults <= 0 || maxResults > e.cfg.MaxResults {
		maxResults = e.cfg.MaxResults
	}

	keywords := Keywords(text, defaultKeywordCap)
	if len(keywords) == 0 {
		return &QueryResult{}, nil
	}

	candidates, err := e.store.Candidates(namespace, keywords, e.cfg.CandidateCap)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &QueryResult{}, nil
	}

	// Optional semantic bonus. Failures degrade to pure keyword scoring.
	var semScores map[string]float64
	if e.sem != nil {
		semScores = e.sem.Similarities(ctx, namespace, text, len(candidates))
	}

	now := e.now()
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score := scoreCandidate(c, keywords, now)
		if bonus, ok := semScores[c.Label]; ok {
			// Blend keeps the total in [0,1] and stays monotonic in both
			// signals.
			score = 0.85*score + 0.15*bonus
		}
		matches = append(matches, Match{
			Label:    c.Label,
			Version:  c.Version,
			Score:    score,
			Preview:  c.Preview,
			Priority: c.Priority,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Label < matches[j].Label
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	result := &QueryResult{Matches: matches}
	if depth == DepthPreview {
		return result, nil
	}

	// Staged materialization: only the top candidates admitted by the
	// load policy get full content.
	var loaded []string
	for i := range result.Matches {
		m := &result.Matches[i]
		if !e.cfg.Policy.Allows(m.Score, len(loaded)) {
			continue
		}
		// Load the exact version the match was scored against so the
		// reported version, preview, and content always describe the same
		// record, even when a newer version of the label no longer matches.
		recs, err := e.store.Get(namespace, m.Label, store.SelectVersion(m.Version))
		if err != nil {
			var nf *store.NotFoundError
			if !errors.As(err, &nf) {
				e.log.Warn("skipping unreachable candidate",
					zap.String("label", m.Label), zap.Error(err))
			}
			continue
		}
		m.Content = recs[0].Content
		m.FullLoaded = true
		loaded = append(loaded, m.Label)
		if err := e.store.Touch(namespace, m.Label); err != nil {
			e.log.Debug("touch failed", zap.String("label", m.Label), zap.Error(err))
		}
	}

	// Materializing several records in one query is a co-access signal.
	if len(loaded) >= 2 {
		if err := e.store.RecordCoAccess(namespace, loaded); err != nil {
			e.log.Debug("co-access record failed", zap.Error(err))
		}
	}

	if depth == DepthDeep {
		result.Explored = e.exploreFrom(namespace, loaded)
	}

	return result, nil
}

// exploreFrom performs the one-hop edge expansion for deep queries,
// loading previews only.
func (e *Engine) exploreFrom(namespace string, labels []string) []Explored {
	var out []Explored
	seen := make(map[string]bool)
	for _, l := range labels {
		seen[l] = true
	}

	for _, from := range labels {
		edges, err := e.store.EdgesFrom(namespace, from, store.EdgeExplicit)
		if err != nil {
			e.log.Debug("edge expansion failed", zap.String("label", from), zap.Error(err))
			continue
		}
		for _, edge := range edges {
			if seen[edge.ToLabel] {
				continue
			}
			seen[edge.ToLabel] = true
			meta, err := e.store.LatestMeta(namespace, edge.ToLabel)
			if err != nil {
				continue // dangling edge: target deleted, omit
			}
			out = append(out, Explored{
				Label:     meta.Label,
				Preview:   meta.Preview,
				FromLabel: from,
				EdgeKind:  edge.Kind,
			})
		}
	}
	return out
}
