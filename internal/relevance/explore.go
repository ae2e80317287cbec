package relevance

import (
	"errors"

	"go.uber.org/zap"

	"github.com/recall-mcp/recall/internal/store"
)

// ExploreNode is one record discovered during recursive exploration. Via
// and EdgeKind identify the discovering edge for provenance rendering;
// the root node carries neither.
type ExploreNode struct {
	Label    string         `json:"label"`
	Version  int            `json:"version"`
	Preview  string         `json:"preview"`
	Priority store.Priority `json:"priority"`
	Depth    int            `json:"depth"`
	Via      string         `json:"via,omitempty"`
	EdgeKind string         `json:"edge_kind,omitempty"`
}

// Explore performs breadth-first traversal over explicit edges starting
// from a label, loading only previews per hop. A visited set guarantees
// termination under cycles — cycles are expected, not an error. An
// unknown starting label returns an empty result: absence of knowledge
// is a valid answer.
func (e *Engine) Explore(namespace, label string, maxDepth, maxResults int) ([]ExploreNode, error) {
	if maxDepth <= 0 {
		maxDepth = e.cfg.ExploreDepth
	}
	if maxDepth > 5 {
		maxDepth = 5
	}
	if maxResults <= 0 || maxResults > e.cfg.ExploreMaxResults {
		maxResults = e.cfg.ExploreMaxResults
	}

	root, err := e.store.LatestMeta(namespace, label)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, err
	}

	type queueItem struct {
		label string
		depth int
		via   string
		kind  string
	}

	visited := map[string]bool{root.Label: true}
	queue := []queueItem{{label: root.Label, depth: 0}}
	results := []ExploreNode{{
		Label:    root.Label,
		Version:  root.Version,
		Preview:  root.Preview,
		Priority: root.Priority,
		Depth:    0,
	}}

	for len(queue) > 0 && len(results) < maxResults {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		edges, err := e.store.EdgesFrom(namespace, current.label, store.EdgeExplicit)
		if err != nil {
			e.log.Debug("explore hop failed",
				zap.String("label", current.label), zap.Error(err))
			continue
		}

		for _, edge := range edges {
			if len(results) >= maxResults {
				break
			}
			if visited[edge.ToLabel] {
				continue
			}
			visited[edge.ToLabel] = true

			meta, err := e.store.LatestMeta(namespace, edge.ToLabel)
			if err != nil {
				continue // edge points at a label with no live versions
			}

			depth := current.depth + 1
			results = append(results, ExploreNode{
				Label:    meta.Label,
				Version:  meta.Version,
				Preview:  meta.Preview,
				Priority: meta.Priority,
				Depth:    depth,
				Via:      current.label,
				EdgeKind: edge.Kind,
			})
			queue = append(queue, queueItem{label: edge.ToLabel, depth: depth})
		}
	}

	return results, nil
}
