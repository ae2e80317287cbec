package relevance

import (
	"context"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// SemanticIndex is the optional embedding-backed side-index for the
// relevance engine. Embedding generation itself is external: callers
// inject a chromem.EmbeddingFunc (the scoring provider). Every method is
// best-effort — a failing or slow provider degrades to pure keyword
// relevance and never blocks or fails the baseline path.
type SemanticIndex struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc
	log   *zap.Logger

	mu   sync.Mutex
	cols map[string]*chromem.Collection
}

// NewSemanticIndex creates a semantic index around an injected embedding
// provider. Returns nil when embed is nil: a nil *SemanticIndex is the
// "semantic enhancement disabled" state and is safe to pass to NewEngine.
func NewSemanticIndex(embed chromem.EmbeddingFunc, log *zap.Logger) *SemanticIndex {
	if embed == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SemanticIndex{
		db:    chromem.NewDB(),
		embed: embed,
		log:   log.Named("semantic"),
		cols:  make(map[string]*chromem.Collection),
	}
}

// collection returns the per-namespace chromem collection, creating it on
// first use. Namespace isolation carries through to the side-index.
func (s *SemanticIndex) collection(namespace string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cols[namespace]; ok {
		return c, nil
	}
	c, err := s.db.GetOrCreateCollection("ns-"+namespace, nil, s.embed)
	if err != nil {
		return nil, err
	}
	s.cols[namespace] = c
	return c, nil
}

// Index adds one record's content to the namespace collection.
// Best-effort: failures are logged, never returned.
func (s *SemanticIndex) Index(ctx context.Context, namespace, id, label, content string) {
	col, err := s.collection(namespace)
	if err != nil {
		s.log.Debug("semantic collection unavailable", zap.String("namespace", namespace), zap.Error(err))
		return
	}
	err = col.AddDocument(ctx, chromem.Document{
		ID:       id,
		Metadata: map[string]string{"label": label},
		Content:  content,
	})
	if err != nil {
		s.log.Debug("semantic index write failed",
			zap.String("namespace", namespace), zap.String("label", label), zap.Error(err))
	}
}

// Forget drops documents by ID after a delete. Best-effort.
func (s *SemanticIndex) Forget(ctx context.Context, namespace string, ids []string) {
	if len(ids) == 0 {
		return
	}
	col, err := s.collection(namespace)
	if err != nil {
		return
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		s.log.Debug("semantic index delete failed", zap.String("namespace", namespace), zap.Error(err))
	}
}

// Similarities returns label→similarity for the query text, or nil when
// the side-call fails. Similarities are cosine scores in [0,1]; when one
// label has several indexed versions the best score wins.
func (s *SemanticIndex) Similarities(ctx context.Context, namespace, text string, n int) map[string]float64 {
	col, err := s.collection(namespace)
	if err != nil {
		return nil
	}
	count := col.Count()
	if count == 0 {
		return nil
	}
	if n <= 0 || n > count {
		n = count
	}

	results, err := col.Query(ctx, text, n, nil, nil)
	if err != nil {
		s.log.Debug("semantic query failed", zap.String("namespace", namespace), zap.Error(err))
		return nil
	}

	out := make(map[string]float64, len(results))
	for _, r := range results {
		label := r.Metadata["label"]
		if label == "" {
			continue
		}
		sim := float64(r.Similarity)
		if sim < 0 {
			sim = 0
		}
		if sim > out[label] {
			out[label] = sim
		}
	}
	return out
}
