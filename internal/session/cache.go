package session

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache maps client fingerprints to their last-selected namespace so a
// reconnecting client's new session can resolve without re-selection.
// It is a bounded-lifetime optimization, not correctness-critical: a
// stale or evicted entry degrades to explicit selection, never to
// wrong-namespace access — the authoritative record is the session row
// in the backing store.
type Cache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

// NewCache creates a fingerprint→namespace cache with the given sliding
// TTL.
func NewCache(ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000, // ~10x expected live fingerprints
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("session: create namespace cache: %w", err)
	}
	return &Cache{c: c, ttl: ttl}, nil
}

// Lookup returns the cached namespace for a fingerprint. A hit refreshes
// the entry (sliding TTL).
func (c *Cache) Lookup(fingerprint string) (string, bool) {
	if fingerprint == "" {
		return "", false
	}
	v, ok := c.c.Get(fingerprint)
	if !ok {
		return "", false
	}
	ns, ok := v.(string)
	if !ok || ns == "" {
		return "", false
	}
	c.c.SetWithTTL(fingerprint, ns, 1, c.ttl)
	return ns, true
}

// Remember stores a fingerprint→namespace mapping, last-write-wins.
func (c *Cache) Remember(fingerprint, namespace string) {
	if fingerprint == "" || namespace == "" {
		return
	}
	c.c.SetWithTTL(fingerprint, namespace, 1, c.ttl)
}

// Forget drops a fingerprint's entry.
func (c *Cache) Forget(fingerprint string) {
	c.c.Del(fingerprint)
}

// Wait blocks until buffered writes are applied. Ristretto admits entries
// asynchronously; tests call this before asserting on Lookup.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close releases the cache's resources.
func (c *Cache) Close() {
	c.c.Close()
}
