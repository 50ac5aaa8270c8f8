package lexicon

import (
	"context"
	"sync"
	"time"

	"github.com/parsavox/medscribe/internal/observe"
)

// defaultCacheTTL bounds how stale a cached term map may get even when no
// invalidation arrives (e.g. a write from another process).
const defaultCacheTTL = 5 * time.Minute

// CacheOption is a functional option for configuring a [CachedStore].
type CacheOption func(*CachedStore)

// WithTTL overrides the cache entry lifetime. Default: 5 minutes.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedStore) {
		c.ttl = ttl
	}
}

// WithMetrics attaches a [observe.Metrics] instance for cache hit/miss
// accounting. When nil (the default), lookups are not recorded.
func WithMetrics(m *observe.Metrics) CacheOption {
	return func(c *CachedStore) {
		c.metrics = m
	}
}

// cacheEntry pairs a loaded lexicon with its term map and load time.
type cacheEntry struct {
	lexicon  Lexicon
	terms    TermMap
	loadedAt time.Time
}

// CachedStore is a read-through TTL cache in front of another [Store].
// It is the only mutable shared state at the system boundary: correction
// calls across many workers read through it, and the administration path
// calls [CachedStore.Invalidate] after writes.
//
// CachedStore is safe for concurrent use.
type CachedStore struct {
	inner   Store
	ttl     time.Duration
	metrics *observe.Metrics

	mu      sync.RWMutex
	entries map[string]cacheEntry

	// now is swapped in tests to control entry expiry.
	now func() time.Time
}

// Compile-time interface checks.
var (
	_ Store       = (*CachedStore)(nil)
	_ Invalidator = (*CachedStore)(nil)
)

// NewCachedStore wraps inner with a read-through TTL cache.
func NewCachedStore(inner Store, opts ...CacheOption) *CachedStore {
	c := &CachedStore{
		inner:   inner,
		ttl:     defaultCacheTTL,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lexicon implements [Store].
func (c *CachedStore) Lexicon(ctx context.Context, id string) (Lexicon, error) {
	entry, err := c.load(ctx, id)
	if err != nil {
		return Lexicon{}, err
	}
	return entry.lexicon, nil
}

// Terms implements [Store].
func (c *CachedStore) Terms(ctx context.Context, id string) (TermMap, error) {
	entry, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry.terms, nil
}

// Invalidate implements [Invalidator]: it drops the cached entry for
// lexiconID so the next read loads fresh data.
func (c *CachedStore) Invalidate(lexiconID string) {
	c.mu.Lock()
	delete(c.entries, lexiconID)
	c.mu.Unlock()
}

// load returns the cached entry for id, fetching through to the inner
// store on miss or expiry. Load failures are not cached: the next call
// retries the inner store.
func (c *CachedStore) load(ctx context.Context, id string) (cacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.loadedAt) < c.ttl {
		c.recordLookup(ctx, id, true)
		return entry, nil
	}
	c.recordLookup(ctx, id, false)

	lex, err := c.inner.Lexicon(ctx, id)
	if err != nil {
		return cacheEntry{}, err
	}
	terms, err := c.inner.Terms(ctx, id)
	if err != nil {
		return cacheEntry{}, err
	}

	entry = cacheEntry{lexicon: lex, terms: terms, loadedAt: c.now()}
	c.mu.Lock()
	c.entries[id] = entry
	c.mu.Unlock()
	return entry, nil
}

func (c *CachedStore) recordLookup(ctx context.Context, id string, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(ctx, id, hit)
	}
}
