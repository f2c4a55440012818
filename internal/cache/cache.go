// Package cache provides a generic bounded LRU cache used by every
// repository that keeps an in-memory working set.
//
// Each cache instance owns its eviction state; instances never share access
// order. Eviction is not automatic: repositories call EvictOverflow after a
// batch of inserts, which amortizes the cost instead of paying it on every
// single insert. There are no background timers.
package cache

import "sync"

// entry wraps a stored value with its last-access sequence number.
// A monotonic per-cache sequence gives a strict recency order even when two
// accesses land on the same wall-clock instant.
type entry[V any] struct {
	value      V
	accessedAt uint64
}

// Cache is a bounded LRU cache keyed by entity id.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	seq     uint64

	// avgItemBytes is the assumed serialized size per item, used only for
	// the estimated memory accounting.
	avgItemBytes int
}

// New creates an empty cache. avgItemBytes tunes the memory estimate
// (0 = no accounting).
func New[K comparable, V any](avgItemBytes int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:      make(map[K]*entry[V]),
		avgItemBytes: avgItemBytes,
	}
}

// Get returns the cached value and refreshes its recency.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.seq++
	e.accessedAt = c.seq
	return e.value, true
}

// Set stores a value and refreshes its recency.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.accessedAt = c.seq
		return
	}
	c.entries[key] = &entry[V]{value: value, accessedAt: c.seq}
}

// Has reports whether key is cached without touching its recency.
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Delete removes a key. Removing an absent key is a no-op.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// EvictOverflow removes least-recently-accessed entries until the cache holds
// at most limit entries, returning the number evicted. Eviction order is
// strict ascending last-access.
func (c *Cache[K, V]) EvictOverflow(limit int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit < 0 {
		limit = 0
	}
	overflow := len(c.entries) - limit
	if overflow <= 0 {
		return 0
	}

	evicted := 0
	for i := 0; i < overflow; i++ {
		var oldestKey K
		var oldestSeq uint64
		found := false
		for k, e := range c.entries {
			if !found || e.accessedAt < oldestSeq {
				oldestKey = k
				oldestSeq = e.accessedAt
				found = true
			}
		}
		if !found {
			break
		}
		delete(c.entries, oldestKey)
		evicted++
	}
	return evicted
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[V])
}

// EstimatedBytes returns a rough memory footprint: item count times the
// configured average serialized size. Diagnostic only, never exact.
func (c *Cache[K, V]) EstimatedBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries) * c.avgItemBytes
}
