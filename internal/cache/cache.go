package cache

import "sync"

// Cache is a generic thread-safe LRU cache with a hard limit. Values
// pushed out by the limit, or removed with Delete and Clear, are handed
// to the eviction callback so owners can release what they hold.
//
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*cacheEntry[K, V]
	order   *lruList[K]
	limit   int
	onEvict func(K, V)

	hits      uint64
	misses    uint64
	evictions uint64
}

type cacheEntry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

// New creates a cache holding at most limit entries. A limit of 0 means
// unlimited. onEvict may be nil.
func New[K comparable, V any](limit int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*cacheEntry[K, V]),
		order:   newLRUList[K](),
		limit:   limit,
		onEvict: onEvict,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(e.node)
	return e.value, true
}

// Set stores a value, replacing and evicting any previous value for key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	evicted := c.set(key, value)
	c.mu.Unlock()
	c.notify(evicted)
}

// GetOrCreate returns the cached value or stores the result of create.
// create runs under the lock, so concurrent callers never create twice;
// an error from create is returned and nothing is stored.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(e.node)
		c.mu.Unlock()
		return e.value, nil
	}
	c.misses++
	value, err := create()
	if err != nil {
		c.mu.Unlock()
		var zero V
		return zero, err
	}
	evicted := c.set(key, value)
	c.mu.Unlock()
	c.notify(evicted)
	return value, nil
}

// Delete removes an entry and reports whether it existed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.order.Remove(e.node)
		delete(c.entries, key)
	}
	c.mu.Unlock()
	if ok {
		c.notify([]evicted[K, V]{{key, e.value}})
	}
	return ok
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	all := make([]evicted[K, V], 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, evicted[K, V]{k, e.value})
	}
	c.entries = make(map[K]*cacheEntry[K, V])
	c.order.Clear()
	c.mu.Unlock()
	c.notify(all)
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the limit of the cache.
func (c *Cache[K, V]) Capacity() int {
	return c.limit
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Len:       len(c.entries),
		Capacity:  c.limit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

type evicted[K comparable, V any] struct {
	key   K
	value V
}

// set stores value and returns what was pushed out. Caller holds c.mu.
func (c *Cache[K, V]) set(key K, value V) []evicted[K, V] {
	var out []evicted[K, V]
	if e, ok := c.entries[key]; ok {
		out = append(out, evicted[K, V]{key, e.value})
		e.value = value
		c.order.MoveToFront(e.node)
		return out
	}
	c.entries[key] = &cacheEntry[K, V]{value: value, node: c.order.PushFront(key)}
	for c.limit > 0 && len(c.entries) > c.limit {
		k, ok := c.order.RemoveOldest()
		if !ok {
			break
		}
		out = append(out, evicted[K, V]{k, c.entries[k].value})
		delete(c.entries, k)
		c.evictions++
	}
	return out
}

// notify runs the eviction callback outside the lock.
func (c *Cache[K, V]) notify(out []evicted[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range out {
		c.onEvict(e.key, e.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the entry limit, 0 for unlimited.
	Capacity int
	// Hits counts lookups that found a value.
	Hits uint64
	// Misses counts lookups that did not.
	Misses uint64
	// HitRate is Hits over all lookups, 0.0 to 1.0.
	HitRate float64
	// Evictions counts entries pushed out by the limit.
	Evictions uint64
}
