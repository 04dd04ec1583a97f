package lookup

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	val     V
	expires time.Time
}

// Cache is a small TTL map. Expired entries are dropped lazily on Get and by Purge.
type Cache[K comparable, V any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[K]cacheEntry[V]
}

func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{ttl: ttl, now: time.Now, items: map[K]cacheEntry[V]{}}
}

func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[k]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expires) {
		delete(c.items, k)
		var zero V
		return zero, false
	}
	return e.val, true
}

func (c *Cache[K, V]) Set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[k] = cacheEntry[V]{val: v, expires: c.now().Add(c.ttl)}
}

// Purge removes expired entries and returns how many were dropped.
func (c *Cache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
