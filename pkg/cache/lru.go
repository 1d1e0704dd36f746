package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Entry holds a cached value with its expiry.
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// LRU is a thread-safe least-recently-used cache with a per-entry TTL.
// A zero or negative TTL keeps entries until they are evicted by capacity.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
	now      func() time.Time

	hits   uint64
	misses uint64
}

type node[V any] struct {
	key   string
	entry Entry[V]
}

// New creates an LRU with the given capacity and TTL. Capacity defaults to 128.
func New[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 128
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	n := elem.Value.(*node[V])
	if c.expired(n.entry) {
		c.order.Remove(elem)
		delete(c.items, key)
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return n.entry.Value, true
}

// Set inserts or refreshes key, evicting the least recently used entry when full.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry[V]{Value: value}
	if c.ttl > 0 {
		entry.ExpiresAt = c.now().Add(c.ttl)
	}

	if elem, ok := c.items[key]; ok {
		elem.Value.(*node[V]).entry = entry
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&node[V]{key: key, entry: entry})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*node[V]).key)
	}
}

// Delete removes key if present.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

// Len returns the number of entries, including expired ones not yet collected.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats reports hit and miss counters since creation.
func (c *LRU[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *LRU[V]) expired(e Entry[V]) bool {
	return !e.ExpiresAt.IsZero() && c.now().After(e.ExpiresAt)
}

// HashKey derives a stable cache key from the given parts.
func HashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
