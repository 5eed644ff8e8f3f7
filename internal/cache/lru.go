package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache bounds entries by count and age. Clear starts a new generation;
// values computed against an older generation are dropped by Fill.
type LRUCache[K comparable, V any] struct {
	mu         sync.Mutex
	maxSize    int
	ttl        time.Duration
	now        func() time.Time
	entries    map[K]*list.Element
	order      *list.List
	generation uint64
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// NewLRUCache creates a cache holding at most maxSize entries for ttl each.
func NewLRUCache[K comparable, V any](maxSize int, ttl time.Duration) *LRUCache[K, V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]*list.Element),
		order:   list.New(),
	}
}

// WithClock replaces the time source; used by tests.
func (c *LRUCache[K, V]) WithClock(now func() time.Time) *LRUCache[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Lookup returns the live value for key together with the current
// generation, which the caller hands back to Fill on a miss.
func (c *LRUCache[K, V]) Lookup(key K) (V, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, c.generation, false
	}
	e := elem.Value.(*entry[K, V])
	if !c.now().Before(e.expiresAt) {
		c.remove(elem)
		return zero, c.generation, false
	}
	c.order.MoveToFront(elem)
	return e.value, c.generation, true
}

// Get returns the live value for key.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	v, _, ok := c.Lookup(key)
	return v, ok
}

// Fill stores value only if no Clear happened since generation was read.
func (c *LRUCache[K, V]) Fill(generation uint64, key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	c.put(key, value)
	return true
}

// Set stores value unconditionally.
func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, value)
}

func (c *LRUCache[K, V]) put(key K, value V) {
	e := &entry[K, V]{key: key, value: value, expiresAt: c.now().Add(c.ttl)}
	if elem, ok := c.entries[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}
	c.entries[key] = c.order.PushFront(e)
	for c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
	}
}

// Delete removes key.
func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.remove(elem)
	}
}

func (c *LRUCache[K, V]) remove(elem *list.Element) {
	delete(c.entries, elem.Value.(*entry[K, V]).key)
	c.order.Remove(elem)
}

// CleanExpired removes expired entries and reports how many went.
func (c *LRUCache[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if !now.Before(elem.Value.(*entry[K, V]).expiresAt) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Clear drops every entry and advances the generation.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.order.Init()
	c.generation++
}

func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
