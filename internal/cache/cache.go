// Package cache provides a process-local expiring key/value store split into
// independently named namespaces, each with its own default TTL.
//
// Expiry is lazy: an entry whose expiry instant is not after the current
// clock reading is reported absent and removed on that read. There is no
// background sweeper. With WithMaxEntries a namespace is additionally bounded
// in size and admission/eviction is delegated to ristretto.
package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Stats represents per-namespace cache statistics.
type Stats struct {
	Hits        uint64        `json:"hits"`
	Misses      uint64        `json:"misses"`
	Sets        uint64        `json:"sets"`
	Expirations uint64        `json:"expirations"`
	Evictions   uint64        `json:"evictions"`
	Items       int           `json:"items"`
	DefaultTTL  time.Duration `json:"-"`
	TTLSeconds  float64       `json:"default_ttl_seconds"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(now Clock) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxEntries bounds every namespace registered afterwards to roughly n
// live entries. n <= 0 keeps the unbounded map store.
func WithMaxEntries(n int64) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// namespaceHandle is the type-erased view the registry keeps of a Namespace.
type namespaceHandle interface {
	Stats() Stats
	Clear()
	Len() int
	close()
}

// Cache is the registry of namespaces. Construct one at startup and pass it
// to the components that need it.
type Cache struct {
	now        Clock
	maxEntries int64

	mu     sync.RWMutex
	spaces map[string]namespaceHandle
}

// New creates an empty registry.
func New(opts ...Option) *Cache {
	c := &Cache{
		now:    SystemClock,
		spaces: make(map[string]namespaceHandle),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates the namespace name holding values of type V. It panics if
// the name is already registered, or if the bounded store cannot be built.
func Register[V any](c *Cache, name string, defaultTTL time.Duration) *Namespace[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.spaces[name]; dup {
		panic(fmt.Sprintf("cache: namespace %q already registered", name))
	}

	var st store[V]
	if c.maxEntries > 0 {
		b, err := newBoundedStore[V](c.maxEntries)
		if err != nil {
			panic(fmt.Sprintf("cache: namespace %q: %v", name, err))
		}
		st = b
	} else {
		st = newMapStore[V]()
	}

	ns := &Namespace[V]{name: name, ttl: defaultTTL, now: c.now, store: st}
	c.spaces[name] = ns
	return ns
}

// Names returns registered namespace names in sorted order.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.spaces))
	for n := range c.spaces {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stats returns statistics for every namespace.
func (c *Cache) Stats() map[string]Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Stats, len(c.spaces))
	for n, ns := range c.spaces {
		out[n] = ns.Stats()
	}
	return out
}

// ItemCounts returns the number of stored entries per namespace. Expired
// entries not yet read are included.
func (c *Cache) ItemCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.spaces))
	for n, ns := range c.spaces {
		out[n] = ns.Len()
	}
	return out
}

// Clear empties every namespace.
func (c *Cache) Clear() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ns := range c.spaces {
		ns.Clear()
	}
}

// ClearNamespace empties a single namespace and reports whether it exists.
func (c *Cache) ClearNamespace(name string) bool {
	c.mu.RLock()
	ns, ok := c.spaces[name]
	c.mu.RUnlock()
	if ok {
		ns.Clear()
	}
	return ok
}

// Close releases resources held by bounded namespaces.
func (c *Cache) Close() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ns := range c.spaces {
		ns.close()
	}
}
