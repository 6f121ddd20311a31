package cache

import (
	"sync/atomic"
	"time"

	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// live reports whether the entry is still visible at now.
func (e entry[V]) live(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// store is the storage strategy behind a namespace.
type store[V any] interface {
	// lookup returns the entry for key, removing it first if it is no
	// longer live at now. expired reports such a removal.
	lookup(key string, now time.Time) (e entry[V], ok bool, expired bool)
	put(key string, e entry[V])
	del(key string)
	clear()
	len() int
	evictions() uint64
	close()
}

// Namespace is an independent key space with a default TTL.
type Namespace[V any] struct {
	name  string
	ttl   time.Duration
	now   Clock
	store store[V]

	hits        atomic.Uint64
	misses      atomic.Uint64
	sets        atomic.Uint64
	expirations atomic.Uint64
}

// Name returns the namespace name.
func (n *Namespace[V]) Name() string { return n.name }

// DefaultTTL returns the TTL applied when Set is called with ttl <= 0.
func (n *Namespace[V]) DefaultTTL() time.Duration { return n.ttl }

// Get returns the value for key if present and not expired.
func (n *Namespace[V]) Get(key string) (V, bool) {
	e, ok, expired := n.store.lookup(key, n.now())
	if expired {
		n.expirations.Add(1)
		metrics.CacheExpirations.WithLabelValues(n.name).Inc()
	}
	if !ok {
		n.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(n.name).Inc()
		var zero V
		return zero, false
	}
	n.hits.Add(1)
	metrics.CacheHits.WithLabelValues(n.name).Inc()
	return e.value, true
}

// Set stores value under key, replacing any previous entry. ttl <= 0 uses
// the namespace default.
func (n *Namespace[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = n.ttl
	}
	n.store.put(key, entry[V]{value: value, expiresAt: n.now().Add(ttl)})
	n.sets.Add(1)
}

// Delete removes key.
func (n *Namespace[V]) Delete(key string) { n.store.del(key) }

// Clear removes every entry.
func (n *Namespace[V]) Clear() { n.store.clear() }

// Len returns the number of stored entries, including expired ones that
// have not been read since they expired.
func (n *Namespace[V]) Len() int { return n.store.len() }

// Stats returns a snapshot of the namespace counters.
func (n *Namespace[V]) Stats() Stats {
	return Stats{
		Hits:        n.hits.Load(),
		Misses:      n.misses.Load(),
		Sets:        n.sets.Load(),
		Expirations: n.expirations.Load(),
		Evictions:   n.store.evictions(),
		Items:       n.store.len(),
		DefaultTTL:  n.ttl,
		TTLSeconds:  n.ttl.Seconds(),
	}
}

func (n *Namespace[V]) close() { n.store.close() }
