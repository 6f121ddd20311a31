package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
)

// boundedStore caps a namespace at maxEntries using ristretto's TinyLFU
// admission and sampled LFU eviction. Every entry costs 1. Expiry is still
// decided against the namespace clock, not ristretto's internal TTL.
type boundedStore[V any] struct {
	cache *ristretto.Cache
	// mu orders writes against expiry removal; reads stay lock-free.
	mu      sync.Mutex
	removed atomic.Int64 // explicit deletes, which ristretto does not count as evictions
}

func newBoundedStore[V any](maxEntries int64) (*boundedStore[V], error) {
	// NumCounters should be ~10x the number of entries for optimal performance
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        numCounters,
		MaxCost:            maxEntries,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &boundedStore[V]{cache: c}, nil
}

func (s *boundedStore[V]) lookup(key string, now time.Time) (entry[V], bool, bool) {
	raw, found := s.cache.Get(key)
	if !found {
		return entry[V]{}, false, false
	}
	e, ok := raw.(entry[V])
	if !ok {
		s.cache.Del(key)
		return entry[V]{}, false, false
	}
	if e.live(now) {
		return e, true, false
	}

	// Re-check under the lock: a concurrent Set may have replaced it.
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, found = s.cache.Get(key)
	if !found {
		return entry[V]{}, false, false
	}
	if cur, ok := raw.(entry[V]); ok && cur.live(now) {
		return cur, true, false
	}
	s.remove(key)
	return entry[V]{}, false, true
}

func (s *boundedStore[V]) put(key string, e entry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A rejected Set is dropped by the admission policy; the next lookup
	// is then a miss.
	_ = s.cache.Set(key, e, 1)
	// Wait for value to pass through buffers
	s.cache.Wait()
}

func (s *boundedStore[V]) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.cache.Get(key); found {
		s.remove(key)
	}
}

func (s *boundedStore[V]) remove(key string) {
	s.cache.Del(key)
	s.cache.Wait()
	s.removed.Add(1)
}

func (s *boundedStore[V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Clear()
	s.removed.Store(0)
}

// len is approximate: it is derived from ristretto's admission counters.
func (s *boundedStore[V]) len() int {
	m := s.cache.Metrics
	n := int64(m.KeysAdded()) - int64(m.KeysEvicted()) - s.removed.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func (s *boundedStore[V]) evictions() uint64 { return s.cache.Metrics.KeysEvicted() }

func (s *boundedStore[V]) close() { s.cache.Close() }
