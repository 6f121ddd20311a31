package cache

import (
	"sync"
	"time"
)

// mapStore is the default unbounded store guarded by a single RWMutex.
type mapStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
}

func newMapStore[V any]() *mapStore[V] {
	return &mapStore[V]{entries: make(map[string]entry[V])}
}

func (s *mapStore[V]) lookup(key string, now time.Time) (entry[V], bool, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return e, false, false
	}
	if e.live(now) {
		return e, true, false
	}

	// Re-check under the write lock: a concurrent Set may have replaced it.
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[key]
	if !ok {
		return cur, false, false
	}
	if cur.live(now) {
		return cur, true, false
	}
	delete(s.entries, key)
	return entry[V]{}, false, true
}

func (s *mapStore[V]) put(key string, e entry[V]) {
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

func (s *mapStore[V]) del(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *mapStore[V]) clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry[V])
	s.mu.Unlock()
}

func (s *mapStore[V]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *mapStore[V]) evictions() uint64 { return 0 }

func (s *mapStore[V]) close() {}
