package scope

import (
	"maps"
	"sync"
)

// MapStore is an in-memory Store, handy for registries and for tests.
type MapStore[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewMapStore returns a MapStore seeded with a copy of initial.
func NewMapStore[K comparable, V any](initial map[K]V) *MapStore[K, V] {
	m := make(map[K]V, len(initial))
	maps.Copy(m, initial)
	return &MapStore[K, V]{m: m}
}

func (s *MapStore[K, V]) Lookup(key K) (V, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MapStore[K, V]) Store(key K, value V) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MapStore[K, V]) Delete(key K) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current contents.
func (s *MapStore[K, V]) Snapshot() map[K]V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.m)
}
