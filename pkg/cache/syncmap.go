package cache

import "sync"

// syncMap is a small typed wrapper over a mutex-guarded map. sync.Map is not
// used because entries are read-mostly but typed access keeps callers clean.
type syncMap[V any] struct {
	mu sync.RWMutex
	m  map[string]entry[V]
}

func (s *syncMap[V]) load(key string) (entry[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[key]
	return e, ok
}

func (s *syncMap[V]) store(key string, e entry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]entry[V])
	}
	s.m[key] = e
}

func (s *syncMap[V]) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}
