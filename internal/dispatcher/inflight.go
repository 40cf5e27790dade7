package dispatcher

import (
	"path/filepath"
	"sync"
)

// inFlight is the set of paths with an attempt queued or running.
type inFlight struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func newInFlight() *inFlight {
	return &inFlight{paths: make(map[string]struct{})}
}

// tryAcquire adds path and reports whether it was absent.
func (s *inFlight) tryAcquire(path string) bool {
	key := filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.paths[key]; busy {
		return false
	}
	s.paths[key] = struct{}{}
	return true
}

func (s *inFlight) release(path string) {
	key := filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, key)
}

func (s *inFlight) has(path string) bool {
	key := filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paths[key]
	return ok
}

func (s *inFlight) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}
