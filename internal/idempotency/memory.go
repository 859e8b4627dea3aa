package idempotency

import "sync"

// memorySet is a bounded insert-only set with FIFO eviction. It exists so a
// redis outage degrades to per-process dedup instead of dropped webhooks.
type memorySet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	cap   int
}

func newMemorySet(capacity int) *memorySet {
	if capacity <= 0 {
		capacity = 1024
	}
	return &memorySet{
		seen: make(map[string]struct{}, capacity),
		cap:  capacity,
	}
}

// Add returns true if id was newly inserted, false if already present.
func (s *memorySet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false
	}
	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}
