package record

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recently used runs in memory and delegates to a
// backing Store for persistence and on cache misses.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List // front is most recent; values are *Run
	items map[string]*list.Element
}

// NewLRUStore creates an LRU cache with the given capacity over back.
// Capacities below 1 are raised to 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save caches run and writes it through to the backing store.
func (s *LRUStore) Save(run *Run) error {
	s.put(run)
	return s.back.Save(run)
}

// Load returns a cached run, or loads it from the backing store and
// caches it.
func (s *LRUStore) Load(runID string) (*Run, error) {
	s.mu.Lock()
	if e, ok := s.items[runID]; ok {
		s.order.MoveToFront(e)
		run := e.Value.(*Run)
		s.mu.Unlock()
		return run, nil
	}
	s.mu.Unlock()

	run, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.put(run)
	return run, nil
}

// Len returns the number of cached runs.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *LRUStore) put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[run.ID]; ok {
		e.Value = run
		s.order.MoveToFront(e)
		return
	}
	s.items[run.ID] = s.order.PushFront(run)
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*Run).ID)
	}
}
