// Package store keeps the in-memory pool table that the push and poll
// channels both write into. Poll snapshots replace the table wholesale;
// push events only touch the status column of a single row.
package store

import (
	"sync"

	"poolConsole/internal/model"
	"poolConsole/internal/pipeline"
)

// Store is the authoritative in-memory view of the pools the console is
// tracking. All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	pools    []model.Pool
	index    map[int64]int
	onChange func()
}

func New() *Store {
	return &Store{index: make(map[int64]int)}
}

// OnChange registers a callback fired after every mutation that changed
// visible state. The callback runs outside the store lock.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Replace swaps the entire pool table for the given snapshot. Later
// snapshots win unconditionally, including dropped rows and cleared
// fields.
func (s *Store) Replace(pools []model.Pool) {
	next := make([]model.Pool, len(pools))
	copy(next, pools)

	idx := make(map[int64]int, len(next))
	for i, p := range next {
		idx[p.ID] = i
	}

	s.mu.Lock()
	s.pools = next
	s.index = idx
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// ApplyStatus updates only the status of the identified pool, leaving
// every other field untouched. It reports the previous status and
// whether the pool was present.
func (s *Store) ApplyStatus(poolID int64, status pipeline.Status) (pipeline.Status, bool) {
	s.mu.Lock()
	i, ok := s.index[poolID]
	if !ok {
		s.mu.Unlock()
		return "", false
	}
	prev := s.pools[i].Status
	s.pools[i].Status = status
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil && prev != status {
		fn()
	}
	return prev, true
}

// Get returns a copy of the pool with the given id.
func (s *Store) Get(poolID int64) (model.Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[poolID]
	if !ok {
		return model.Pool{}, false
	}
	return s.pools[i], true
}

// FindByTxID locates a pool by one of its recorded transaction ids.
// Only the pool creation and loans creation ids participate; config
// transactions never appear in legacy event payloads.
func (s *Store) FindByTxID(txID string) (model.Pool, bool) {
	if txID == "" {
		return model.Pool{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pools {
		if p.PoolCreationTxID == txID || p.LoansCreationTxID == txID {
			return p, true
		}
	}
	return model.Pool{}, false
}

// Snapshot returns a copy of the current pool table in snapshot order.
func (s *Store) Snapshot() []model.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Pool, len(s.pools))
	copy(out, s.pools)
	return out
}

// Pending returns the pools still moving through the pipeline, meaning
// everything whose status is not terminal.
func (s *Store) Pending() []model.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Pool
	for _, p := range s.pools {
		if !p.Status.Terminal() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}
