package mvccindex

import (
	"sync"
	"sync/atomic"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

// qualifiedName joins a table and index name into the Store's lookup key.
func qualifiedName(table, index string) string { return table + ":" + index }

// Store owns every table's indexes (primary and secondary) plus the
// retention horizon shared across all of them.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*Index

	retMu    sync.Mutex
	inFlight map[model.Ts]int // open transaction begin timestamps, refcounted

	swept atomic.Uint64 // horizon as of the last completed Sweep
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		indexes:  make(map[string]*Index),
		inFlight: make(map[model.Ts]int),
	}
}

// Index returns (creating if needed) the named index for table.
func (s *Store) Index(table, index string) *Index {
	name := qualifiedName(table, index)

	s.mu.RLock()
	idx, ok := s.indexes[name]
	s.mu.RUnlock()
	if ok {
		return idx
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[name]; ok {
		return idx
	}
	idx = New()
	s.indexes[name] = idx
	return idx
}

// AcquireBeginTs registers an open transaction's begin timestamp as a
// retention pin, preventing the sweep from trimming versions it still needs
// to see. Pairs with ReleaseBeginTs.
func (s *Store) AcquireBeginTs(ts model.Ts) {
	s.retMu.Lock()
	defer s.retMu.Unlock()
	s.inFlight[ts]++
}

// ReleaseBeginTs unpins a begin timestamp acquired by AcquireBeginTs.
func (s *Store) ReleaseBeginTs(ts model.Ts) {
	s.retMu.Lock()
	defer s.retMu.Unlock()
	if n, ok := s.inFlight[ts]; ok {
		if n <= 1 {
			delete(s.inFlight, ts)
		} else {
			s.inFlight[ts] = n - 1
		}
	}
}

// Horizon returns the oldest pinned begin timestamp, or latestCommitTs if no
// transaction is open.
func (s *Store) Horizon(latestCommitTs model.Ts) model.Ts {
	s.retMu.Lock()
	defer s.retMu.Unlock()
	oldest := latestCommitTs
	for ts := range s.inFlight {
		if ts < oldest {
			oldest = ts
		}
	}
	return oldest
}

// Sweep trims every index to horizon. Called from the background retention
// loop (see Sweeper).
func (s *Store) Sweep(horizon model.Ts) {
	s.mu.RLock()
	indexes := make([]*Index, 0, len(s.indexes))
	for _, idx := range s.indexes {
		indexes = append(indexes, idx)
	}
	s.mu.RUnlock()

	for _, idx := range indexes {
		idx.TrimBefore(horizon)
	}
	s.swept.Store(horizon)
}

// RetentionHorizon returns the horizon as of the last completed Sweep. A
// transaction whose begin timestamp falls below this value can no longer
// trust the index to hold every version it would need to see.
func (s *Store) RetentionHorizon() model.Ts {
	return s.swept.Load()
}
