// Package snapshot publishes the latest committed timestamp as an
// atomically-readable handle. Every new transaction's begin_ts comes from
// here; the committer advances it exactly once per commit, after the write
// is durable and applied to the MVCC index. Snapshot publish is a single
// atomic store of the timestamp, not a lock.
package snapshot

import (
	"sync/atomic"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

// Manager holds the latest published commit timestamp.
type Manager struct {
	latest atomic.Uint64
}

// New returns a Manager seeded at ts (0 for a fresh store).
func New(ts model.Ts) *Manager {
	m := &Manager{}
	m.latest.Store(ts)
	return m
}

// Latest returns the most recently published commit timestamp. A new
// transaction's begin_ts is this value at the instant BeginTransaction
// runs.
func (m *Manager) Latest() model.Ts {
	return m.latest.Load()
}

// Advance publishes ts as the new latest commit timestamp. The committer is
// the only caller, as the single writer in the commit pipeline; ts must be
// strictly greater than the previous value, which holds because timestamps
// come from a monotonic clock.Source.
func (m *Manager) Advance(ts model.Ts) {
	m.latest.Store(ts)
}
