package writelog

import (
	"sync"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

// Staged is one transaction's write set awaiting commit, carrying the
// assigned commit timestamp once the committer reserves it.
type Staged struct {
	Ts       model.Ts
	BeginTs  model.Ts
	ReadSet  *model.ReadSet
	WriteSet *model.WriteSet
	Done     chan error // resolved once the committer either publishes or aborts this entry

	Persisted   chan struct{} // closed once the durability write for this entry completes
	PersistErr  error
}

// Pending is the committer's exclusive FIFO staging queue: transactions
// that have reserved a commit timestamp and have not yet been popped by the
// publisher (the head may already be applied to the MVCC index while its
// publish completes), the in-flight conflict window a concurrent commit
// must also check.
type Pending struct {
	mu         sync.Mutex
	queue      []*Staged
	notify     chan struct{}
	lastPopped model.Ts
}

// NewPending returns an empty Pending queue.
func NewPending() *Pending {
	return &Pending{notify: make(chan struct{}, 1)}
}

// PushBack stages a transaction at the tail of the queue and wakes any
// goroutine blocked in WaitNonEmpty.
func (p *Pending) PushBack(s *Staged) {
	p.mu.Lock()
	p.queue = append(p.queue, s)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// WaitNonEmpty blocks until the queue is known to have had an entry pushed
// since the last wake (it may already be empty again by the time the
// caller checks; Front/PopFront remain the source of truth).
func (p *Pending) WaitNonEmpty() {
	<-p.notify
}

// Front returns the head of the queue without removing it, so the
// publisher can wait for it to finish persisting before applying it.
func (p *Pending) Front() (*Staged, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	return p.queue[0], true
}

// PopFront removes and returns the head of the queue once it has been
// published, maintaining FIFO publish order.
func (p *Pending) PopFront() (*Staged, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	s := p.queue[0]
	p.queue = p.queue[1:]
	if s.Ts > p.lastPopped {
		p.lastPopped = s.Ts
	}
	return s, true
}

// IsStale reports whether ts has already been eclipsed by a commit that
// has since been popped off the front of the queue (published or failed).
// A conflict check iterating a Snapshot taken moments earlier can use this
// to short-circuit re-deriving affected keys for an entry that has since
// left the pending queue — its own publish path has already accounted for
// it wherever that entry's effects actually went.
func (p *Pending) IsStale(ts model.Ts) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ts <= p.lastPopped
}

// Snapshot returns every currently staged (not yet popped) transaction,
// whether or not its persistence has completed, for overlap checks against
// newly committing transactions.
func (p *Pending) Snapshot() []*Staged {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Staged, len(p.queue))
	copy(out, p.queue)
	return out
}

// Len reports the current queue depth, used for pending-high-water
// backpressure.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
