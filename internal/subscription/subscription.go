// Package subscription powers realtime invalidation: each registered query
// keeps the read set its last evaluation produced, and a commit that
// overlaps it is reported exactly once before the token is retired — the
// subscriber must re-run the query and re-subscribe for further updates.
// Tokens live in a map guarded by an RWMutex, with google/uuid minting
// externally stable handle ids; invalidation fan-out is driven by an
// overlap.Aggregate rather than a per-token scan, since live subscriptions
// vastly outnumber the keys any one commit touches.
package subscription

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kartikbazzad/reactorcore/internal/errs"
	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/overlap"
	"github.com/kartikbazzad/reactorcore/internal/writelog"
)

// ID externally identifies a subscription token.
type ID = uuid.UUID

// Invalidated is delivered exactly once per token, when a commit overlaps
// the read set the token was registered with.
type Invalidated struct {
	ID ID
	Ts model.Ts
}

type token struct {
	id   ID
	ch   chan Invalidated
	regs []overlap.Registration
}

// Manager tracks live subscription tokens and fans out commit notifications
// via an aggregated per-index interval structure.
type Manager struct {
	mu     sync.RWMutex
	tokens map[ID]*token
	agg    *overlap.Aggregate
	log    *writelog.Log
}

// New returns an empty Manager. log is consulted by Register to replay any
// commit that raced with registration.
func New(log *writelog.Log) *Manager {
	return &Manager{tokens: make(map[ID]*token), agg: overlap.NewAggregate(), log: log}
}

// Register installs a token over readSet (the read set a query evaluation
// produced as of validityTs) and returns its id and a channel that receives
// a single Invalidated event the first time a commit overlaps it.
//
// Because the query was evaluated at validityTs but the subscription only
// takes effect once installed, a commit landing in the gap between the two
// could otherwise be missed forever. Register closes that gap itself: it
// replays every commit after validityTs against the fresh read set before
// installing the token, and if one already overlaps, the token fires
// immediately with that commit's timestamp instead of being installed at
// all. If validityTs has already fallen out of the write log's retention
// window, Register reports errs.SnapshotTooOld rather than silently
// skipping the check.
func (m *Manager) Register(readSet *model.ReadSet, validityTs model.Ts) (ID, <-chan Invalidated, error) {
	id := uuid.New()
	ch := make(chan Invalidated, 1)

	entries, inWindow := m.log.After(validityTs)
	if !inWindow {
		return uuid.Nil, nil, &errs.SnapshotTooOld{RequestedTs: validityTs, HorizonTs: m.log.Oldest()}
	}
	for _, e := range entries {
		if overlap.CheckAny(readSet, e.Affected) {
			ch <- Invalidated{ID: id, Ts: e.Ts}
			close(ch)
			return id, ch, nil
		}
	}

	t := &token{id: id, ch: ch}
	t.regs = m.registerInAggregate(id, readSet)

	m.mu.Lock()
	m.tokens[id] = t
	m.mu.Unlock()

	return id, ch, nil
}

// registerInAggregate records every interval readSet recorded, per index,
// into the aggregate structure OnCommit consults.
func (m *Manager) registerInAggregate(id ID, readSet *model.ReadSet) []overlap.Registration {
	var regs []overlap.Registration
	for _, index := range readSet.Indexes() {
		set := readSet.Index(index)
		if set == nil {
			continue
		}
		set.ForEach(func(iv model.Interval) bool {
			regs = append(regs, m.agg.Add(index, iv, id))
			return true
		})
	}
	return regs
}

// Unsubscribe retires a token without waiting for it to fire.
func (m *Manager) Unsubscribe(id ID) {
	m.mu.Lock()
	t, ok := m.tokens[id]
	if ok {
		delete(m.tokens, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, reg := range t.regs {
		m.agg.Remove(reg)
	}
}

// Count reports the number of live tokens, for diagnostics and metrics.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

// OnCommit is the committer's publish hook: it inverts the loop, looking up
// every registrant whose interval covers one of the commit's affected keys
// (overlap.CheckInverted) rather than checking every live token's read set
// against the commit, and fires + retires each one that matches.
func (m *Manager) OnCommit(ts model.Ts, affected overlap.AffectedKeys) {
	hits := overlap.CheckInverted(m.agg, affected)
	if len(hits) == 0 {
		return
	}

	m.mu.Lock()
	fired := make([]*token, 0, len(hits))
	for raw := range hits {
		id, ok := raw.(ID)
		if !ok {
			continue
		}
		if t, ok := m.tokens[id]; ok {
			fired = append(fired, t)
			delete(m.tokens, id)
		}
	}
	m.mu.Unlock()

	for _, t := range fired {
		for _, reg := range t.regs {
			m.agg.Remove(reg)
		}
		t.ch <- Invalidated{ID: t.id, Ts: ts}
		close(t.ch)
	}
}
