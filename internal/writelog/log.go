// Package writelog holds published write sets for conflict replay against
// in-flight transactions (the write log) and the committer's exclusive
// staging queue for writes awaiting commit (the pending set). The write
// log is a bounded, oldest-evicted slice of commit records used for
// SSI-lite conflict detection, checked against model.WriteSet/
// model.ReadSet so overlap checks run against read intervals, not just
// point keys.
package writelog

import (
	"sync"

	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/overlap"
)

// Entry is one published commit: its timestamp, the write set applied, and
// the index keys it affected, captured once at publish time before the
// write was applied to the index (see committer.publishLoop) so replaying
// it later never re-derives "old" and "new" keys against an index that
// already reflects this entry's own write.
type Entry struct {
	Ts       model.Ts
	Writes   *model.WriteSet
	Affected overlap.AffectedKeys
}

// Log is a bounded, append-only record of published commits. Entries older
// than Capacity are evicted.
type Log struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	evicted  model.Ts // Ts of the newest entry evicted so far, 0 if none
}

// New returns a Log retaining at most capacity entries.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Log{entries: make([]Entry, 0, capacity+1), capacity: capacity}
}

// Append records a newly published commit along with the index keys it
// affected. Callers must publish in increasing ts order (the committer is
// the sole writer) and must derive affected before applying writes to the
// index (see committer.publishLoop).
func (l *Log) Append(ts model.Ts, writes *model.WriteSet, affected overlap.AffectedKeys) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Ts: ts, Writes: writes, Affected: affected})
	if over := len(l.entries) - l.capacity; over > 0 {
		l.evicted = l.entries[over-1].Ts
		l.entries = l.entries[over:]
	}
}

// After returns every retained entry with Ts > since, oldest first. If an
// entry with Ts > since has already been evicted, the caller has fallen out
// of the write log's retention window and inWindow is false.
func (l *Log) After(since model.Ts) (entries []Entry, inWindow bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if since < l.evicted {
		return nil, false
	}
	for _, e := range l.entries {
		if e.Ts > since {
			entries = append(entries, e)
		}
	}
	return entries, true
}

// Oldest returns the timestamp of the oldest retained entry, or 0 if empty.
func (l *Log) Oldest() model.Ts {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[0].Ts
}
