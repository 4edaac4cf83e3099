package overlap

import (
	"sync"

	"github.com/google/btree"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

// member is one registrant's interval within one index, inside an
// Aggregate. seq disambiguates registrants that record byte-identical
// intervals on the same index, which ReplaceOrInsert would otherwise
// collapse into one.
type member struct {
	iv  model.Interval
	seq uint64
	id  any
}

func memberLess(a, b member) bool {
	if c := a.iv.Lo.Compare(b.iv.Lo); c != 0 {
		return c < 0
	}
	if c := a.iv.Hi.Compare(b.iv.Hi); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

// aggregateCeiling sorts after any realistic Hi bound, mirroring
// model.IntervalSet's own descent pivot trick.
var aggregateCeiling = model.IndexKey(func() []byte {
	b := make([]byte, 64)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}())

// Registration is the handle Add returns; pass it back to Remove to retire
// exactly the interval it was issued for.
type Registration struct {
	index string
	m     member
}

// Aggregate inverts model.IntervalSet's relationship between registrants
// and intervals: instead of one registrant's intervals across indexes, it
// holds every registrant's intervals for one index, keyed by lower bound.
// CheckInverted drives lookups into it from a commit's few affected keys,
// rather than checking every registrant's own read set against the commit
// — suited to invalidation fan-out, where registrants (subscriptions)
// vastly outnumber the keys one commit touches. Same degrade-to-linear-scan
// caveat as model.IntervalSet applies when many registered intervals share
// a Lo at or below a given key.
type Aggregate struct {
	mu      sync.RWMutex
	byIndex map[string]*btree.BTreeG[member]
	nextSeq uint64
}

// NewAggregate returns an empty Aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{byIndex: make(map[string]*btree.BTreeG[member])}
}

// Add records id's registration of iv on index, returning a handle for
// later removal.
func (a *Aggregate) Add(index string, iv model.Interval, id any) Registration {
	a.mu.Lock()
	defer a.mu.Unlock()
	tree, ok := a.byIndex[index]
	if !ok {
		tree = btree.NewG(32, memberLess)
		a.byIndex[index] = tree
	}
	a.nextSeq++
	m := member{iv: iv, seq: a.nextSeq, id: id}
	tree.ReplaceOrInsert(m)
	return Registration{index: index, m: m}
}

// Remove retires a single registration previously returned by Add.
func (a *Aggregate) Remove(reg Registration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if tree, ok := a.byIndex[reg.index]; ok {
		tree.Delete(reg.m)
	}
}

// Matches returns every registrant id whose interval on index contains key.
func (a *Aggregate) Matches(index string, key model.IndexKey) []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	tree, ok := a.byIndex[index]
	if !ok {
		return nil
	}
	var hits []any
	pivot := member{iv: model.Interval{Lo: key, Hi: aggregateCeiling}, seq: ^uint64(0)}
	tree.DescendLessOrEqual(pivot, func(m member) bool {
		if m.iv.Contains(key) {
			hits = append(hits, m.id)
		}
		return true
	})
	return hits
}

// CheckInverted is overlap detection with the loop inverted: for each key a
// commit touched in some index, it looks up every registrant whose
// interval covers it via agg, rather than checking every registrant's read
// set against the commit (Check/CheckAny do that). Returns the set of
// distinct registrant ids to notify.
func CheckInverted(agg *Aggregate, affected AffectedKeys) map[any]bool {
	hits := make(map[any]bool)
	for index, keys := range affected {
		for _, k := range keys {
			for _, id := range agg.Matches(index, k) {
				hits[id] = true
			}
		}
	}
	return hits
}
