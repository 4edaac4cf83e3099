package model

import "github.com/google/btree"

// Interval is a half-open range [Lo, Hi) over index-key space. A point
// lookup is the degenerate interval [Lo, Lo.Successor()).
type Interval struct {
	Lo IndexKey
	Hi IndexKey
}

// Contains reports whether key falls in [Lo, Hi).
func (iv Interval) Contains(key IndexKey) bool {
	return !key.Less(iv.Lo) && key.Less(iv.Hi)
}

// PointInterval returns the degenerate interval representing a lookup of
// exactly key.
func PointInterval(key IndexKey) Interval {
	return Interval{Lo: key, Hi: key.Successor()}
}

func intervalLess(a, b Interval) bool {
	if c := a.Lo.Compare(b.Lo); c != 0 {
		return c < 0
	}
	return a.Hi.Less(b.Hi)
}

// IntervalSet is an ordered collection of possibly-overlapping intervals
// for one index, backed by a google/btree ordered by lower bound.
// Containment is resolved by descending from the query point and checking
// candidate intervals; in the presence of many long, overlapping intervals
// this degrades toward a linear scan of candidates rather than true
// worst-case O(log n), but read sets and per-subscription interval counts
// are small in practice.
type IntervalSet struct {
	tree *btree.BTreeG[Interval]
}

// NewIntervalSet creates an empty IntervalSet.
func NewIntervalSet() *IntervalSet {
	return &IntervalSet{tree: btree.NewG(32, intervalLess)}
}

// Add records that interval iv was consulted.
func (s *IntervalSet) Add(iv Interval) {
	s.tree.ReplaceOrInsert(iv)
}

// Contains reports whether any recorded interval contains key, and if so
// returns one such interval. It does not modify the set.
func (s *IntervalSet) Contains(key IndexKey) (Interval, bool) {
	var found Interval
	var ok bool
	// Pivot on (key, +inf) so every recorded interval with Lo <= key sorts
	// at or before the pivot, regardless of how far its Hi extends.
	pivot := Interval{Lo: key, Hi: pivotCeiling}
	s.tree.DescendLessOrEqual(pivot, func(iv Interval) bool {
		if iv.Contains(key) {
			found, ok = iv, true
			return false
		}
		return true
	})
	return found, ok
}

// pivotCeiling sorts after any realistic Hi bound, so Contains' descent
// pivot never excludes a candidate interval whose Lo equals the query key.
var pivotCeiling = IndexKey(func() []byte {
	b := make([]byte, 64)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}())

// Len returns the number of intervals recorded.
func (s *IntervalSet) Len() int { return s.tree.Len() }

// ForEach visits every recorded interval in Lo order.
func (s *IntervalSet) ForEach(fn func(Interval) bool) {
	s.tree.Ascend(func(iv Interval) bool { return fn(iv) })
}

// Clone returns a deep-enough copy; the underlying btree is copy-on-write.
func (s *IntervalSet) Clone() *IntervalSet {
	return &IntervalSet{tree: s.tree.Clone()}
}
