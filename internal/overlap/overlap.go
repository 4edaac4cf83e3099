// Package overlap implements the one overlap-detection algorithm shared by
// commit validation, subscription invalidation, and query-cache
// invalidation: does a read set's recorded intervals intersect a set of
// keys touched by a write? Built on interval containment rather than flat
// string-key set intersection, so range reads conflict correctly with
// point writes that fall inside them.
package overlap

import "github.com/kartikbazzad/reactorcore/internal/model"

// AffectedKeys maps an index name to the keys a write set touched in that
// index (its own key plus, for updates, any prior key it vacated).
type AffectedKeys map[string][]model.IndexKey

// Check reports whether readSet overlaps affected: some key touched in
// index `idx` falls inside an interval readSet recorded for `idx`. It
// returns every offending key, for diagnostics and for driving targeted
// re-evaluation (subscription/cache callers use only the boolean).
func Check(readSet *model.ReadSet, affected AffectedKeys) (bool, []model.IndexKey) {
	if readSet == nil || readSet.Empty() {
		return false, nil
	}
	var hits []model.IndexKey
	for idx, keys := range affected {
		set := readSet.Index(idx)
		if set == nil {
			continue
		}
		for _, k := range keys {
			if _, ok := set.Contains(k); ok {
				hits = append(hits, k)
			}
		}
	}
	return len(hits) > 0, hits
}

// CheckAny is Check without collecting offending keys, for callers that
// only need the boolean (commit validation, subscription registration
// replay, cache invalidation).
func CheckAny(readSet *model.ReadSet, affected AffectedKeys) bool {
	if readSet == nil || readSet.Empty() {
		return false
	}
	for idx, keys := range affected {
		set := readSet.Index(idx)
		if set == nil {
			continue
		}
		for _, k := range keys {
			if _, ok := set.Contains(k); ok {
				return true
			}
		}
	}
	return false
}
