package txn

import (
	"sort"

	"github.com/kartikbazzad/reactorcore/internal/catalog"
	"github.com/kartikbazzad/reactorcore/internal/model"
)

// RangeResult is one row returned from Range: the document id and its
// value as of the transaction's snapshot.
type RangeResult struct {
	DocID model.DocID
	Value []byte
}

// Range scans index `indexName` on table over [lo, hi), as of the
// transaction's snapshot. A snapshot row whose document this transaction
// has replaced or deleted shows the local value or is dropped. Local
// inserts are merged in only for a primary-index scan; a secondary-index
// scan does not return documents inserted by this transaction, and a
// replaced document is matched by its snapshot key, not its new one. The
// consulted interval — [lo, hi), or [lo, just after the last key read) when
// the scan stopped early at the limit — is recorded in the read set so a
// concurrent insert anywhere in the scanned range correctly conflicts.
func (t *Tx) Range(table, indexName string, lo, hi model.IndexKey, limit int) ([]RangeResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if err := t.checkSnapshot(); err != nil {
		return nil, err
	}

	// A primary-index scan may need room for local inserts merged in below;
	// since they can sort ahead of on-disk postings we've already fetched,
	// over-fetch by the number of candidate local inserts so truncating to
	// limit after the merge still yields the true smallest-limit keys
	// rather than whatever the disk scan alone happened to stop at.
	var localExtra int
	if indexName == catalog.PrimaryIndex {
		localExtra = t.countLocalInsertsInRange(lo, hi)
	}
	underlyingLimit := 0
	if limit > 0 {
		underlyingLimit = limit + localExtra
	}

	postings, lastKey, reachedHi := t.idx.Index(table, indexName).Range(lo, hi, t.beginTs, underlyingLimit)

	consultedHi := hi
	if !reachedHi && lastKey != nil {
		consultedHi = lastKey.Successor()
	}
	t.readSet.Record(qualifiedIndexName(table, indexName), model.Interval{Lo: lo, Hi: consultedHi})

	rows := make([]keyedRangeResult, 0, len(postings)+localExtra)
	seen := make(map[model.DocID]bool, len(postings))
	for _, p := range postings {
		key := model.IndexKey(model.EncodeUint64(p.DocID))
		if u, ok := t.localGet(p.DocID); ok {
			seen[p.DocID] = true
			if u.Kind == model.UpdateDelete {
				continue
			}
			rows = append(rows, keyedRangeResult{key: key, row: RangeResult{DocID: p.DocID, Value: u.Value}})
			continue
		}
		rows = append(rows, keyedRangeResult{key: key, row: RangeResult{DocID: p.DocID, Value: p.Value}})
	}

	if indexName == catalog.PrimaryIndex {
		t.mergeLocalInsertsIntoPrimaryScan(lo, hi, seen, &rows)
		sort.Slice(rows, func(i, j int) bool { return rows[i].key.Less(rows[j].key) })
	}

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	results := make([]RangeResult, len(rows))
	for i, r := range rows {
		results[i] = r.row
	}
	return results, nil
}

// keyedRangeResult pairs a RangeResult with its sort key, so Range can
// merge on-disk postings and local inserts into ascending key order before
// truncating to a caller-supplied limit.
type keyedRangeResult struct {
	key model.IndexKey
	row RangeResult
}

// countLocalInsertsInRange counts this transaction's own uncommitted
// inserts whose primary key falls inside [lo, hi), so Range can over-fetch
// the underlying scan by enough to keep the merge correct under a limit.
func (t *Tx) countLocalInsertsInRange(lo, hi model.IndexKey) int {
	n := 0
	t.writeSet.ForEach(func(id model.DocID, u model.Update) {
		if u.Kind == model.UpdateDelete {
			return
		}
		key := model.IndexKey(model.EncodeUint64(id))
		if !key.Less(lo) && key.Less(hi) {
			n++
		}
	})
	return n
}

// mergeLocalInsertsIntoPrimaryScan adds this transaction's own uncommitted
// inserts whose primary key falls inside [lo, hi) and that the snapshot
// scan did not already surface. Callers sort the combined rows afterward —
// local inserts are appended out of key order here.
func (t *Tx) mergeLocalInsertsIntoPrimaryScan(lo, hi model.IndexKey, seen map[model.DocID]bool, rows *[]keyedRangeResult) {
	t.writeSet.ForEach(func(id model.DocID, u model.Update) {
		if seen[id] || u.Kind == model.UpdateDelete {
			return
		}
		key := model.IndexKey(model.EncodeUint64(id))
		if !key.Less(lo) && key.Less(hi) {
			*rows = append(*rows, keyedRangeResult{key: key, row: RangeResult{DocID: id, Value: u.Value}})
		}
	})
}

func qualifiedIndexName(table, index string) string { return table + ":" + index }
