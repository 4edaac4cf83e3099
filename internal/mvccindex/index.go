// Package mvccindex implements the MVCC index: an ordered collection keyed
// by (index_key, ts DESC), queryable at any retained timestamp. Unlike an
// index holding only the single current version per id, this is a true
// multi-version structure, since point and range reads must be answerable
// at any retained begin timestamp, not just "current".
package mvccindex

import (
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

// Posting is one version of one index key: the document id it points to,
// the commit timestamp it became visible at, and whether it represents a
// deletion. Value carries the document payload in both primary- and
// secondary-index postings (nil for tombstones), so a range scan over either
// kind of index returns document values directly.
type Posting struct {
	Ts        model.Ts
	DocID     model.DocID
	Tombstone bool
	Value     []byte
}

type keyEntry struct {
	key      model.IndexKey
	mu       sync.Mutex
	versions []Posting // append-only, ascending by Ts (commits publish in order)
}

func (e *keyEntry) append(p Posting) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.versions = append(e.versions, p)
}

// visibleAt returns the version with the greatest Ts <= asOf, if any.
func (e *keyEntry) visibleAt(asOf model.Ts) (Posting, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// versions is ascending by Ts; find rightmost with Ts <= asOf.
	i := sort.Search(len(e.versions), func(i int) bool { return e.versions[i].Ts > asOf })
	if i == 0 {
		return Posting{}, false
	}
	return e.versions[i-1], true
}

// trimBefore drops every version strictly before horizon, except it always
// keeps the last version with Ts <= horizon (the floor a read at ts >=
// horizon still needs).
func (e *keyEntry) trimBefore(horizon model.Ts) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.versions) == 0 {
		return
	}
	i := sort.Search(len(e.versions), func(i int) bool { return e.versions[i].Ts > horizon })
	if i <= 1 {
		return
	}
	e.versions = append([]Posting{}, e.versions[i-1:]...)
}

func keyEntryLess(a, b *keyEntry) bool { return a.key.Less(b.key) }

// Index is the MVCC-versioned ordered map for a single index definition.
type Index struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*keyEntry]
}

// New creates an empty Index.
func New() *Index {
	return &Index{tree: btree.NewG(32, keyEntryLess)}
}

func (idx *Index) entry(key model.IndexKey, create bool) *keyEntry {
	idx.mu.RLock()
	probe := &keyEntry{key: key}
	existing, found := idx.tree.Get(probe)
	idx.mu.RUnlock()
	if found {
		return existing
	}
	if !create {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if existing, found := idx.tree.Get(probe); found {
		return existing
	}
	idx.tree.ReplaceOrInsert(probe)
	return probe
}

// Apply records a new version of key at ts. It is the committer's publish
// step: writes are applied only at publish time, in commit-timestamp
// order.
func (idx *Index) Apply(key model.IndexKey, ts model.Ts, docID model.DocID, tombstone bool, value []byte) {
	e := idx.entry(key, true)
	e.append(Posting{Ts: ts, DocID: docID, Tombstone: tombstone, Value: value})
}

// Get performs a point read at ts: the greatest ts' <= ts for key. A
// tombstone yields not-found.
func (idx *Index) Get(key model.IndexKey, ts model.Ts) (Posting, bool) {
	e := idx.entry(key, false)
	if e == nil {
		return Posting{}, false
	}
	p, ok := e.visibleAt(ts)
	if !ok || p.Tombstone {
		return Posting{}, false
	}
	return p, true
}

// Range streams keys in [lo, hi) order, selecting each key's visible
// version at ts, skipping tombstones, up to limit results (0 = unlimited).
// It returns the actual interval consumed — [lo, lastKeyRead] plus whether
// scanning reached hi — so the caller (transaction view) can record the
// traversed interval rather than the requested one.
func (idx *Index) Range(lo, hi model.IndexKey, ts model.Ts, limit int) (postings []Posting, lastKey model.IndexKey, reachedHi bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	loProbe := &keyEntry{key: lo}
	hiProbe := &keyEntry{key: hi}

	reachedHi = true
	idx.tree.AscendRange(loProbe, hiProbe, func(e *keyEntry) bool {
		lastKey = e.key
		if p, ok := e.visibleAt(ts); ok && !p.Tombstone {
			postings = append(postings, p)
		}
		if limit > 0 && len(postings) >= limit {
			reachedHi = false
			return false
		}
		return true
	})
	return postings, lastKey, reachedHi
}

// TrimBefore runs retention GC across every key, dropping versions older
// than horizon while always keeping each key's floor version.
func (idx *Index) TrimBefore(horizon model.Ts) {
	idx.mu.RLock()
	entries := make([]*keyEntry, 0, idx.tree.Len())
	idx.tree.Ascend(func(e *keyEntry) bool {
		entries = append(entries, e)
		return true
	})
	idx.mu.RUnlock()

	for _, e := range entries {
		e.trimBefore(horizon)
	}
}

// Size returns the number of distinct keys tracked.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}
