package committer

import (
	"github.com/kartikbazzad/reactorcore/internal/catalog"
	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/mvccindex"
	"github.com/kartikbazzad/reactorcore/internal/overlap"
)

// ReplayApplier applies durable commit records straight to the MVCC index
// on startup, bypassing validation and persistence (the record is already
// durable) — the recovery counterpart to the live pipeline's applyToIndex
// step, replaying the commit log in order.
type ReplayApplier struct {
	cat *catalog.Catalog
	idx *mvccindex.Store
}

// NewReplayApplier returns an applier bound to cat/idx.
func NewReplayApplier(cat *catalog.Catalog, idx *mvccindex.Store) *ReplayApplier {
	return &ReplayApplier{cat: cat, idx: idx}
}

// Affected ensures the write set's table exists and derives its affected
// index keys before Apply mutates the index, so a replayed write-log entry
// carries the same old/new key pairs a live commit would have recorded at
// publish time (see committer.publishLoop) instead of keys re-derived
// against an index that already reflects the write.
func (r *ReplayApplier) Affected(ts model.Ts, writes *model.WriteSet) overlap.AffectedKeys {
	table := tableForWriteSet(writes)
	if table == "" {
		return overlap.AffectedKeys{}
	}
	if _, ok := r.cat.Table(table); !ok {
		if err := r.cat.CreateTable(table); err != nil {
			return overlap.AffectedKeys{}
		}
	}
	return overlap.DeriveAffectedKeys(r.cat, r.idx, ts, table, writes)
}

// Apply replays one commit record in order.
func (r *ReplayApplier) Apply(ts model.Ts, writes *model.WriteSet) {
	writes.ForEach(func(id model.DocID, u model.Update) {
		tbl, ok := r.cat.Table(u.Table)
		if !ok {
			if err := r.cat.CreateTable(u.Table); err != nil {
				return
			}
			tbl, _ = r.cat.Table(u.Table)
		}

		primaryKey := model.IndexKey(model.EncodeUint64(id))
		tombstone := u.Kind == model.UpdateDelete
		r.idx.Index(u.Table, catalog.PrimaryIndex).Apply(primaryKey, ts, id, tombstone, u.Value)

		switch u.Kind {
		case model.UpdateInsert:
			r.cat.IncrementDocCount(u.Table)
		case model.UpdateDelete:
			r.cat.DecrementDocCount(u.Table)
			return
		}

		fields, err := catalog.ExtractFields(u.Value)
		if err != nil {
			return
		}
		for name, def := range tbl.Indexes {
			if def.Primary {
				continue
			}
			key := def.DeriveKey(id, fields)
			r.idx.Index(u.Table, name).Apply(key, ts, id, false, u.Value)
		}
	})
}
