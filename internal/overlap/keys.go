package overlap

import (
	"github.com/kartikbazzad/reactorcore/internal/catalog"
	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/mvccindex"
)

// DeriveAffectedKeys computes every index key a write set touches: the
// primary key always, and for each secondary index both the new key a
// document moves to and any prior key it vacates, so a range read that no
// longer matches a moved document still correctly conflicts. Shared by
// commit validation, subscription fan-out, and cache invalidation so all
// three run the same overlap algorithm.
func DeriveAffectedKeys(cat *catalog.Catalog, idx *mvccindex.Store, asOf model.Ts, table string, writes *model.WriteSet) AffectedKeys {
	affected := AffectedKeys{}
	tbl, ok := cat.Table(table)
	if !ok {
		return affected
	}

	addKey := func(indexName string, key model.IndexKey) {
		name := table + ":" + indexName
		affected[name] = append(affected[name], key)
	}

	writes.ForEach(func(id model.DocID, u model.Update) {
		primaryKey := model.IndexKey(model.EncodeUint64(id))
		addKey(catalog.PrimaryIndex, primaryKey)

		oldPosting, hadOld := idx.Index(table, catalog.PrimaryIndex).Get(primaryKey, asOf)

		for name, def := range tbl.Indexes {
			if def.Primary {
				continue
			}
			if u.Kind != model.UpdateDelete {
				if fields, err := catalog.ExtractFields(u.Value); err == nil {
					addKey(name, def.DeriveKey(id, fields))
				}
			}
			if hadOld {
				if fields, err := catalog.ExtractFields(oldPosting.Value); err == nil {
					addKey(name, def.DeriveKey(id, fields))
				}
			}
		}
	})
	return affected
}
