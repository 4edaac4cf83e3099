// Package model defines the data model shared by every layer of the core:
// documents and revisions, index keys, read/write sets, and the interval
// arithmetic overlap detection is built on.
package model

import "time"

// Ts is a commit/begin timestamp: a monotonic 64-bit HLC value.
type Ts = uint64

// DocID globally and immutably identifies a document for its lifetime.
type DocID = uint64

// Revision is one version of a document: (id, value, ts) plus the table it
// belongs to. A tombstone revision represents deletion.
type Revision struct {
	ID        DocID
	Table     string
	Value     []byte // opaque structured record (e.g. JSON); nil for tombstones
	Ts        Ts
	Tombstone bool
}

// UpdateKind is the shape of a write-set entry.
type UpdateKind int

const (
	UpdateInsert UpdateKind = iota
	UpdateReplace
	UpdateDelete
)

// Update is one write-set entry: at most one per document id per
// transaction.
type Update struct {
	Kind  UpdateKind
	Table string
	Value []byte // nil for UpdateDelete
}

// CollectionMeta tracks bookkeeping for one table.
type CollectionMeta struct {
	Name      string
	CreatedAt time.Time
	DocCount  uint64
}
