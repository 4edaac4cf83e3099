package model

import "bytes"

// IndexKey is a lexicographically ordered byte-tuple derived deterministically
// from a document and an index definition.
type IndexKey []byte

// Compare returns -1, 0, or 1 the way bytes.Compare does.
func (k IndexKey) Compare(other IndexKey) int {
	return bytes.Compare(k, other)
}

// Less reports whether k sorts before other.
func (k IndexKey) Less(other IndexKey) bool {
	return bytes.Compare(k, other) < 0
}

// Successor returns the immediate successor of k in key space: k with a
// single zero byte appended. Used to build a degenerate [k, Successor(k))
// interval representing a point lookup.
func (k IndexKey) Successor() IndexKey {
	succ := make(IndexKey, len(k)+1)
	copy(succ, k)
	return succ
}

// MinKey and MaxKeySentinel bound the key space for full-range scans.
var MinKey = IndexKey{}

// MaxKeySentinel is never a real key (keys derived from documents never
// start with 0xFF repeated this long in practice for our fixed-width
// encodings) and is used as the Hi bound of an unbounded upper range.
var MaxKeySentinel = IndexKey(bytes.Repeat([]byte{0xFF}, 32))

// IndexField describes one field contributing to a composite index key.
type IndexField struct {
	Name string
}

// IndexDefinition describes how to derive a document's index key for one
// index. The primary index uses the document id only.
type IndexDefinition struct {
	Name    string
	Table   string
	Fields  []IndexField
	Primary bool
}

// DeriveKey computes the single index key a document contributes to this
// index, by concatenating length-prefixed field encodings in field order.
// Exactly one key is produced per document per index; array-valued fields
// are not fanned out into multiple keys.
func (d *IndexDefinition) DeriveKey(docID DocID, fields map[string]interface{}) IndexKey {
	if d.Primary {
		return EncodeUint64(docID)
	}

	var buf bytes.Buffer
	for _, f := range d.Fields {
		enc := EncodeValue(fields[f.Name])
		var lenPrefix [4]byte
		putUint32(lenPrefix[:], uint32(len(enc)))
		buf.Write(lenPrefix[:])
		buf.Write(enc)
	}
	// Append the doc id so distinct documents with equal field values still
	// sort into distinct, stable keys.
	buf.Write(EncodeUint64(docID))
	return IndexKey(buf.Bytes())
}

// FieldBound encodes a single field value the same way DeriveKey encodes
// it, without a document id suffix, so callers can build Lo/Hi range
// boundaries for Range scans on a secondary index. Because every real key
// is this prefix followed by further bytes, a bound built from an exact
// field value lands exactly on the half-open boundary: a write equal to
// the bound is excluded as a Hi and included as a Lo.
func FieldBound(value interface{}) IndexKey {
	enc := EncodeValue(value)
	var lenPrefix [4]byte
	putUint32(lenPrefix[:], uint32(len(enc)))
	buf := make([]byte, 0, 4+len(enc))
	buf = append(buf, lenPrefix[:]...)
	buf = append(buf, enc...)
	return IndexKey(buf)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
