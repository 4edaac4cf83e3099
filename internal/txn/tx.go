// Package txn implements the transaction and its read view: a
// single-threaded accumulator of a read set and a write set over an
// immutable MVCC snapshot, finalized into an immutable record the committer
// validates and applies. Read sets are tracked as interval sets rather than
// flat document-id sets, so range reads participate correctly in conflict
// detection.
package txn

import (
	"sync"
	"time"

	"github.com/kartikbazzad/reactorcore/internal/catalog"
	"github.com/kartikbazzad/reactorcore/internal/errs"
	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/mvccindex"
)

// State is the transaction's lifecycle stage.
type State int

const (
	StateOpen State = iota
	StateFinalized
	StateAborted
)

// IDAllocator issues fresh document ids for Insert.
type IDAllocator interface {
	Next() model.DocID
}

// Tx accumulates reads and writes against a fixed MVCC snapshot (BeginTs).
// Not safe for concurrent use by multiple goroutines; a transaction is
// owned by exactly one caller at a time.
type Tx struct {
	mu sync.Mutex

	beginTs  model.Ts
	deadline time.Time
	cat      *catalog.Catalog
	idx      *mvccindex.Store
	ids      IDAllocator

	readSet  *model.ReadSet
	writeSet *model.WriteSet
	state    State
}

// New begins a transaction as of beginTs, reading through cat/idx and
// allocating new document ids via ids. deadline is the wall-clock instant
// past which operations fail with errs.ErrTxTimeout.
func New(beginTs model.Ts, cat *catalog.Catalog, idx *mvccindex.Store, ids IDAllocator, deadline time.Time) *Tx {
	return &Tx{
		beginTs:  beginTs,
		deadline: deadline,
		cat:      cat,
		idx:      idx,
		ids:      ids,
		readSet:  model.NewReadSet(),
		writeSet: model.NewWriteSet(),
		state:    StateOpen,
	}
}

// BeginTs returns the transaction's fixed read snapshot.
func (t *Tx) BeginTs() model.Ts { return t.beginTs }

func (t *Tx) checkOpen() error {
	if t.state != StateOpen {
		return errs.ErrTxFinalized
	}
	if !t.deadline.IsZero() && time.Now().After(t.deadline) {
		t.state = StateAborted
		return errs.ErrTxTimeout
	}
	return nil
}

// checkSnapshot rejects reads once the MVCC index has swept past this
// transaction's begin timestamp: the versions it would need to see are no
// longer guaranteed to be retained.
func (t *Tx) checkSnapshot() error {
	if horizon := t.idx.RetentionHorizon(); t.beginTs < horizon {
		return &errs.SnapshotTooOld{RequestedTs: t.beginTs, HorizonTs: horizon}
	}
	return nil
}

func primaryIndexName(table string) string { return table + ":" + catalog.PrimaryIndex }

// localGet returns this transaction's own uncommitted write for id, if any.
func (t *Tx) localGet(id model.DocID) (model.Update, bool) {
	return t.writeSet.Get(id)
}

// Get reads a document by id, honoring read-your-own-writes (the local
// write-set overlay takes precedence over the MVCC snapshot) and recording
// a point read in the primary index's read set when the answer came from
// the snapshot.
func (t *Tx) Get(table string, id model.DocID) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return nil, false, err
	}

	if u, ok := t.localGet(id); ok {
		if u.Kind == model.UpdateDelete {
			return nil, false, nil
		}
		return u.Value, true, nil
	}
	if err := t.checkSnapshot(); err != nil {
		return nil, false, err
	}

	key := model.EncodeUint64(id)
	t.readSet.Record(primaryIndexName(table), model.PointInterval(key))

	posting, ok := t.idx.Index(table, catalog.PrimaryIndex).Get(key, t.beginTs)
	if !ok {
		return nil, false, nil
	}
	return posting.Value, true, nil
}

// Insert stages a new document, failing with errs.ErrDocExists if id is
// already visible (from either this transaction's own writes or the
// snapshot).
func (t *Tx) Insert(table string, id model.DocID, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := t.validateLocked(table, value); err != nil {
		return err
	}
	if _, exists, err := t.getLocked(table, id); err != nil {
		return err
	} else if exists {
		return errs.ErrDocExists
	}
	t.writeSet.Put(id, model.Update{Kind: model.UpdateInsert, Table: table, Value: value})
	return nil
}

// InsertAuto allocates a fresh id via the configured IDAllocator and
// inserts value under it, returning the new id.
func (t *Tx) InsertAuto(table string, value []byte) (model.DocID, error) {
	id := t.ids.Next()
	if err := t.Insert(table, id, value); err != nil {
		return 0, err
	}
	return id, nil
}

// Replace stages an update to an existing document, failing with
// errs.ErrDocNotFound if it is not visible.
func (t *Tx) Replace(table string, id model.DocID, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := t.validateLocked(table, value); err != nil {
		return err
	}
	if _, exists, err := t.getLocked(table, id); err != nil {
		return err
	} else if !exists {
		return errs.ErrDocNotFound
	}
	t.writeSet.Put(id, model.Update{Kind: model.UpdateReplace, Table: table, Value: value})
	return nil
}

// Delete stages a tombstone for id, failing with errs.ErrDocNotFound if it
// is not visible.
func (t *Tx) Delete(table string, id model.DocID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	if _, exists, err := t.getLocked(table, id); err != nil {
		return err
	} else if !exists {
		return errs.ErrDocNotFound
	}
	t.writeSet.Put(id, model.Update{Kind: model.UpdateDelete, Table: table})
	return nil
}

// getLocked is Get's body without the deadline/state re-check, for use by
// Insert/Replace/Delete's existence probes (already past checkOpen).
func (t *Tx) getLocked(table string, id model.DocID) ([]byte, bool, error) {
	if u, ok := t.localGet(id); ok {
		if u.Kind == model.UpdateDelete {
			return nil, false, nil
		}
		return u.Value, true, nil
	}
	key := model.EncodeUint64(id)
	t.readSet.Record(primaryIndexName(table), model.PointInterval(key))
	posting, ok := t.idx.Index(table, catalog.PrimaryIndex).Get(key, t.beginTs)
	if !ok {
		return nil, false, nil
	}
	return posting.Value, true, nil
}

func (t *Tx) validateLocked(table string, value []byte) error {
	tbl, ok := t.cat.Table(table)
	if !ok {
		return errs.ErrSchema
	}
	return tbl.Schema.Validate(value)
}

// Finalize closes the transaction to further reads/writes and returns its
// accumulated read and write sets for the committer.
func (t *Tx) Finalize() (*Final, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.state = StateFinalized
	return &Final{BeginTs: t.beginTs, ReadSet: t.readSet, WriteSet: t.writeSet}, nil
}

// Abort marks the transaction aborted without finalizing it, discarding its
// writes.
func (t *Tx) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateOpen {
		t.state = StateAborted
	}
}
