// Package errs defines the error taxonomy surfaced across the transaction
// log, committer, and transaction-index view.
//
// Only OCCAbort is auto-retried, and only by the external function runner —
// never by the core itself. Every other kind surfaces to the caller.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no payload.
var (
	ErrSchema       = errors.New("schema rejected write")
	ErrTxTimeout    = errors.New("transaction deadline exceeded")
	ErrInternal     = errors.New("internal invariant violation")
	ErrTxFinalized  = errors.New("transaction already finalized")
	ErrTxNotOpen    = errors.New("transaction is not open")
	ErrDocExists    = errors.New("document already exists")
	ErrDocNotFound  = errors.New("document not found")
	ErrDupWrite     = errors.New("duplicate write to same document id in transaction")
	ErrUnknownIndex = errors.New("unknown index")
)

// OCCAbort is returned when commit validation finds a
// conflicting write in (begin_ts, commit_ts]. ConflictingTs is the
// commit timestamp of the write that conflicted; the caller should retry
// with a fresh begin timestamp >= ConflictingTs.
type OCCAbort struct {
	ConflictingTs uint64
}

func (e *OCCAbort) Error() string {
	return fmt.Sprintf("occ abort: conflicting commit at ts=%d", e.ConflictingTs)
}

// SnapshotTooOld is returned when a transaction's begin timestamp (or a
// range read's as-of timestamp) falls below the MVCC retention horizon.
type SnapshotTooOld struct {
	RequestedTs uint64
	HorizonTs   uint64
}

func (e *SnapshotTooOld) Error() string {
	return fmt.Sprintf("snapshot too old: requested ts=%d is below retention horizon ts=%d", e.RequestedTs, e.HorizonTs)
}

// InvalidWrite covers malformed writes rejected before commit: duplicate
// id insert, malformed index key, patch against a non-object, etc.
type InvalidWrite struct {
	Reason string
}

func (e *InvalidWrite) Error() string {
	return "invalid write: " + e.Reason
}

// PersistenceUnavailable wraps a durability-layer failure. The commit did
// not publish; the caller may retry the whole operation.
type PersistenceUnavailable struct {
	Cause error
}

func (e *PersistenceUnavailable) Error() string {
	if e.Cause == nil {
		return "persistence unavailable"
	}
	return "persistence unavailable: " + e.Cause.Error()
}

func (e *PersistenceUnavailable) Unwrap() error { return e.Cause }

// IsOCCAbort reports whether err is (or wraps) an *OCCAbort.
func IsOCCAbort(err error) (*OCCAbort, bool) {
	var a *OCCAbort
	if errors.As(err, &a) {
		return a, true
	}
	return nil, false
}

// IsSnapshotTooOld reports whether err is (or wraps) a *SnapshotTooOld.
func IsSnapshotTooOld(err error) (*SnapshotTooOld, bool) {
	var s *SnapshotTooOld
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}
