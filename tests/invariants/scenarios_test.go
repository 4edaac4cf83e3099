// Package invariants exercises the engine's end-to-end behavior under the
// concrete commit/conflict/invalidation/retention scenarios the write path
// is designed to satisfy.
package invariants

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/reactorcore/internal/catalog"
	"github.com/kartikbazzad/reactorcore/internal/config"
	"github.com/kartikbazzad/reactorcore/internal/engine"
	"github.com/kartikbazzad/reactorcore/internal/errs"
	"github.com/kartikbazzad/reactorcore/internal/model"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.MVCC.SweepInterval = time.Hour
	cfg.Committer.PipelineWorkers = 2
	e, err := engine.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	require.NoError(t, e.Catalog().CreateTable("items"))
	_, err = e.Catalog().CreateIndex("items", "by_qty", "qty")
	require.NoError(t, err)
	return e
}

func itemJSON(qty int) []byte {
	b, _ := json.Marshal(map[string]interface{}{"qty": qty})
	return b
}

// Clean commit: an insert in an otherwise empty table commits, and the
// committed value is visible to a transaction opened after it.
func TestCleanCommit(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tx := e.BeginTransaction()
	id, err := tx.InsertAuto("items", itemJSON(1))
	require.NoError(t, err)
	beginTs := tx.BeginTs()
	require.NoError(t, e.Commit(ctx, "items", tx))

	read := e.BeginTransaction()
	require.Greater(t, read.BeginTs(), beginTs, "commit should advance the published snapshot past begin_ts")

	val, ok, err := read.Get("items", id)
	require.NoError(t, err)
	require.True(t, ok, "expected committed document visible")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(val, &decoded))
	require.Equal(t, float64(1), decoded["qty"])
}

// OCC conflict on an overlapping range read: T1 opens and range-scans an
// index interval that is empty at its snapshot. T2 inserts a document whose
// index key falls inside that interval and commits first. T1's commit must
// then abort, reporting T2's commit timestamp as the conflicting one.
func TestOCCConflictOnOverlappingRangeRead(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	lo := model.FieldBound(float64(0))
	hi := model.FieldBound(float64(10))

	t1 := e.BeginTransaction()
	_, err := t1.Range("items", "by_qty", lo, hi, 0)
	require.NoError(t, err)

	t2 := e.BeginTransaction()
	_, err = t2.InsertAuto("items", itemJSON(3))
	require.NoError(t, err)
	require.NoError(t, e.Commit(ctx, "items", t2))

	err = e.Commit(ctx, "items", t1)
	abort, ok := errs.IsOCCAbort(err)
	require.True(t, ok, "expected t1 to abort with OCCAbort, got %v", err)
	require.NotZero(t, abort.ConflictingTs)
}

// OCC conflict when a document moves out of a previously-read range, and
// the conflict is detected against an already-published write-log entry
// (not a pending one): T1 range-scans an interval containing a document,
// then T2 updates that document so its index key falls outside the range
// and commits before T1 does. T1's read set still covers the document's
// old position, so T1 must abort even though the document's current index
// position (after T2's commit) is disjoint from the range T1 read.
func TestOCCConflictOnDocumentMovingOutOfReadRange(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	lo := model.FieldBound(float64(0))
	hi := model.FieldBound(float64(10))

	setup := e.BeginTransaction()
	id, err := setup.InsertAuto("items", itemJSON(5))
	require.NoError(t, err)
	require.NoError(t, e.Commit(ctx, "items", setup))

	t1 := e.BeginTransaction()
	_, err = t1.Range("items", "by_qty", lo, hi, 0)
	require.NoError(t, err)

	t2 := e.BeginTransaction()
	require.NoError(t, t2.Replace("items", id, itemJSON(50)))
	require.NoError(t, e.Commit(ctx, "items", t2))

	err = e.Commit(ctx, "items", t1)
	abort, ok := errs.IsOCCAbort(err)
	require.True(t, ok, "expected t1 to abort on a document that moved out of its read range, got %v", err)
	require.NotZero(t, abort.ConflictingTs)
}

// OCC non-conflict on a disjoint range: T1 range-scans an interval that
// never contains the document T2 inserts and commits, so T1's commit must
// succeed even though both transactions touch the same secondary index.
func TestOCCNonConflictOnDisjointRange(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	lo := model.FieldBound(float64(0))
	hi := model.FieldBound(float64(10))

	t1 := e.BeginTransaction()
	_, err := t1.Range("items", "by_qty", lo, hi, 0)
	require.NoError(t, err)

	t2 := e.BeginTransaction()
	_, err = t2.InsertAuto("items", itemJSON(50))
	require.NoError(t, err)
	require.NoError(t, e.Commit(ctx, "items", t2))

	_, err = t1.InsertAuto("items", itemJSON(5))
	require.NoError(t, err)
	require.NoError(t, e.Commit(ctx, "items", t1), "expected t1 commit to succeed on a disjoint range")
}

// Pending-write conflict: T1 and T2 both open against the same snapshot and
// both read-then-write the same document. T1 reserves a commit timestamp
// and is staged (persisting concurrently) before T2 finishes validating.
// T2 must see T1 in the pending queue and abort, reporting T1's reserved
// timestamp as the conflicting one, even though T1 had not yet published.
func TestPendingWriteConflict(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	setup := e.BeginTransaction()
	id, err := setup.InsertAuto("items", itemJSON(0))
	require.NoError(t, err)
	require.NoError(t, e.Commit(ctx, "items", setup))

	t1 := e.BeginTransaction()
	_, _, err = t1.Get("items", id)
	require.NoError(t, err)
	require.NoError(t, t1.Replace("items", id, itemJSON(1)))

	t2 := e.BeginTransaction()
	_, _, err = t2.Get("items", id)
	require.NoError(t, err)
	require.NoError(t, t2.Replace("items", id, itemJSON(2)))

	errCh := make(chan error, 2)
	go func() { errCh <- e.Commit(ctx, "items", t1) }()
	go func() { errCh <- e.Commit(ctx, "items", t2) }()

	err1 := <-errCh
	err2 := <-errCh
	aborts := 0
	for _, err := range []error{err1, err2} {
		if err == nil {
			continue
		}
		_, ok := errs.IsOCCAbort(err)
		require.True(t, ok, "expected OCCAbort, got %v", err)
		aborts++
	}
	require.Equal(t, 1, aborts, "expected exactly one of the two overlapping commits to abort")
}

// Subscription invalidation: a subscription registered against a document's
// read set fires exactly once when that document is later committed over,
// and a commit to a different, non-overlapping document does not fire it.
func TestSubscriptionInvalidatesOnlyOnOverlap(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tx := e.BeginTransaction()
	idA, err := tx.InsertAuto("items", itemJSON(1))
	require.NoError(t, err)
	idB, err := tx.InsertAuto("items", itemJSON(2))
	require.NoError(t, err)
	require.NoError(t, e.Commit(ctx, "items", tx))

	readA := e.BeginTransaction()
	_, _, err = readA.Get("items", idA)
	require.NoError(t, err)
	final, err := readA.Finalize()
	require.NoError(t, err)
	_, ch, err := e.Subscribe(final.ReadSet, final.BeginTs)
	require.NoError(t, err)

	writeB := e.BeginTransaction()
	require.NoError(t, writeB.Replace("items", idB, itemJSON(3)))
	require.NoError(t, e.Commit(ctx, "items", writeB))

	select {
	case <-ch:
		t.Fatal("subscription on A fired for a commit to disjoint document B")
	case <-time.After(50 * time.Millisecond):
	}

	writeA := e.BeginTransaction()
	require.NoError(t, writeA.Replace("items", idA, itemJSON(9)))
	require.NoError(t, e.Commit(ctx, "items", writeA))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected subscription on A to fire on an overlapping commit")
	}
}

// Retention boundary: once the MVCC index has swept a given horizon, a
// transaction holding a snapshot older than that horizon can no longer
// trust its view and must fail with SnapshotTooOld on a range scan.
func TestRetentionBoundaryFailsSnapshotTooOld(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	setup := e.BeginTransaction()
	_, err := setup.InsertAuto("items", itemJSON(1))
	require.NoError(t, err)
	require.NoError(t, e.Commit(ctx, "items", setup))

	stale := e.BeginTransaction()
	defer stale.Abort()

	// Advance the snapshot well past stale's begin_ts and sweep retention
	// to that point, simulating a transaction held open across a retention
	// horizon advance.
	for i := 0; i < 3; i++ {
		filler := e.BeginTransaction()
		_, err := filler.InsertAuto("items", itemJSON(i))
		require.NoError(t, err)
		require.NoError(t, e.Commit(ctx, "items", filler))
	}
	e.SweepRetentionForTest(stale.BeginTs() + 1)

	_, err = stale.Range("items", catalog.PrimaryIndex, model.MinKey, model.MaxKeySentinel, 0)
	tooOld, ok := errs.IsSnapshotTooOld(err)
	require.True(t, ok, "expected SnapshotTooOld, got %v", err)
	require.Equal(t, stale.BeginTs(), tooOld.RequestedTs)
}
