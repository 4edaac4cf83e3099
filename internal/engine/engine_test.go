package engine

import (
	"context"
	"testing"
	"time"

	"github.com/kartikbazzad/reactorcore/internal/config"
	"github.com/kartikbazzad/reactorcore/internal/errs"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.MVCC.SweepInterval = time.Hour
	cfg.Committer.PipelineWorkers = 2
	e, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	if err := e.Catalog().CreateTable("docs"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return e
}

func TestInsertThenReadInNewTransaction(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tx := e.BeginTransaction()
	id, err := tx.InsertAuto("docs", []byte(`{"name":"a"}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := e.Commit(ctx, "docs", tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx2 := e.BeginTransaction()
	val, ok, err := tx2.Get("docs", id)
	if err != nil || !ok {
		t.Fatalf("expected doc visible, ok=%v err=%v", ok, err)
	}
	if string(val) != `{"name":"a"}` {
		t.Fatalf("unexpected value %s", val)
	}
}

func TestConcurrentConflictingCommitsOneAborts(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	setup := e.BeginTransaction()
	id, err := setup.InsertAuto("docs", []byte(`{"n":0}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := e.Commit(ctx, "docs", setup); err != nil {
		t.Fatalf("commit setup: %v", err)
	}

	txA := e.BeginTransaction()
	if _, _, err := txA.Get("docs", id); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := txA.Replace("docs", id, []byte(`{"n":1}`)); err != nil {
		t.Fatalf("replace: %v", err)
	}

	txB := e.BeginTransaction()
	if _, _, err := txB.Get("docs", id); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := txB.Replace("docs", id, []byte(`{"n":2}`)); err != nil {
		t.Fatalf("replace: %v", err)
	}

	errA := e.Commit(ctx, "docs", txA)
	errB := e.Commit(ctx, "docs", txB)

	if errA == nil && errB == nil {
		t.Fatalf("expected exactly one of the overlapping commits to abort")
	}
	if errA != nil && errB != nil {
		t.Fatalf("expected exactly one of the overlapping commits to abort, both did: %v / %v", errA, errB)
	}
	if errA != nil {
		if _, ok := errs.IsOCCAbort(errA); !ok {
			t.Fatalf("expected OCCAbort, got %v", errA)
		}
	}
	if errB != nil {
		if _, ok := errs.IsOCCAbort(errB); !ok {
			t.Fatalf("expected OCCAbort, got %v", errB)
		}
	}
}

func TestSubscriptionFiresOnOverlappingCommit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tx := e.BeginTransaction()
	id, err := tx.InsertAuto("docs", []byte(`{"v":1}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := e.Commit(ctx, "docs", tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	readTx := e.BeginTransaction()
	if _, _, err := readTx.Get("docs", id); err != nil {
		t.Fatalf("get: %v", err)
	}
	final, err := readTx.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	_, ch, err := e.Subscribe(final.ReadSet, final.BeginTs)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	writeTx := e.BeginTransaction()
	if err := writeTx.Replace("docs", id, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := e.Commit(ctx, "docs", writeTx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("expected subscription to fire on overlapping commit")
	}
}
