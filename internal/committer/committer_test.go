package committer

import (
	"context"
	"testing"
	"time"

	"github.com/kartikbazzad/reactorcore/internal/catalog"
	"github.com/kartikbazzad/reactorcore/internal/clock"
	"github.com/kartikbazzad/reactorcore/internal/errs"
	"github.com/kartikbazzad/reactorcore/internal/logger"
	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/mvccindex"
	"github.com/kartikbazzad/reactorcore/internal/persistence"
	"github.com/kartikbazzad/reactorcore/internal/snapshot"
	"github.com/kartikbazzad/reactorcore/internal/writelog"
)

func newTestCommitter(t *testing.T) (*Committer, *catalog.Catalog, *mvccindex.Store) {
	t.Helper()
	cat := catalog.New()
	if err := cat.CreateTable("docs"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	idx := mvccindex.NewStore()
	c := New(clock.New(), cat, idx, writelog.New(64), persistence.NewMemoryDriver(), snapshot.New(0), logger.Default(), Config{PipelineWorkers: 2, PendingHighWater: 16}, nil)
	t.Cleanup(c.Close)
	return c, cat, idx
}

func TestCommitAppliesWriteAndAdvancesIndex(t *testing.T) {
	c, _, idx := newTestCommitter(t)

	ws := model.NewWriteSet()
	ws.Put(1, model.Update{Kind: model.UpdateInsert, Table: "docs", Value: []byte(`{"a":1}`)})
	rs := model.NewReadSet()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Commit(ctx, "docs", &Final{BeginTs: 0, ReadSet: rs, WriteSet: ws}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, ok := idx.Index("docs", catalog.PrimaryIndex).Get(model.EncodeUint64(1), 1<<62); !ok {
		t.Fatalf("expected document visible after commit")
	}
}

func TestCommitAbortsOnOverlappingRead(t *testing.T) {
	c, _, _ := newTestCommitter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ws1 := model.NewWriteSet()
	ws1.Put(1, model.Update{Kind: model.UpdateInsert, Table: "docs", Value: []byte(`{}`)})
	if err := c.Commit(ctx, "docs", &Final{BeginTs: 0, ReadSet: model.NewReadSet(), WriteSet: ws1}); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	rs2 := model.NewReadSet()
	rs2.Record("docs:primary", model.PointInterval(model.EncodeUint64(1)))
	ws2 := model.NewWriteSet()
	ws2.Put(1, model.Update{Kind: model.UpdateReplace, Table: "docs", Value: []byte(`{"x":1}`)})

	err := c.Commit(ctx, "docs", &Final{BeginTs: 0, ReadSet: rs2, WriteSet: ws2})
	if _, ok := errs.IsOCCAbort(err); !ok {
		t.Fatalf("expected OCCAbort for stale read of id=1, got %v", err)
	}
}
