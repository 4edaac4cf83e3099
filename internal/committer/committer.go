// Package committer implements the single logical serialization point for
// commits: a single-writer validate-and-reserve stage followed by a
// pipelined, concurrent persistence stage, followed by a strictly-ordered
// publish stage so commits become visible in commit-timestamp order even
// though persistence itself runs out of order. The concurrent persistence
// stage runs on an ants worker pool.
package committer

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kartikbazzad/reactorcore/internal/catalog"
	"github.com/kartikbazzad/reactorcore/internal/clock"
	"github.com/kartikbazzad/reactorcore/internal/errs"
	"github.com/kartikbazzad/reactorcore/internal/logger"
	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/mvccindex"
	"github.com/kartikbazzad/reactorcore/internal/overlap"
	"github.com/kartikbazzad/reactorcore/internal/persistence"
	"github.com/kartikbazzad/reactorcore/internal/snapshot"
	"github.com/kartikbazzad/reactorcore/internal/writelog"
)

// OnPublish is invoked, in commit order, once a transaction's writes have
// been applied to the MVCC index and its commit timestamp published — the
// hook the subscription manager and query cache attach invalidation to.
// affected is precomputed so both consumers reuse the same derivation the
// committer used for its own conflict checks.
type OnPublish func(ts model.Ts, affected overlap.AffectedKeys)

// Config bounds the commit pipeline.
type Config struct {
	PendingHighWater int
	PipelineWorkers  int
}

// Committer serializes commit validation and paces concurrent persistence
// and strictly-ordered publish.
type Committer struct {
	clock   *clock.Source
	cat     *catalog.Catalog
	idx     *mvccindex.Store
	log     *writelog.Log
	pending *writelog.Pending
	persist persistence.Driver
	snap    *snapshot.Manager
	lg      *logger.Logger
	cfg     Config
	onPub   OnPublish

	reqCh chan *request
	pool  *ants.PoolWithFunc
}

type request struct {
	table string
	final interface {
		GetBeginTs() model.Ts
		GetReadSet() *model.ReadSet
		GetWriteSet() *model.WriteSet
	}
	resultCh chan error
}

// Final is the minimal shape Committer needs from txn.Final, decoupling
// this package from importing txn (which would otherwise import this
// package's sibling packages and risk a cycle as the engine wires both).
type Final struct {
	BeginTs  model.Ts
	ReadSet  *model.ReadSet
	WriteSet *model.WriteSet
}

func (f *Final) GetBeginTs() model.Ts         { return f.BeginTs }
func (f *Final) GetReadSet() *model.ReadSet   { return f.ReadSet }
func (f *Final) GetWriteSet() *model.WriteSet { return f.WriteSet }

// New builds a Committer with its own pending queue, publishing into log.
// The table each commit targets is passed to Commit; the engine owns a
// single Committer for all tables. Cross-table two-phase commit is not
// implemented.
func New(clk *clock.Source, cat *catalog.Catalog, idx *mvccindex.Store, log *writelog.Log, persist persistence.Driver, snap *snapshot.Manager, lg *logger.Logger, cfg Config, onPub OnPublish) *Committer {
	if cfg.PipelineWorkers <= 0 {
		cfg.PipelineWorkers = 8
	}
	if cfg.PendingHighWater <= 0 {
		cfg.PendingHighWater = 1024
	}
	c := &Committer{
		clock:   clk,
		cat:     cat,
		idx:     idx,
		log:     log,
		pending: writelog.NewPending(),
		persist: persist,
		snap:    snap,
		lg:      lg,
		cfg:     cfg,
		onPub:   onPub,
		reqCh:   make(chan *request, cfg.PendingHighWater),
	}
	pool, err := ants.NewPoolWithFunc(cfg.PipelineWorkers, c.persistWorker)
	if err != nil {
		// ants only fails construction on a non-positive pool size, which
		// New already guards against above.
		panic(fmt.Sprintf("committer: ants pool: %v", err))
	}
	c.pool = pool
	go c.validateLoop()
	go c.publishLoop()
	return c
}

// Commit validates, persists, and publishes a finalized transaction,
// blocking until it either commits or aborts.
func (c *Committer) Commit(ctx context.Context, table string, f *Final) error {
	// Backpressure: wait (not abort) while pending is at the high-water mark.
	for c.pending.Len() >= c.cfg.PendingHighWater {
		select {
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	req := &request{table: table, final: f, resultCh: make(chan error, 1)}
	select {
	case c.reqCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// validateLoop is the single-writer serialization point: it is the only
// goroutine that checks overlap against the write log and pending queue
// and reserves commit timestamps, so two transactions can never both
// believe they safely committed over the same keys.
func (c *Committer) validateLoop() {
	for req := range c.reqCh {
		beginTs := req.final.GetBeginTs()
		readSet := req.final.GetReadSet()
		writeSet := req.final.GetWriteSet()

		// Pending is checked before the write log: an entry popped from
		// pending (and so skipped as stale) was appended to the log before
		// it was popped, so the log read that follows still sees it.
		if conflictTs, ok := c.findPendingConflict(readSet, req.table, c.pending.Snapshot()); ok {
			req.resultCh <- &errs.OCCAbort{ConflictingTs: conflictTs}
			continue
		}

		if entries, inWindow := c.log.After(beginTs); !inWindow {
			req.resultCh <- &errs.SnapshotTooOld{RequestedTs: beginTs, HorizonTs: c.log.Oldest()}
			continue
		} else if conflictTs, ok := c.findConflict(readSet, entries); ok {
			req.resultCh <- &errs.OCCAbort{ConflictingTs: conflictTs}
			continue
		}

		ts := c.clock.Next()
		staged := &writelog.Staged{
			Ts:        ts,
			BeginTs:   beginTs,
			ReadSet:   readSet,
			WriteSet:  writeSet,
			Done:      req.resultCh,
			Persisted: make(chan struct{}),
		}
		c.pending.PushBack(staged)

		if err := c.pool.Invoke(commitJob{table: req.table, staged: staged}); err != nil {
			staged.PersistErr = &errs.PersistenceUnavailable{Cause: err}
			close(staged.Persisted)
		}
	}
}

// findConflict checks readSet against already-published write-log entries.
// Each entry carries its own affected keys, captured at publish time before
// the write was applied to the index (writelog.Entry.Affected) — by the
// time an entry is visible here via c.log.After, the index already
// reflects its write, so re-deriving affected keys against the index at
// this point would collapse a moved document's vacated key into its new
// one. Using the precomputed value avoids that.
func (c *Committer) findConflict(readSet *model.ReadSet, entries []writelog.Entry) (model.Ts, bool) {
	for _, e := range entries {
		if ok := overlap.CheckAny(readSet, e.Affected); ok {
			return e.Ts, true
		}
	}
	return 0, false
}

// findPendingConflict checks readSet against staged-but-unpublished writes.
// Affected keys are derived as of the timestamp just before the entry's
// own, so the result is the same whether or not publishLoop has already
// applied the entry to the index. A staged entry that went stale (published
// or failed) between Snapshot and here is skipped: a published one was
// appended to the write log before it was popped, and validateLoop checks
// the write log after this function returns.
func (c *Committer) findPendingConflict(readSet *model.ReadSet, table string, staged []*writelog.Staged) (model.Ts, bool) {
	for _, s := range staged {
		if c.pending.IsStale(s.Ts) {
			continue
		}
		affected := overlap.DeriveAffectedKeys(c.cat, c.idx, s.Ts-1, table, s.WriteSet)
		if ok := overlap.CheckAny(readSet, affected); ok {
			return s.Ts, true
		}
	}
	return 0, false
}

type commitJob struct {
	table  string
	staged *writelog.Staged
}

// persistWorker runs on the ants worker pool: commits may persist out of
// order, which is safe because publishLoop only ever applies the head of
// the FIFO pending queue.
func (c *Committer) persistWorker(arg interface{}) {
	job := arg.(commitJob)
	if err := c.persist.Append(context.Background(), job.staged.Ts, job.staged.WriteSet); err != nil {
		job.staged.PersistErr = err
	}
	close(job.staged.Persisted)
}

// publishLoop applies staged commits to the MVCC index and advances the
// published snapshot strictly in FIFO/commit-ts order, regardless of the
// order their persistence completed in.
func (c *Committer) publishLoop() {
	for {
		front, ok := c.pending.Front()
		if !ok {
			c.pending.WaitNonEmpty()
			continue
		}
		<-front.Persisted
		if front.PersistErr != nil {
			c.pending.PopFront()
			front.Done <- front.PersistErr
			continue
		}

		table := c.tableForStaged(front)
		affected := overlap.DeriveAffectedKeys(c.cat, c.idx, front.Ts, table, front.WriteSet)
		c.applyToIndex(table, front.Ts, front.WriteSet)
		c.log.Append(front.Ts, front.WriteSet, affected)
		c.snap.Advance(front.Ts)
		c.pending.PopFront()

		if c.onPub != nil {
			c.onPub(front.Ts, affected)
		}
		front.Done <- nil
	}
}

// tableForStaged recovers the table name threaded through commitJob; kept
// on Staged implicitly via the write set's own Update.Table rather than a
// redundant field, since every update in one commit targets one table.
func (c *Committer) tableForStaged(s *writelog.Staged) string {
	return tableForWriteSet(s.WriteSet)
}

// tableForWriteSet returns the one table a write set targets, shared by
// tableForStaged and ReplayApplier.Affected.
func tableForWriteSet(writes *model.WriteSet) string {
	var table string
	writes.ForEach(func(_ model.DocID, u model.Update) {
		if table == "" {
			table = u.Table
		}
	})
	return table
}

func (c *Committer) applyToIndex(table string, ts model.Ts, writes *model.WriteSet) {
	tbl, ok := c.cat.Table(table)
	if !ok {
		return
	}
	writes.ForEach(func(id model.DocID, u model.Update) {
		primaryKey := model.IndexKey(model.EncodeUint64(id))
		tombstone := u.Kind == model.UpdateDelete
		c.idx.Index(table, catalog.PrimaryIndex).Apply(primaryKey, ts, id, tombstone, u.Value)

		switch u.Kind {
		case model.UpdateInsert:
			c.cat.IncrementDocCount(table)
		case model.UpdateDelete:
			c.cat.DecrementDocCount(table)
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
			c.idx.Index(table, name).Apply(key, ts, id, false, u.Value)
		}
	})
}

// PendingDepth reports the committer's current staging queue depth, for
// metrics and backpressure observability.
func (c *Committer) PendingDepth() int {
	return c.pending.Len()
}

// Close stops the pipeline's worker pool. The validate and publish loops
// are daemon goroutines for the lifetime of the process.
func (c *Committer) Close() {
	c.pool.Release()
}
