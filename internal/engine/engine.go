// Package engine wires every component into the external surface: begin
// and commit transactions, subscribe to a read set, and look up or
// populate the query cache. Engine plays the root-object role, composing
// the write path, index, and background services.
package engine

import (
	"context"
	"time"

	"github.com/kartikbazzad/reactorcore/internal/cache"
	"github.com/kartikbazzad/reactorcore/internal/catalog"
	"github.com/kartikbazzad/reactorcore/internal/clock"
	"github.com/kartikbazzad/reactorcore/internal/committer"
	"github.com/kartikbazzad/reactorcore/internal/config"
	"github.com/kartikbazzad/reactorcore/internal/errs"
	"github.com/kartikbazzad/reactorcore/internal/logger"
	"github.com/kartikbazzad/reactorcore/internal/metrics"
	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/mvccindex"
	"github.com/kartikbazzad/reactorcore/internal/overlap"
	"github.com/kartikbazzad/reactorcore/internal/persistence"
	"github.com/kartikbazzad/reactorcore/internal/snapshot"
	"github.com/kartikbazzad/reactorcore/internal/subscription"
	"github.com/kartikbazzad/reactorcore/internal/txn"
	"github.com/kartikbazzad/reactorcore/internal/writelog"
)

// Engine is the top-level handle a server or REPL drives.
type Engine struct {
	cfg *config.Config
	log *logger.Logger

	cat   *catalog.Catalog
	idx   *mvccindex.Store
	clock *clock.Source
	snap  *snapshot.Manager
	wlog  *writelog.Log

	committer *committer.Committer
	subs      *subscription.Manager
	cache     *cache.Cache
	metrics   *metrics.Exporter
	sweeper   *mvccindex.Sweeper
	ids       *atomicIDAllocator

	persist persistence.Driver
}

// Open builds an Engine from cfg, replaying any existing commit log from
// persist and starting its background retention sweep.
func Open(cfg *config.Config, lg *logger.Logger) (*Engine, error) {
	if lg == nil {
		lg = logger.Default()
	}

	var persist persistence.Driver
	var err error
	switch cfg.Persist.Driver {
	case "sqlite":
		persist, err = persistence.OpenSQLiteDriver(cfg.Persist.SQLitePath)
		if err != nil {
			return nil, err
		}
	default:
		persist = persistence.NewMemoryDriver()
	}

	wlog := writelog.New(cfg.WriteLog.Capacity)
	e := &Engine{
		cfg:     cfg,
		log:     lg,
		cat:     catalog.New(),
		idx:     mvccindex.NewStore(),
		clock:   clock.New(),
		wlog:    wlog,
		subs:    subscription.New(wlog),
		cache:   cache.New(int(cfg.Cache.CapacityBytes / max64(cfg.Cache.AvgEntryBytes, 1))),
		metrics: metrics.NewExporter(),
		ids:     newIDAllocator(0),
		persist: persist,
	}

	latest, err := persist.LoadLatest(context.Background())
	if err != nil {
		return nil, err
	}
	e.snap = snapshot.New(latest)
	e.clock.Seed(latest)

	if err := e.replay(latest); err != nil {
		return nil, err
	}

	e.committer = committer.New(e.clock, e.cat, e.idx, e.wlog, e.persist, e.snap, e.log, committer.Config{
		PendingHighWater: cfg.Committer.PendingHighWater,
		PipelineWorkers:  cfg.Committer.PipelineWorkers,
	}, e.onPublish)

	e.sweeper = mvccindex.NewSweeper(e.idx, cfg.MVCC.SweepInterval, e.snap.Latest, e.log)
	e.sweeper.Start(context.Background())

	return e, nil
}

func max64(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}

// replay applies every durable commit record up to latest to the MVCC
// index and write log, bringing a restarted engine back to its last
// published state by replaying the commit log in order.
func (e *Engine) replay(latest model.Ts) error {
	applier := committer.NewReplayApplier(e.cat, e.idx)
	return e.persist.Scan(context.Background(), 0, func(ts model.Ts, writes *model.WriteSet) bool {
		affected := applier.Affected(ts, writes)
		applier.Apply(ts, writes)
		e.wlog.Append(ts, writes, affected)
		return true
	})
}

func (e *Engine) onPublish(ts model.Ts, affected overlap.AffectedKeys) {
	e.subs.OnCommit(ts, affected)
	e.cache.Invalidate(affected)
	e.metrics.SetSubscriptionsLive(e.subs.Count())
	e.metrics.SetPendingDepth(e.committer.PendingDepth())
}

// Catalog exposes the table/index registry for schema administration.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Metrics exposes the Prometheus registry for HTTP exposition.
func (e *Engine) Metrics() *metrics.Exporter { return e.metrics }

// Subscribe registers a token over readSet as of validityTs (the snapshot
// the caller evaluated it under) and returns its id and a channel that
// receives a single Invalidated event the first time an overlapping commit
// publishes. Any commit that landed between validityTs and registration is
// replayed against readSet first; see subscription.Manager.Register.
func (e *Engine) Subscribe(readSet *model.ReadSet, validityTs model.Ts) (subscription.ID, <-chan subscription.Invalidated, error) {
	return e.subs.Register(readSet, validityTs)
}

// Unsubscribe retires a subscription token without waiting for it to fire.
func (e *Engine) Unsubscribe(id subscription.ID) {
	e.subs.Unsubscribe(id)
}

// CacheLookup returns a cached query result for key, if present.
func (e *Engine) CacheLookup(key cache.Key) (value interface{}, ts model.Ts, ok bool) {
	return e.cache.Lookup(key)
}

// CacheInsert stores value for key, recording the read set the evaluation
// produced so a later overlapping commit invalidates it.
func (e *Engine) CacheInsert(key cache.Key, value interface{}, ts model.Ts, readSet *model.ReadSet) {
	e.cache.Insert(key, value, ts, readSet)
}

// BeginTransaction opens a new transaction at the latest published
// snapshot, pinning it against retention until it resolves.
func (e *Engine) BeginTransaction() *txn.Tx {
	beginTs := e.snap.Latest()
	e.idx.AcquireBeginTs(beginTs)
	deadline := time.Time{}
	if e.cfg.Tx.DefaultDeadline > 0 {
		deadline = time.Now().Add(e.cfg.Tx.DefaultDeadline)
	}
	return txn.New(beginTs, e.cat, e.idx, e.ids, deadline)
}

// Commit finalizes tx and submits it to the committer, releasing its
// retention pin regardless of outcome.
func (e *Engine) Commit(ctx context.Context, table string, tx *txn.Tx) error {
	start := time.Now()
	defer e.idx.ReleaseBeginTs(tx.BeginTs())

	final, err := tx.Finalize()
	if err != nil {
		e.metrics.RecordOperation("commit", "error", time.Since(start))
		return err
	}

	err = e.committer.Commit(ctx, table, &committer.Final{
		BeginTs:  final.BeginTs,
		ReadSet:  final.ReadSet,
		WriteSet: final.WriteSet,
	})

	status := "ok"
	if err != nil {
		status = "error"
		if _, ok := errs.IsOCCAbort(err); ok {
			status = "occ_abort"
		}
	}
	e.metrics.RecordOperation("commit", status, time.Since(start))
	return err
}

// SweepRetentionForTest forces an out-of-band retention sweep to horizon,
// bypassing the sweeper's ticker. Exported for tests that need to observe
// retention-boundary behavior without waiting on the configured interval.
func (e *Engine) SweepRetentionForTest(horizon model.Ts) {
	e.idx.Sweep(horizon)
}

// Close stops background services and releases the persistence driver.
func (e *Engine) Close() error {
	e.sweeper.Stop()
	e.committer.Close()
	return e.persist.Close()
}
