package mvccindex

import (
	"context"
	"time"

	"github.com/kartikbazzad/reactorcore/internal/logger"
	"github.com/kartikbazzad/reactorcore/internal/model"
)

// Sweeper periodically advances retention, trimming versions older than the
// horizon, on a background ticker loop.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      *logger.Logger
	latestTs func() model.Ts

	stop chan struct{}
	done chan struct{}
}

// NewSweeper returns a Sweeper that asks latestTs for the current commit
// timestamp on every tick.
func NewSweeper(store *Store, interval time.Duration, latestTs func() model.Ts, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		log:      log,
		latestTs: latestTs,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				horizon := s.store.Horizon(s.latestTs())
				s.store.Sweep(horizon)
				s.log.Debug("mvcc retention sweep complete horizon=%d", horizon)
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
