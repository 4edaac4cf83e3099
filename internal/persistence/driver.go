// Package persistence durably records committed write sets as an
// append-only commit log, one record per commit, replayed in commit order
// on startup.
package persistence

import (
	"context"

	"github.com/kartikbazzad/reactorcore/internal/model"
)

// Driver durably appends commit records and replays them on startup.
type Driver interface {
	// Append durably records one commit's write set at ts. It must not
	// return until the record is durable: publish only happens after
	// persistence succeeds.
	Append(ctx context.Context, ts model.Ts, writes *model.WriteSet) error

	// LoadLatest returns the highest commit timestamp recorded, or 0 if the
	// log is empty.
	LoadLatest(ctx context.Context) (model.Ts, error)

	// Scan replays every commit record with ts > from, in ascending order,
	// until fn returns false or records are exhausted.
	Scan(ctx context.Context, from model.Ts, fn func(ts model.Ts, writes *model.WriteSet) bool) error

	// Close releases underlying resources.
	Close() error
}
