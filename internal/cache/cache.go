// Package cache implements the query result cache: results are keyed by
// (function id, argument hash), invalidated by the same overlap check
// subscriptions use, and misses collapse under concurrent callers so a cold
// cache does not stampede the committer. Built on hashicorp/golang-lru and
// golang.org/x/sync/singleflight.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/kartikbazzad/reactorcore/internal/model"
	"github.com/kartikbazzad/reactorcore/internal/overlap"
)

// Key identifies one cached query result.
type Key struct {
	FunctionID string
	ArgsHash   string
}

// HashArgs derives a stable ArgsHash from an arbitrary JSON-serializable
// argument value.
func HashArgs(args interface{}) (string, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// entry is one cached result plus the read set it was produced under, so a
// later commit can be checked for overlap.
type entry struct {
	value   interface{}
	ts      model.Ts
	readSet *model.ReadSet
}

// Cache is an LRU query-result cache with overlap-based invalidation.
type Cache struct {
	lru   *lru.Cache[Key, *entry]
	group singleflight.Group
}

// New returns a Cache holding at most maxEntries results.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	l, _ := lru.New[Key, *entry](maxEntries)
	return &Cache{lru: l}
}

// Lookup returns a cached result for key, if present.
func (c *Cache) Lookup(key Key) (value interface{}, ts model.Ts, ok bool) {
	e, found := c.lru.Get(key)
	if !found {
		return nil, 0, false
	}
	return e.value, e.ts, true
}

// Insert stores value for key, recording the read set the evaluation
// produced so future commits can be checked for overlap.
func (c *Cache) Insert(key Key, value interface{}, ts model.Ts, readSet *model.ReadSet) {
	c.lru.Add(key, &entry{value: value, ts: ts, readSet: readSet})
}

// GetOrCompute returns the cached result for key if present; otherwise it
// calls compute exactly once even under concurrent callers for the same
// key (via singleflight), caches the result, and returns it.
func (c *Cache) GetOrCompute(key Key, compute func() (interface{}, model.Ts, *model.ReadSet, error)) (interface{}, error) {
	if value, _, ok := c.Lookup(key); ok {
		return value, nil
	}

	groupKey := key.FunctionID + "\x00" + key.ArgsHash
	v, err, _ := c.group.Do(groupKey, func() (interface{}, error) {
		value, ts, readSet, err := compute()
		if err != nil {
			return nil, err
		}
		c.Insert(key, value, ts, readSet)
		return value, nil
	})
	return v, err
}

// Invalidate evicts every cached entry whose read set overlaps affected,
// using the same overlap algorithm subscriptions invalidate with.
func (c *Cache) Invalidate(affected overlap.AffectedKeys) {
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if overlap.CheckAny(e.readSet, affected) {
			c.lru.Remove(key)
		}
	}
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int { return c.lru.Len() }
