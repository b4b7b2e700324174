// Package respcache is an adaptive-capacity LRU for inference responses,
// keyed by request fingerprint, with single-flight de-duplication so
// concurrent identical requests share one backend call.
package respcache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// entryOverhead approximates per-entry bookkeeping cost for the byte budget.
const entryOverhead = 96

// ComputeFunc produces the value for a fingerprint on a cache miss.
type ComputeFunc func(ctx context.Context) (string, error)

type entry struct {
	value      string
	size       int64
	insertedAt time.Time
	lastAccess time.Time
}

// Stats is a point-in-time view of cache occupancy and counters.
type Stats struct {
	Entries      int
	MaxEntries   int
	SizeBytes    int64
	MaxSizeBytes int64
	Hits         uint64
	Misses       uint64
	Evictions    uint64
}

// Cache owns its entry table exclusively. All table mutation is serialized
// under one mutex; in-flight computations run outside the lock so unrelated
// fingerprints never block each other.
type Cache struct {
	mu         sync.Mutex
	lru        *lru.Cache[string, *entry]
	maxEntries int
	maxBytes   int64
	curBytes   int64
	hits       uint64
	misses     uint64
	evictions  uint64

	group singleflight.Group
	log   zerolog.Logger
}

// New builds a Cache with an entry budget and an optional byte budget
// (0 = unlimited bytes).
func New(maxEntries int, maxBytes int64, log zerolog.Logger) (*Cache, error) {
	c := &Cache{maxEntries: maxEntries, maxBytes: maxBytes, log: log}
	l, err := lru.NewWithEvict[string, *entry](maxEntries, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// onEvict runs under c.mu (all lru mutation happens there).
func (c *Cache) onEvict(_ string, e *entry) {
	c.curBytes -= e.size
	c.evictions++
}

// GetOrCompute returns the cached value for fp, or runs compute exactly once
// across all concurrent callers of the same fingerprint. Waiters may abandon
// on ctx without cancelling the shared computation; its result is still
// cached for later requests. A failed compute caches nothing and all waiters
// receive the same error.
func (c *Cache) GetOrCompute(ctx context.Context, fp string, compute ComputeFunc) (string, bool, error) {
	c.mu.Lock()
	if e, ok := c.lru.Get(fp); ok {
		e.lastAccess = time.Now()
		c.hits++
		c.mu.Unlock()
		return e.value, true, nil
	}
	c.misses++
	c.mu.Unlock()

	// Detach the shared computation from this caller's lifetime; the backend
	// call carries its own deadline.
	computeCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fp, func() (any, error) {
		val, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		c.store(fp, val)
		return val, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		return res.Val.(string), false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Get returns the cached value for fp without computing anything on a miss.
// Used when memory pressure forbids new entries but hits are still free wins.
func (c *Cache) Get(fp string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.lru.Get(fp); ok {
		e.lastAccess = time.Now()
		c.hits++
		return e.value, true
	}
	c.misses++
	return "", false
}

// Invalidate removes a fingerprint if present.
func (c *Cache) Invalidate(fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(fp)
}

// Resize shrinks or grows the entry budget and replaces the byte budget,
// evicting immediately until both fit. Called by the resource monitor under
// high memory pressure.
func (c *Cache) Resize(maxEntries int, maxBytes int64) {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if maxEntries != c.maxEntries {
		c.lru.Resize(maxEntries)
		c.maxEntries = maxEntries
	}
	c.maxBytes = maxBytes
	c.enforceByteBudget()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Stats returns current occupancy and lifetime counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:      c.lru.Len(),
		MaxEntries:   c.maxEntries,
		SizeBytes:    c.curBytes,
		MaxSizeBytes: c.maxBytes,
		Hits:         c.hits,
		Misses:       c.misses,
		Evictions:    c.evictions,
	}
}

func (c *Cache) store(fp, val string) {
	now := time.Now()
	e := &entry{
		value:      val,
		size:       int64(len(val)) + int64(len(fp)) + entryOverhead,
		insertedAt: now,
		lastAccess: now,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Replacing an existing key does not trigger the evict callback.
	if old, ok := c.lru.Peek(fp); ok {
		c.curBytes -= old.size
	}
	c.lru.Add(fp, e)
	c.curBytes += e.size
	c.enforceByteBudget()
}

// enforceByteBudget evicts LRU entries until the byte budget fits.
// Caller must hold c.mu.
func (c *Cache) enforceByteBudget() {
	if c.maxBytes <= 0 {
		return
	}
	for c.curBytes > c.maxBytes && c.lru.Len() > 0 {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			return
		}
	}
}
