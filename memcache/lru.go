package memcache

import (
	"sync"
	"sync/atomic"
)

type lruEntry[A any] struct {
	asset A
	cost  int64
}

// LRU is a memory tier bounded by total cost and entry count. When an
// insertion would breach either configured bound, least-recently-used
// entries are evicted until both bounds hold again.
type LRU[A any] struct {
	mu       sync.Mutex
	maxCost  int64
	maxCount int
	cost     int64
	cache    map[string]*lruEntry[A]
	order    []string

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRU creates an LRU memory tier. A zero maxCost or maxCount leaves
// that bound unenforced.
func NewLRU[A any](maxCost int64, maxCount int) *LRU[A] {
	return &LRU[A]{
		maxCost:  maxCost,
		maxCount: maxCount,
		cache:    make(map[string]*lruEntry[A]),
		order:    make([]string, 0),
	}
}

func (c *LRU[A]) Get(key string) (A, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		c.misses.Add(1)
		var zero A
		return zero, false
	}

	c.hits.Add(1)
	c.touch(key)
	return entry.asset, true
}

func (c *LRU[A]) Set(key string, asset A) {
	c.SetWithCost(key, asset, 0)
}

func (c *LRU[A]) SetWithCost(key string, asset A, cost int64) {
	if cost < 0 {
		cost = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cache[key]; ok {
		c.removeLocked(key)
	}

	// An entry that can never fit is rejected outright so the cost
	// bound holds after every insertion.
	if c.maxCost > 0 && cost > c.maxCost {
		return
	}

	for len(c.order) > 0 && c.overBudgetLocked(cost) {
		oldest := c.order[0]
		c.removeLocked(oldest)
	}

	c.cache[key] = &lruEntry[A]{asset: asset, cost: cost}
	c.order = append(c.order, key)
	c.cost += cost
}

func (c *LRU[A]) overBudgetLocked(incomingCost int64) bool {
	if c.maxCost > 0 && c.cost+incomingCost > c.maxCost {
		return true
	}
	if c.maxCount > 0 && len(c.order)+1 > c.maxCount {
		return true
	}
	return false
}

func (c *LRU[A]) Remove(key string) {
	c.mu.Lock()
	c.removeLocked(key)
	c.mu.Unlock()
}

func (c *LRU[A]) removeLocked(key string) {
	entry, ok := c.cache[key]
	if !ok {
		return
	}
	c.cost -= entry.cost
	delete(c.cache, key)
	c.removeFromOrder(key)
}

func (c *LRU[A]) RemoveAll() {
	c.mu.Lock()
	c.cache = make(map[string]*lruEntry[A])
	c.order = c.order[:0]
	c.cost = 0
	c.mu.Unlock()
}

func (c *LRU[A]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *LRU[A]) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

func (c *LRU[A]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		EntryCount: len(c.cache),
		TotalCost:  c.cost,
		MaxCost:    c.maxCost,
		MaxCount:   c.maxCount,
	}
}

func (c *LRU[A]) touch(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *LRU[A]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
