package memcache

import (
	"github.com/dgraph-io/ristretto/v2"
)

// Assumed mean asset footprint, used only to size ristretto's admission
// counters when the caller bounds by cost.
const defaultAssetSize = 64 << 10

// Ristretto is a memory tier backed by dgraph-io/ristretto. Admission is
// probabilistic (TinyLFU), so unlike LRU a freshly set entry may be
// rejected under pressure; in exchange it scales far better under
// concurrent access. When only a count bound is configured, each entry
// is admitted with unit cost against that bound.
type Ristretto[A any] struct {
	cache    *ristretto.Cache[string, A]
	maxCost  int64
	maxCount int
	unitCost bool
}

// NewRistretto creates a ristretto-backed memory tier. At least one of
// maxCost or maxCount must be non-zero; ristretto cannot run unbounded.
func NewRistretto[A any](maxCost int64, maxCount int) (*Ristretto[A], error) {
	budget := maxCost
	unitCost := false
	if budget <= 0 {
		budget = int64(maxCount)
		unitCost = true
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, A]{
		NumCounters:        ristrettoCounters(budget, unitCost),
		MaxCost:            budget,
		BufferItems:        64,
		IgnoreInternalCost: true,
		Metrics:            true,
	})
	if err != nil {
		return nil, err
	}

	return &Ristretto[A]{
		cache:    cache,
		maxCost:  maxCost,
		maxCount: maxCount,
		unitCost: unitCost,
	}, nil
}

func ristrettoCounters(budget int64, unitCost bool) int64 {
	entries := budget
	if !unitCost {
		entries = budget / defaultAssetSize
	}
	if entries < 1 {
		entries = 1
	}
	counters := entries * 10
	if counters < 1024 {
		counters = 1024
	}
	return counters
}

func (c *Ristretto[A]) Get(key string) (A, bool) {
	return c.cache.Get(key)
}

func (c *Ristretto[A]) Set(key string, asset A) {
	c.SetWithCost(key, asset, 0)
}

func (c *Ristretto[A]) SetWithCost(key string, asset A, cost int64) {
	if c.unitCost || cost < 1 {
		cost = 1
	}
	c.cache.Set(key, asset, cost)
	// Writes pass through an admission buffer; waiting keeps the
	// synchronous put-then-get contract of the tier.
	c.cache.Wait()
}

func (c *Ristretto[A]) Remove(key string) {
	c.cache.Del(key)
}

func (c *Ristretto[A]) RemoveAll() {
	c.cache.Clear()
}

// Len reports the number of live entries as tracked by ristretto's
// metrics. It is exact only while no evictions are racing.
func (c *Ristretto[A]) Len() int {
	m := c.cache.Metrics
	return int(m.KeysAdded() - m.KeysEvicted())
}

func (c *Ristretto[A]) Cost() int64 {
	m := c.cache.Metrics
	return int64(m.CostAdded() - m.CostEvicted())
}

func (c *Ristretto[A]) Stats() Stats {
	m := c.cache.Metrics
	return Stats{
		Hits:       int64(m.Hits()),
		Misses:     int64(m.Misses()),
		EntryCount: c.Len(),
		TotalCost:  c.Cost(),
		MaxCost:    c.maxCost,
		MaxCount:   c.maxCount,
	}
}

// Close releases ristretto's internal goroutines.
func (c *Ristretto[A]) Close() {
	c.cache.Close()
}
