// Package memcache provides the in-process tier of the asset cache: a
// bounded keyed asset store with per-entry cost accounting.
//
// Two implementations are provided. LRU is a mutex-guarded map with a
// strict least-recently-used eviction order and hard cost/count bounds.
// Ristretto wraps dgraph-io/ristretto for high-concurrency workloads
// where probabilistic admission is acceptable.
package memcache

// Cache is the capability contract for a memory tier. Implementations
// must be safe for concurrent use from any goroutine; operations are
// synchronous and never perform I/O.
type Cache[A any] interface {
	// Get returns the asset for key and marks it recently used.
	Get(key string) (A, bool)

	// Set stores asset under key with zero cost, replacing any
	// existing entry.
	Set(key string, asset A)

	// SetWithCost stores asset under key with the given eviction cost.
	// Cost is recorded once at insertion and never recomputed.
	SetWithCost(key string, asset A, cost int64)

	// Remove deletes the entry for key, if present.
	Remove(key string)

	// RemoveAll empties the cache immediately. It is the purge hook for
	// external memory-pressure and lifecycle signals and is idempotent.
	RemoveAll()

	// Len returns the number of entries.
	Len() int

	// Cost returns the total recorded cost of all entries.
	Cost() int64

	Stats() Stats
}

type Stats struct {
	Hits       int64
	Misses     int64
	EntryCount int
	TotalCost  int64
	MaxCost    int64
	MaxCount   int
}
