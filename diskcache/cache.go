// Package diskcache provides the persistent tier of the asset cache:
// a keyed byte store with age- and size-bounded pruning.
//
// Three implementations are provided. File stores one record per file
// under a directory, with the file's modification time as the only
// freshness metadata. Badger stores records in an embedded badger KV
// with native TTL expiry. Bucket stores records in a gocloud.dev blob
// bucket (file://, mem://, s3://, ...).
//
// All operations may block on storage I/O. Callers on latency-sensitive
// goroutines must dispatch to the tier from a background goroutine; the
// engine in the root package does this.
package diskcache

import (
	"errors"
	"time"
)

// ErrExists is returned by Put in no-overwrite mode when a record for
// the key is already present.
var ErrExists = errors.New("diskcache: record exists")

// Cache is the capability contract for a persistent tier. Get reports a
// miss for both absent records and failed reads: either way the caller's
// fallback is the same, so the two are indistinguishable on purpose.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
	Remove(key string) error
	RemoveAll() error

	// Contains reports record existence without materializing bytes.
	Contains(key string) bool

	// TotalSize returns the bytes used by all records.
	TotalSize() int64
	// Count returns the number of records.
	Count() int

	// Prune deletes records violating the age bound, then records
	// oldest-first until the size bound holds. Best effort: individual
	// delete failures are counted and skipped.
	Prune(opts PruneOptions) PruneStats

	Stats() Stats
	Close() error
}

// PruneOptions bounds a prune pass. Zero MaxAge disables age pruning;
// zero MaxSize disables size pruning.
type PruneOptions struct {
	MaxAge  time.Duration
	MaxSize int64

	// Ratio is the hysteresis margin for size pruning: the pass deletes
	// down to MaxSize*Ratio rather than to MaxSize, so a near-boundary
	// write does not trigger a prune every time. Zero means
	// DefaultPruneRatio; values >= 1 prune only to MaxSize.
	Ratio float64
}

// DefaultPruneRatio preserves the original prune-to-half behavior.
const DefaultPruneRatio = 0.5

func (o PruneOptions) sizeTarget() int64 {
	ratio := o.Ratio
	if ratio <= 0 {
		ratio = DefaultPruneRatio
	}
	if ratio > 1 {
		ratio = 1
	}
	return int64(float64(o.MaxSize) * ratio)
}

type PruneStats struct {
	Examined     int
	Removed      int
	RemovedBytes int64
	Failed       int
}

type Stats struct {
	Hits       int64
	Misses     int64
	Size       int64
	EntryCount int
}

// ReadMode selects how File reads record bytes.
type ReadMode int

const (
	// ReadBuffered reads records through the page cache.
	ReadBuffered ReadMode = iota
	// ReadMmap memory-maps records and copies out of the mapping.
	ReadMmap
)

// WriteMode selects overwrite semantics for Put.
type WriteMode int

const (
	// WriteOverwrite replaces an existing record for the same key.
	WriteOverwrite WriteMode = iota
	// WriteNoOverwrite fails Put with ErrExists when a record exists.
	WriteNoOverwrite
)
