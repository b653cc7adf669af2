package pixcache

import (
	"cmp"
	"time"

	"github.com/pixcache/pixcache/diskcache"
	"github.com/pixcache/pixcache/memcache"
)

const (
	// DefaultMaxAge keeps disk records for one week.
	DefaultMaxAge = 7 * 24 * time.Hour

	// DefaultPruneInterval is how often the scheduled prune pass runs.
	DefaultPruneInterval = 5 * time.Minute
)

// CostFunc reports the memory footprint of a decoded asset, used only
// for memory-tier eviction accounting. Supplied by the decode subsystem;
// assets with no retainable bitmap should cost 0.
type CostFunc func(asset any) int64

// DecodeFunc turns raw disk bytes back into a decoded asset. Supplied by
// the decode subsystem; when nil, disk hits are delivered as bytes only
// and never promoted into the memory tier.
type DecodeFunc func(data []byte) (any, error)

// Options configures an Engine. The zero value of every field means the
// documented default; the struct is read once by New and never re-read,
// so mutating it afterwards has no effect on a running engine.
type Options struct {
	// Dir is the directory for the default file-backed disk tier. Leave
	// empty when supplying Disk or when running memory-only.
	Dir string

	// DisableMemory turns the memory tier off entirely.
	DisableMemory bool

	// MaxMemoryCost bounds the memory tier's total cost (0 = unbounded).
	MaxMemoryCost int64
	// MaxMemoryCount bounds the memory tier's entry count (0 = unbounded).
	MaxMemoryCount int

	// MaxAge is the disk record lifetime (default DefaultMaxAge;
	// negative disables age pruning).
	MaxAge time.Duration
	// MaxDiskSize bounds the disk tier in bytes (0 = unbounded).
	MaxDiskSize int64
	// PruneRatio is the size-prune hysteresis margin
	// (default diskcache.DefaultPruneRatio).
	PruneRatio float64
	// PruneInterval is the scheduled prune cadence (default
	// DefaultPruneInterval; negative disables the schedule).
	PruneInterval time.Duration

	ReadMode  diskcache.ReadMode
	WriteMode diskcache.WriteMode

	// Compression is "" or diskcache.CompressionZstd, for the default
	// file tier.
	Compression string

	// DecompressEagerly is an opaque hint carried for the decode
	// collaborator: pre-decode bitmaps off the latency-sensitive
	// thread at the price of memory. The engine only stores it.
	DecompressEagerly bool

	// ExcludeFromBackup marks the default file tier's directory so
	// backup tools skip it.
	ExcludeFromBackup bool

	// Memory substitutes a custom memory tier. Takes precedence over
	// the bound fields above.
	Memory memcache.Cache[any]
	// Disk substitutes a custom disk tier. Takes precedence over Dir.
	Disk diskcache.Cache

	// Cost computes promotion costs (default: every asset costs 0).
	Cost CostFunc
	// Decode enables promotion of disk hits into the memory tier.
	Decode DecodeFunc

	Metrics *Metrics
}

// DefaultOptions returns the documented defaults. DisableMemory is off:
// assets are cached in memory unless the caller opts out.
func DefaultOptions() Options {
	return Options{
		MaxAge:        DefaultMaxAge,
		PruneInterval: DefaultPruneInterval,
	}
}

type tierCandidate[T any] struct {
	enabled bool
	build   func() (T, error)
}

func chooseTier[T any](candidates ...tierCandidate[T]) (T, error) {
	for _, candidate := range candidates {
		if candidate.enabled {
			return candidate.build()
		}
	}
	var zero T
	return zero, nil
}

func (o *Options) normalize() {
	o.MaxAge = cmp.Or(o.MaxAge, DefaultMaxAge)
	if o.MaxAge < 0 {
		o.MaxAge = 0
	}
	o.PruneInterval = cmp.Or(o.PruneInterval, DefaultPruneInterval)
	if o.PruneInterval < 0 {
		o.PruneInterval = 0
	}
}

func (o *Options) memoryTier() (memcache.Cache[any], error) {
	return chooseTier(
		tierCandidate[memcache.Cache[any]]{
			enabled: o.DisableMemory,
			build: func() (memcache.Cache[any], error) {
				return nil, nil
			},
		},
		tierCandidate[memcache.Cache[any]]{
			enabled: o.Memory != nil,
			build: func() (memcache.Cache[any], error) {
				return o.Memory, nil
			},
		},
		tierCandidate[memcache.Cache[any]]{
			enabled: true,
			build: func() (memcache.Cache[any], error) {
				return memcache.NewLRU[any](o.MaxMemoryCost, o.MaxMemoryCount), nil
			},
		},
	)
}

func (o *Options) diskTier() (diskcache.Cache, error) {
	return chooseTier(
		tierCandidate[diskcache.Cache]{
			enabled: o.Disk != nil,
			build: func() (diskcache.Cache, error) {
				return o.Disk, nil
			},
		},
		tierCandidate[diskcache.Cache]{
			enabled: o.Dir != "",
			build: func() (diskcache.Cache, error) {
				return diskcache.NewFile(diskcache.FileOptions{
					Dir:               o.Dir,
					ReadMode:          o.ReadMode,
					WriteMode:         o.WriteMode,
					Compression:       o.Compression,
					ExcludeFromBackup: o.ExcludeFromBackup,
				})
			},
		},
	)
}

func (o *Options) pruneOptions() diskcache.PruneOptions {
	return diskcache.PruneOptions{
		MaxAge:  o.MaxAge,
		MaxSize: o.MaxDiskSize,
		Ratio:   o.PruneRatio,
	}
}
