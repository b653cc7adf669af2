package pixcache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixcache/pixcache/diskcache"
	"github.com/pixcache/pixcache/memcache"
)

// QueryCompletion delivers a query result: the decoded asset (nil on
// miss or when no decoder is configured), the raw bytes when the disk
// tier supplied them, and the tier the result came from.
type QueryCompletion func(asset any, data []byte, cacheType CacheType)

// Completion signals that a store, remove or clear operation finished.
type Completion func()

// QueryOptions tunes a single query.
type QueryOptions struct {
	// DiskSync runs the disk leg synchronously, before Query returns.
	// A memory hit additionally consults the disk tier for the raw
	// bytes and reports CacheTypeBoth when they exist.
	DiskSync bool
}

// Engine composes the memory and disk tiers behind one asynchronous
// query/store/remove/clear contract.
//
// Memory-only operations complete synchronously on the caller's
// goroutine, before the call returns. Any operation touching the disk
// tier completes asynchronously, never on the caller's goroutine (unless
// QueryOptions.DiskSync is requested explicitly). Writes, removes and
// clears targeting disk run on a single serial queue, so two writes to
// the same key are always observed in issue order.
//
// The engine itself holds no state beyond its tiers and in-flight
// bookkeeping; it remains operable after any individual I/O failure.
type Engine struct {
	opts    Options
	memory  memcache.Cache[any]
	disk    diskcache.Cache
	metrics *Metrics

	jobMu   sync.Mutex
	jobCond *sync.Cond
	jobs    []func()
	closed  bool

	done         chan struct{}
	wg           sync.WaitGroup
	prunePending atomic.Bool
}

// New creates an engine from opts. With neither Disk nor Dir configured
// the engine runs memory-only and disk-targeted operations degrade to
// no-ops that still fire their completions.
func New(opts Options) (*Engine, error) {
	opts.normalize()

	memory, err := opts.memoryTier()
	if err != nil {
		return nil, err
	}
	disk, err := opts.diskTier()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:    opts,
		metrics: opts.Metrics,
		done:    make(chan struct{}),
	}
	e.jobCond = sync.NewCond(&e.jobMu)
	e.memory = memory
	e.disk = disk

	e.wg.Add(1)
	go e.runQueue()

	if e.disk != nil && opts.PruneInterval > 0 {
		e.wg.Add(1)
		go e.runPruneLoop()
	}

	return e, nil
}

// runQueue executes queued disk jobs one at a time, in submission
// order, draining whatever remains after Close.
func (e *Engine) runQueue() {
	defer e.wg.Done()

	e.jobMu.Lock()
	for {
		for len(e.jobs) == 0 && !e.closed {
			e.jobCond.Wait()
		}
		if len(e.jobs) == 0 {
			e.jobMu.Unlock()
			return
		}
		job := e.jobs[0]
		e.jobs = e.jobs[1:]
		e.jobMu.Unlock()

		job()

		e.jobMu.Lock()
	}
}

func (e *Engine) runPruneLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.schedulePrune()
		}
	}
}

// enqueue hands job to the serial queue. The queue is unbounded, so
// queue jobs may themselves enqueue (the opportunistic prune does)
// without risk of blocking the queue goroutine. After Close the job
// still runs, on a fresh goroutine, so completions are never silently
// dropped.
func (e *Engine) enqueue(job func()) {
	e.jobMu.Lock()
	if e.closed {
		e.jobMu.Unlock()
		go job()
		return
	}
	e.jobs = append(e.jobs, job)
	e.jobCond.Signal()
	e.jobMu.Unlock()
}

// Query looks key up across the tiers. The memory tier is checked
// synchronously first; on a miss the disk leg runs on a background
// goroutine (or inline under QueryOptions.DiskSync). A disk hit is
// decoded and promoted into the memory tier when a decoder is
// configured. Cancelling the returned operation suppresses the
// completion; bytes already read are simply discarded.
func (e *Engine) Query(ctx context.Context, key string, opts QueryOptions, completion QueryCompletion) *Operation {
	if ctx == nil {
		ctx = context.Background()
	}
	qctx, qcancel := context.WithCancel(ctx)
	op := newOperation(qcancel)

	deliver := func(asset any, data []byte, cacheType CacheType) {
		if !op.tryComplete() {
			return
		}
		qcancel()
		e.metrics.observeQuery(cacheType)
		if completion != nil {
			completion(asset, data, cacheType)
		}
	}

	if key == "" {
		deliver(nil, nil, CacheTypeNone)
		return op
	}

	if e.memory != nil {
		if asset, ok := e.memory.Get(key); ok {
			if opts.DiskSync && e.disk != nil {
				if data, ok := e.disk.Get(key); ok {
					deliver(asset, data, CacheTypeBoth)
					return op
				}
			}
			deliver(asset, nil, CacheTypeMemory)
			return op
		}
	}

	if e.disk == nil {
		deliver(nil, nil, CacheTypeNone)
		return op
	}

	diskLeg := func() {
		if qctx.Err() != nil || op.Cancelled() {
			return
		}
		data, ok := e.disk.Get(key)
		if op.Cancelled() {
			return
		}
		if !ok {
			deliver(nil, nil, CacheTypeNone)
			return
		}
		asset := e.promote(key, data)
		deliver(asset, data, CacheTypeDisk)
	}

	if opts.DiskSync {
		diskLeg()
	} else {
		go diskLeg()
	}
	return op
}

// promote decodes disk bytes and inserts the asset into the memory tier
// with its externally computed cost. Decode failures leave the bytes
// result intact; the asset is simply absent.
func (e *Engine) promote(key string, data []byte) any {
	if e.opts.Decode == nil {
		return nil
	}
	asset, err := e.opts.Decode(data)
	if err != nil || asset == nil {
		return nil
	}
	if e.memory != nil {
		var cost int64
		if e.opts.Cost != nil {
			cost = e.opts.Cost(asset)
		}
		e.memory.SetWithCost(key, asset, cost)
	}
	return asset
}

// Store writes asset and data to the selected tier(s). When only memory
// is targeted the completion fires synchronously before Store returns;
// otherwise it fires after the disk write lands, success or failure. A
// nil asset targeting memory behaves as a removal; nil data targeting
// disk skips the write but still completes.
func (e *Engine) Store(asset any, data []byte, key string, cacheType CacheType, completion Completion) {
	complete := func() {
		if completion != nil {
			completion()
		}
	}

	if key == "" || cacheType == CacheTypeNone {
		complete()
		return
	}

	if cacheType.includesMemory() && e.memory != nil {
		if asset == nil {
			e.memory.Remove(key)
		} else {
			var cost int64
			if e.opts.Cost != nil {
				cost = e.opts.Cost(asset)
			}
			e.memory.SetWithCost(key, asset, cost)
		}
	}

	if !cacheType.includesDisk() || e.disk == nil {
		e.metrics.observeStore(nil)
		complete()
		return
	}

	e.enqueue(func() {
		var err error
		if data != nil {
			err = e.disk.Put(key, data)
			if err != nil {
				slog.Error("pixcache: disk store failed", "key", key, "error", err)
			}
		}
		e.metrics.observeStore(err)
		e.maybePruneAfterWrite()
		complete()
	})
}

// Remove deletes key from the selected tier(s). Synchronous completion
// when only memory is targeted, asynchronous otherwise.
func (e *Engine) Remove(key string, cacheType CacheType, completion Completion) {
	complete := func() {
		if completion != nil {
			completion()
		}
	}

	if key == "" || cacheType == CacheTypeNone {
		complete()
		return
	}

	if cacheType.includesMemory() && e.memory != nil {
		e.memory.Remove(key)
	}

	if !cacheType.includesDisk() || e.disk == nil {
		e.metrics.observeRemove()
		complete()
		return
	}

	e.enqueue(func() {
		if err := e.disk.Remove(key); err != nil {
			slog.Error("pixcache: disk remove failed", "key", key, "error", err)
		}
		e.metrics.observeRemove()
		complete()
	})
}

// Clear empties the selected tier(s). Synchronous completion when only
// memory is targeted, asynchronous otherwise. The disk clear is a
// best-effort bulk delete, not atomic.
func (e *Engine) Clear(cacheType CacheType, completion Completion) {
	complete := func() {
		if completion != nil {
			completion()
		}
	}

	if cacheType == CacheTypeNone {
		complete()
		return
	}

	if cacheType.includesMemory() && e.memory != nil {
		e.memory.RemoveAll()
	}

	if !cacheType.includesDisk() || e.disk == nil {
		e.metrics.observeClear()
		complete()
		return
	}

	e.enqueue(func() {
		if err := e.disk.RemoveAll(); err != nil {
			slog.Error("pixcache: disk clear failed", "error", err)
		}
		e.metrics.observeClear()
		complete()
	})
}

// Contains reports whether key exists in the selected tier(s). The
// memory probe is cheap; a disk probe blocks on a stat, so call it off
// any latency-sensitive goroutine.
func (e *Engine) Contains(key string, cacheType CacheType) bool {
	if key == "" {
		return false
	}
	if cacheType.includesMemory() && e.memory != nil {
		if _, ok := e.memory.Get(key); ok {
			return true
		}
	}
	if cacheType.includesDisk() && e.disk != nil {
		return e.disk.Contains(key)
	}
	return false
}

// TotalDiskSize returns the bytes used by the disk tier. Blocks on I/O.
func (e *Engine) TotalDiskSize() int64 {
	if e.disk == nil {
		return 0
	}
	return e.disk.TotalSize()
}

// TotalDiskCount returns the number of disk records. Blocks on I/O.
func (e *Engine) TotalDiskCount() int {
	if e.disk == nil {
		return 0
	}
	return e.disk.Count()
}

// MemoryLen returns the number of memory-tier entries.
func (e *Engine) MemoryLen() int {
	if e.memory == nil {
		return 0
	}
	return e.memory.Len()
}

// MemoryCost returns the memory tier's total recorded cost.
func (e *Engine) MemoryCost() int64 {
	if e.memory == nil {
		return 0
	}
	return e.memory.Cost()
}

// PurgeMemory empties the memory tier immediately. This is the hook the
// host feeds low-memory and backgrounding signals into; it is idempotent
// and safe from any goroutine.
func (e *Engine) PurgeMemory() {
	if e.memory != nil {
		e.memory.RemoveAll()
	}
}

// WatchPressure purges the memory tier every time signals delivers,
// until signals closes or ctx is cancelled. The engine defines the
// reaction; wiring the trigger source is the host's responsibility.
func (e *Engine) WatchPressure(ctx context.Context, signals <-chan struct{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.done:
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				e.PurgeMemory()
			}
		}
	}()
}

// Prune runs a disk prune pass synchronously. The scheduled loop and the
// opportunistic post-write trigger both funnel through here.
func (e *Engine) Prune() {
	if e.disk == nil {
		return
	}
	stats := e.disk.Prune(e.opts.pruneOptions())
	e.metrics.observePrune(stats.RemovedBytes)
}

// schedulePrune queues a coalesced prune pass on the serial queue, so it
// never races a write examining a stale size snapshot.
func (e *Engine) schedulePrune() {
	if e.disk == nil || !e.prunePending.CompareAndSwap(false, true) {
		return
	}
	e.enqueue(func() {
		e.prunePending.Store(false)
		e.Prune()
	})
}

func (e *Engine) maybePruneAfterWrite() {
	if e.opts.MaxDiskSize <= 0 || e.disk == nil {
		return
	}
	if e.disk.TotalSize() > e.opts.MaxDiskSize {
		e.schedulePrune()
	}
}

// Close stops the prune loop, drains the serial queue and closes the
// disk tier. Queued completions still fire.
func (e *Engine) Close() error {
	e.jobMu.Lock()
	if e.closed {
		e.jobMu.Unlock()
		return nil
	}
	e.closed = true
	e.jobCond.Signal()
	e.jobMu.Unlock()
	close(e.done)

	e.wg.Wait()

	if e.disk != nil {
		return e.disk.Close()
	}
	return nil
}

// Config returns the options the engine was built with. The
// DecompressEagerly flag lives here for the decode collaborator.
func (e *Engine) Config() Options {
	return e.opts
}
