package pixcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's counters. A nil *Metrics disables all
// observation, as does any nil counter, so partially wired metrics are
// fine.
type Metrics struct {
	MemoryHits    prometheus.Counter
	MemoryMisses  prometheus.Counter
	DiskHits      prometheus.Counter
	DiskMisses    prometheus.Counter
	StoreTotal    prometheus.Counter
	StoreFailures prometheus.Counter
	RemoveTotal   prometheus.Counter
	ClearTotal    prometheus.Counter
	PruneTotal    prometheus.Counter
	PrunedBytes   prometheus.Counter
}

// NewMetrics creates the full counter set and registers it with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pixcache",
			Name:      name,
			Help:      help,
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}

	return &Metrics{
		MemoryHits:    counter("memory_hits_total", "Queries answered by the memory tier."),
		MemoryMisses:  counter("memory_misses_total", "Queries that missed the memory tier."),
		DiskHits:      counter("disk_hits_total", "Queries answered by the disk tier."),
		DiskMisses:    counter("disk_misses_total", "Queries that missed both tiers."),
		StoreTotal:    counter("store_total", "Store operations issued."),
		StoreFailures: counter("store_failures_total", "Disk writes that failed."),
		RemoveTotal:   counter("remove_total", "Remove operations issued."),
		ClearTotal:    counter("clear_total", "Clear operations issued."),
		PruneTotal:    counter("prune_total", "Prune passes executed."),
		PrunedBytes:   counter("pruned_bytes_total", "Bytes reclaimed by prune passes."),
	}
}

func (m *Metrics) incCounter(counter prometheus.Counter) {
	if m == nil || counter == nil {
		return
	}
	counter.Inc()
}

func (m *Metrics) addCounter(counter prometheus.Counter, value float64) {
	if m == nil || counter == nil || value == 0 {
		return
	}
	counter.Add(value)
}

func (m *Metrics) observeQuery(cacheType CacheType) {
	if m == nil {
		return
	}
	switch cacheType {
	case CacheTypeMemory, CacheTypeBoth:
		m.incCounter(m.MemoryHits)
	case CacheTypeDisk:
		m.incCounter(m.MemoryMisses)
		m.incCounter(m.DiskHits)
	case CacheTypeNone:
		m.incCounter(m.MemoryMisses)
		m.incCounter(m.DiskMisses)
	}
}

func (m *Metrics) observeStore(err error) {
	if m == nil {
		return
	}
	m.incCounter(m.StoreTotal)
	if err != nil {
		m.incCounter(m.StoreFailures)
	}
}

func (m *Metrics) observeRemove() {
	if m == nil {
		return
	}
	m.incCounter(m.RemoveTotal)
}

func (m *Metrics) observeClear() {
	if m == nil {
		return
	}
	m.incCounter(m.ClearTotal)
}

func (m *Metrics) observePrune(removedBytes int64) {
	if m == nil {
		return
	}
	m.incCounter(m.PruneTotal)
	m.addCounter(m.PrunedBytes, float64(removedBytes))
}
