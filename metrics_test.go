package pixcache

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.observeQuery(CacheTypeMemory)
	m.observeStore(nil)
	m.observeRemove()
	m.observeClear()
	m.observePrune(1024)

	// Partially wired counters are skipped, not dereferenced.
	partial := &Metrics{}
	partial.observeQuery(CacheTypeNone)
	partial.observeStore(nil)
}

func TestMetrics_EngineObservation(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := DefaultOptions()
	opts.Metrics = NewMetrics(reg)
	engine := newFileEngine(t, opts)

	engine.Store("asset", nil, "key1", CacheTypeMemory, nil)
	engine.Query(context.Background(), "key1", QueryOptions{}, nil)

	done := make(chan struct{})
	engine.Query(context.Background(), "absent", QueryOptions{}, func(any, []byte, CacheType) {
		close(done)
	})
	waitFor(t, done, "miss query")

	require.Equal(t, float64(1), testutil.ToFloat64(opts.Metrics.MemoryHits))
	require.Equal(t, float64(1), testutil.ToFloat64(opts.Metrics.MemoryMisses))
	require.Equal(t, float64(1), testutil.ToFloat64(opts.Metrics.DiskMisses))
	require.Equal(t, float64(1), testutil.ToFloat64(opts.Metrics.StoreTotal))
}

func TestCacheType_String(t *testing.T) {
	require.Equal(t, "none", CacheTypeNone.String())
	require.Equal(t, "disk", CacheTypeDisk.String())
	require.Equal(t, "memory", CacheTypeMemory.String())
	require.Equal(t, "both", CacheTypeBoth.String())
	require.Equal(t, "unknown", CacheType(42).String())
}
