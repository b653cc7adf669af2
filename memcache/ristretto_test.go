package memcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRistretto_RequiresABound(t *testing.T) {
	cache, err := NewRistretto[string](1<<20, 0)
	require.NoError(t, err)
	cache.Close()

	cache, err = NewRistretto[string](0, 100)
	require.NoError(t, err)
	cache.Close()
}

func TestRistretto_SetGetWithCost(t *testing.T) {
	cache, err := NewRistretto[string](1<<20, 0)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	cache.SetWithCost("k1", "v1", 1024)
	got, ok := cache.Get("k1")
	require.True(t, ok)
	require.Equal(t, "v1", got)

	require.Equal(t, int64(1024), cache.Cost())
}

func TestRistretto_CountBoundUsesUnitCost(t *testing.T) {
	cache, err := NewRistretto[string](0, 100)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	// Cost is ignored under a pure count bound; each entry weighs 1.
	cache.SetWithCost("k1", "v1", 1<<30)
	got, ok := cache.Get("k1")
	require.True(t, ok)
	require.Equal(t, "v1", got)
}

func TestRistretto_RemoveAll(t *testing.T) {
	cache, err := NewRistretto[string](1<<20, 0)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	cache.SetWithCost("k1", "v1", 1)
	cache.SetWithCost("k2", "v2", 1)
	cache.RemoveAll()

	_, ok := cache.Get("k1")
	require.False(t, ok)
	_, ok = cache.Get("k2")
	require.False(t, ok)
}
