package diskcache

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type cacheFactory struct {
	name    string
	newFunc func(t *testing.T) Cache
}

var cacheFactories = []cacheFactory{
	{
		name: "File",
		newFunc: func(t *testing.T) Cache {
			cache, err := NewFile(FileOptions{Dir: t.TempDir()})
			require.NoError(t, err)
			t.Cleanup(func() { cache.Close() })
			return cache
		},
	},
	{
		name: "Badger",
		newFunc: func(t *testing.T) Cache {
			cache, err := NewBadger(BadgerOptions{InMemory: true})
			require.NoError(t, err)
			t.Cleanup(func() { cache.Close() })
			return cache
		},
	},
	{
		name: "Bucket",
		newFunc: func(t *testing.T) Cache {
			cache, err := NewMemBucket(context.Background(), "cache")
			require.NoError(t, err)
			t.Cleanup(func() { cache.Close() })
			return cache
		},
	},
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			data := []byte("raw image bytes")
			require.NoError(t, cache.Put("key1", data))

			got, ok := cache.Get("key1")
			require.True(t, ok)
			require.True(t, bytes.Equal(data, got))
		})
	}
}

func TestCache_MissOnAbsentKey(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			got, ok := cache.Get("never-stored")
			require.False(t, ok)
			require.Nil(t, got)
		})
	}
}

func TestCache_OverwriteReplaces(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			require.NoError(t, cache.Put("key1", []byte("first")))
			require.NoError(t, cache.Put("key1", []byte("second")))

			got, ok := cache.Get("key1")
			require.True(t, ok)
			require.Equal(t, "second", string(got))
			require.Equal(t, 1, cache.Count())
		})
	}
}

func TestCache_Remove(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			require.NoError(t, cache.Put("key1", []byte("data")))
			require.NoError(t, cache.Remove("key1"))

			_, ok := cache.Get("key1")
			require.False(t, ok)

			// Removing an absent key is not an error.
			require.NoError(t, cache.Remove("key1"))
		})
	}
}

func TestCache_RemoveAll(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			for i := 0; i < 5; i++ {
				require.NoError(t, cache.Put(fmt.Sprintf("key%d", i), []byte("data")))
			}
			require.Equal(t, 5, cache.Count())

			require.NoError(t, cache.RemoveAll())
			require.Equal(t, 0, cache.Count())
			require.Equal(t, int64(0), cache.TotalSize())
		})
	}
}

func TestCache_Contains(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			require.False(t, cache.Contains("key1"))
			require.NoError(t, cache.Put("key1", []byte("data")))
			require.True(t, cache.Contains("key1"))
		})
	}
}

func TestCache_SizeAccounting(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			require.NoError(t, cache.Put("key1", bytes.Repeat([]byte("a"), 100)))
			require.NoError(t, cache.Put("key2", bytes.Repeat([]byte("b"), 200)))

			require.Equal(t, 2, cache.Count())
			require.GreaterOrEqual(t, cache.TotalSize(), int64(300))
		})
	}
}

func TestCache_SizePruneRespectsRatio(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			for i := 0; i < 10; i++ {
				require.NoError(t, cache.Put(fmt.Sprintf("key%d", i), bytes.Repeat([]byte("x"), 100)))
			}

			stats := cache.Prune(PruneOptions{MaxSize: 500})
			require.Equal(t, 10, stats.Examined)
			require.Greater(t, stats.Removed, 0)
			// Hysteresis: pruned down to half the limit, not just under it.
			require.LessOrEqual(t, cache.TotalSize(), int64(250))
			require.Zero(t, stats.Failed)
		})
	}
}

func TestCache_PruneUnderLimitIsNoop(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			require.NoError(t, cache.Put("key1", []byte("small")))
			stats := cache.Prune(PruneOptions{MaxSize: 1 << 20})
			require.Zero(t, stats.Removed)
			require.True(t, cache.Contains("key1"))
		})
	}
}

func TestCache_ZeroMaxAgeDisablesAgePruning(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			require.NoError(t, cache.Put("key1", []byte("data")))

			// A pass with no age bound and a generous size bound must
			// leave records of any age alone.
			stats := cache.Prune(PruneOptions{MaxAge: 0, MaxSize: 1 << 20})
			require.Zero(t, stats.Removed)
			require.True(t, cache.Contains("key1"))
		})
	}
}

func TestCache_UsableAfterFailures(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t)

			_, _ = cache.Get("absent")
			_ = cache.Remove("absent")

			require.NoError(t, cache.Put("key1", []byte("data")))
			_, ok := cache.Get("key1")
			require.True(t, ok)
		})
	}
}
