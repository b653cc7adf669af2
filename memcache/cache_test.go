package memcache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type cacheFactory struct {
	name    string
	newFunc func(t *testing.T, maxCost int64, maxCount int) Cache[string]
}

var cacheFactories = []cacheFactory{
	{
		name: "LRU",
		newFunc: func(t *testing.T, maxCost int64, maxCount int) Cache[string] {
			return NewLRU[string](maxCost, maxCount)
		},
	},
	{
		name: "Ristretto",
		newFunc: func(t *testing.T, maxCost int64, maxCount int) Cache[string] {
			if maxCost == 0 && maxCount == 0 {
				// Ristretto cannot run unbounded; give it headroom far
				// beyond anything the contract tests insert.
				maxCount = 1 << 20
			}
			cache, err := NewRistretto[string](maxCost, maxCount)
			require.NoError(t, err)
			t.Cleanup(cache.Close)
			return cache
		},
	},
}

func TestCache_SetGet(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t, 0, 0)

			_, ok := cache.Get("missing")
			require.False(t, ok)

			cache.SetWithCost("k1", "v1", 10)
			got, ok := cache.Get("k1")
			require.True(t, ok)
			require.Equal(t, "v1", got)

			cache.SetWithCost("k1", "v2", 5)
			got, ok = cache.Get("k1")
			require.True(t, ok)
			require.Equal(t, "v2", got)
		})
	}
}

func TestCache_RemoveAndRemoveAll(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t, 0, 0)

			cache.Set("k1", "v1")
			cache.Set("k2", "v2")

			cache.Remove("k1")
			_, ok := cache.Get("k1")
			require.False(t, ok)
			_, ok = cache.Get("k2")
			require.True(t, ok)

			cache.RemoveAll()
			_, ok = cache.Get("k2")
			require.False(t, ok)

			// Purging an empty cache is a no-op.
			cache.RemoveAll()
		})
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	for _, factory := range cacheFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := factory.newFunc(t, 0, 0)

			var wg sync.WaitGroup
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						key := fmt.Sprintf("key-%d-%d", g, i%10)
						cache.SetWithCost(key, "value", 1)
						cache.Get(key)
						if i%25 == 0 {
							cache.Remove(key)
						}
					}
				}(g)
			}
			wg.Wait()
		})
	}
}
