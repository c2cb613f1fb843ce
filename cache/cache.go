// Package cache wraps an in-memory LRU cache for API lookup results, so
// repeated tracks in a playlist do not hammer the upstream services.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
)

var (
	DefaultSearchTTL = 1 * time.Hour
	DefaultLookupTTL = 24 * time.Hour
)

type Cache[T any] struct {
	c   *ccache.Cache[T]
	mux sync.Mutex
}

func New[T any](maxSize int64) *Cache[T] {
	return &Cache[T]{
		c: ccache.New(
			ccache.Configure[T]().
				MaxSize(maxSize).
				GetsPerPromote(3).
				PercentToPrune(1),
		),
		mux: sync.Mutex{},
	}
}

// Fetch returns the cached value for k, calling fetch to fill a miss. The
// lock serializes fillers so concurrent misses of the same key do not fan out
// into duplicate upstream calls.
func (c *Cache[T]) Fetch(k string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		var zero T
		return zero, fmt.Errorf("failed to fetch %q: %w", k, err)
	}

	return v.Value(), nil
}

func (c *Cache[T]) Set(k string, v T, ttl time.Duration) {
	c.c.Set(k, v, ttl)
}
