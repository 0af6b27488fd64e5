package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/metrics"
)

// TTLCache is a size and age bounded LRU. Concurrent misses on the same key may
// both compute; the last writer wins.
type TTLCache[K comparable, V any] struct {
	name string
	lru  *expirable.LRU[K, V]
}

func New[K comparable, V any](name string, size int, ttl time.Duration) *TTLCache[K, V] {
	if size <= 0 {
		size = 1
	}
	return &TTLCache[K, V]{
		name: name,
		lru:  expirable.NewLRU[K, V](size, nil, ttl),
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
	} else {
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
	}
	return v, ok
}

func (c *TTLCache[K, V]) Add(key K, value V) {
	c.lru.Add(key, value)
}

func (c *TTLCache[K, V]) Remove(key K) {
	c.lru.Remove(key)
}

func (c *TTLCache[K, V]) Purge() {
	c.lru.Purge()
}

func (c *TTLCache[K, V]) Len() int {
	return c.lru.Len()
}

// GetOrCompute returns the cached value or stores the result of fn. Errors are not cached.
func (c *TTLCache[K, V]) GetOrCompute(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		logutil.GetLogger(ctx).Debug("cache hit", zap.String("cache", c.name))
		return v, nil
	}
	v, err := fn(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, v)
	return v, nil
}
