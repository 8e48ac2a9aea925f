package traveltime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	"github.com/couchcryptid/seisdb-acquire/internal/observability"
)

// CachedTravelTimer wraps a TravelTimer with an in-memory LRU cache.
type CachedTravelTimer struct {
	inner   domain.TravelTimer
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedTravelTimer creates a cache decorator around a travel time source.
func NewCachedTravelTimer(inner domain.TravelTimer, maxEntries int, metrics *observability.Metrics) *CachedTravelTimer {
	return &CachedTravelTimer{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedTravelTimer) TravelTimes(ctx context.Context, q domain.TravelTimeQuery) ([]float64, error) {
	key := cacheKey(q)
	if times, ok := c.cache.get(key); ok {
		c.count("hit")
		return times, nil
	}
	c.count("miss")
	times, err := c.inner.TravelTimes(ctx, q)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, times)
	return times, nil
}

func (c *CachedTravelTimer) count(result string) {
	if c.metrics != nil {
		c.metrics.TravelTimeCache.WithLabelValues(result).Inc()
	}
}

func cacheKey(q domain.TravelTimeQuery) string {
	return fmt.Sprintf("%s|%.3f|%.4f|%s", q.Model, q.Depth, q.Distance, strings.Join(q.Phases, ","))
}

// lruCache is a simple thread-safe LRU cache of arrival times.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []float64
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return append([]float64(nil), e.value...), true
}

func (c *lruCache) put(key string, value []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value = append([]float64(nil), value...)
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
