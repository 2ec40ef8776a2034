package firms

import (
	"context"
	"fmt"
	"sync"

	"github.com/hazewatch/fire-district-etl/internal/domain"
	"github.com/hazewatch/fire-district-etl/internal/pipeline"
)

// CachedFetcher wraps a RawFetcher with an in-memory LRU cache keyed by
// sensor and date range, so repeated runs over the same window skip the
// network.
type CachedFetcher struct {
	inner pipeline.RawFetcher
	cache *lruCache
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner pipeline.RawFetcher, maxEntries int) *CachedFetcher {
	return &CachedFetcher{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedFetcher) FetchRaw(ctx context.Context, sensor domain.Sensor, dr domain.DateRange) ([]domain.RawRecord, error) {
	key := fmt.Sprintf("%s|%s|%s", sensor, dr.Start.Format("2006-01-02"), dr.End.Format("2006-01-02"))
	if records, ok := c.cache.get(key); ok {
		return records, nil
	}
	records, err := c.inner.FetchRaw(ctx, sensor, dr)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient empty responses can be retried.
	if len(records) > 0 {
		c.cache.put(key, records)
	}
	return records, nil
}

// lruCache is a simple thread-safe LRU cache for raw record batches.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.RawRecord
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.RawRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.RawRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

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

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
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

func (c *lruCache) remove(e *entry) {
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
	c.remove(c.tail)
}
