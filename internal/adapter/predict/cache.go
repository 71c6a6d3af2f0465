package predict

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/observability"
)

// Sampler reads hover probabilities at a map location.
type Sampler interface {
	Sample(ctx context.Context, sel domain.Selection) (domain.Sample, error)
}

// CachedSampler wraps a Sampler with an in-memory LRU cache keyed on the
// grid-snapped selection. Stored forecasts do not change, so entries never
// expire; they are only evicted.
type CachedSampler struct {
	inner   Sampler
	cache   *lruCache[domain.Sample]
	metrics *observability.Metrics
}

// NewCachedSampler creates a cache decorator around a sampler.
func NewCachedSampler(inner Sampler, maxEntries int, metrics *observability.Metrics) *CachedSampler {
	return &CachedSampler{
		inner:   inner,
		cache:   newLRUCache[domain.Sample](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSampler) Sample(ctx context.Context, sel domain.Selection) (domain.Sample, error) {
	sel = sel.Snap()
	key := sampleKey(sel)
	if s, ok := c.cache.get(key); ok {
		c.metrics.SampleCache.WithLabelValues("hit").Inc()
		return s, nil
	}
	c.metrics.SampleCache.WithLabelValues("miss").Inc()

	s, err := c.inner.Sample(ctx, sel)
	if err != nil {
		return s, err
	}
	c.cache.put(key, s)
	return s, nil
}

func sampleKey(sel domain.Selection) string {
	day := sel.Date
	if t, err := sel.RunDate(); err == nil {
		day = t.Format("2006-01-02")
	}
	return fmt.Sprintf("%.2f,%.2f|%s|%s|f%02d", sel.Lat, sel.Lon, day, sel.Initialization, sel.ForecastHour)
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
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

func (c *lruCache[V]) remove(e *entry[V]) {
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

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
