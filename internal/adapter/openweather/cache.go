package openweather

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/couchcryptid/yard-weather-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CachedGeocoder wraps a Geocoder with a bounded LRU cache whose entries
// expire after a TTL. Errors are never cached.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *ttlCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder. Expiry is
// measured on clock; nil means the real clock.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedGeocoder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedGeocoder{
		inner:   inner,
		cache:   newTTLCache(maxEntries, ttl, clock),
		metrics: metrics,
	}
}

// Geocode returns the cached coordinates for location, consulting the inner
// geocoder on a miss. Keys are case- and whitespace-insensitive.
func (c *CachedGeocoder) Geocode(ctx context.Context, location string) (domain.Coordinates, error) {
	key := strings.ToLower(strings.Join(strings.Fields(location), " "))
	if coords, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return coords, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	coords, err := c.inner.Geocode(ctx, location)
	if err != nil {
		return coords, err
	}
	c.cache.put(key, coords)
	return coords, nil
}

// ttlCache is a thread-safe LRU of coordinates with per-entry expiry.
type ttlCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock

	mu      sync.Mutex
	order   *list.List // front is most recently used
	entries map[string]*list.Element
}

type cacheEntry struct {
	key       string
	coords    domain.Coordinates
	expiresAt time.Time
}

func newTTLCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *ttlCache {
	return &ttlCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *ttlCache) get(key string) (domain.Coordinates, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.Coordinates{}, false
	}
	e := el.Value.(*cacheEntry)
	if !c.clock.Now().Before(e.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return domain.Coordinates{}, false
	}
	c.order.MoveToFront(el)
	return e.coords, true
}

func (c *ttlCache) put(key string, coords domain.Coordinates) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry)
		e.coords = coords
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, coords: coords, expiresAt: expiresAt})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *ttlCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
