package cache

import (
	"sync"
	"time"

	"github.com/pubkeyapp/realms-vsr-holders/pkg/clock"
)

// Entry is a cached value with the time it was stored
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// Cache provides thread-safe caching with TTL support
type Cache[V any] struct {
	data   map[string]Entry[V]
	mutex  sync.RWMutex
	ttl    time.Duration
	clock  clock.Clock
	stopCh chan struct{}
	once   sync.Once
}

// New creates a Cache whose entries expire after ttl. Expired entries are
// swept every cleanupInterval; a non-positive interval falls back to ttl.
func New[V any](ttl, cleanupInterval time.Duration) *Cache[V] {
	return NewWithClock[V](ttl, cleanupInterval, clock.SystemClock{})
}

// NewWithClock is New with an explicit time source
func NewWithClock[V any](ttl, cleanupInterval time.Duration, clk clock.Clock) *Cache[V] {
	c := &Cache[V]{
		data:   make(map[string]Entry[V]),
		ttl:    ttl,
		clock:  clk,
		stopCh: make(chan struct{}),
	}

	if cleanupInterval <= 0 {
		cleanupInterval = ttl
	}
	if cleanupInterval > 0 {
		go c.cleanup(cleanupInterval)
	}

	return c
}

// Get retrieves a value from the cache if it exists and hasn't expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.data[key]
	if !exists || c.expired(entry, c.clock.Now()) {
		var zero V
		return zero, false
	}

	return entry.Value, true
}

// Set stores a value in the cache with the current timestamp
func (c *Cache[V]) Set(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = Entry[V]{Value: value, StoredAt: c.clock.Now()}
}

// Delete removes a key from the cache
func (c *Cache[V]) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
}

// Clear removes all entries from the cache
func (c *Cache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]Entry[V])
}

// Size returns the number of entries in the cache, expired or not
func (c *Cache[V]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.data)
}

// TTL returns the configured entry lifetime
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

func (c *Cache[V]) expired(entry Entry[V], now time.Time) bool {
	return now.Sub(entry.StoredAt) > c.ttl
}

func (c *Cache[V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RemoveExpired()
		case <-c.stopCh:
			return
		}
	}
}

// RemoveExpired drops every expired entry and reports how many were removed
func (c *Cache[V]) RemoveExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.clock.Now()
	removed := 0
	for key, entry := range c.data {
		if c.expired(entry, now) {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (c *Cache[V]) Stop() {
	c.once.Do(func() { close(c.stopCh) })
}
