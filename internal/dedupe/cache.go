// Package dedupe remembers recently dispatched change events so Kafka
// redeliveries of the same event do not notify twice.
package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	key string
	ts  time.Time
}

// Cache keeps a bounded set of recently handled event ids.
type Cache struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	return newCache(capacity, ttl, time.Now)
}

// NewCacheWithClock is NewCache with an injected clock.
func NewCacheWithClock(capacity int, ttl time.Duration, now func() time.Time) *Cache {
	return newCache(capacity, ttl, now)
}

func newCache(capacity int, ttl time.Duration, now func() time.Time) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:    make(map[string]time.Time, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      now,
	}
}

// IsSeen returns true when the event id was marked inside the ttl window.
// It does not mark the id; call MarkSeen once the event has been handled.
func (c *Cache) IsSeen(key string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.items[key]; ok {
		return now.Sub(ts) <= c.ttl
	}
	return false
}

// MarkSeen records that an event id has been handled.
func (c *Cache) MarkSeen(key string) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = now
	c.order = append(c.order, entry{key: key, ts: now})
	c.compact(now)
}

// Len returns the number of tracked ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		// A re-marked key has a newer entry further down the queue.
		if ts, ok := c.items[oldest.key]; ok && ts.Equal(oldest.ts) {
			delete(c.items, oldest.key)
		}
	}
}
