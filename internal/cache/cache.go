// Package cache is a small process-local TTL cache used to read through to
// the store within a session. TTLs are short on purpose: a user seeing their
// own latest balance matters more than hit rate.
package cache

import (
	"sync"
	"time"
)

const (
	DefaultTTL  = 5 * time.Minute
	UserTTL     = 60 * time.Second
	TaskListTTL = 30 * time.Second
)

type Clock func() time.Time

type entry struct {
	value  interface{}
	expiry time.Time
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     Clock
}

func New(clock Clock) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		entries: make(map[string]entry),
		now:     clock,
	}
}

// Set stores value under key for ttl, overwriting any existing entry, and
// opportunistically sweeps expired entries.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiry: now.Add(ttl)}
	for k, e := range c.entries {
		if now.After(e.expiry) {
			delete(c.entries, k)
		}
	}
}

// Get returns the cached value, or nil if absent or expired. Expired entries
// are evicted on access.
func (c *Cache) Get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().After(e.expiry) {
		delete(c.entries, key)
		return nil
	}
	return e.value
}

// Delete invalidates key. Call it right after any mutation of the cached
// record so a stale read is never served after the client's own write.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}
