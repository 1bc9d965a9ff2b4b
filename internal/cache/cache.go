// Package cache provides a small TTL cache for rendered API responses.
// Expiry is lazy (checked on read) and the cache is size-bounded by evicting
// the oldest entries on insert, so there is no background sweeper to manage.
package cache

import (
	"sort"
	"sync"
	"time"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 1024
)

type entry struct {
	value    any
	storedAt time.Time
}

// TTLCache is safe for concurrent use.
type TTLCache struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a cache with the given TTL and size bound. Non-positive
// values fall back to the defaults.
func New(ttl time.Duration, maxSize int) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &TTLCache{
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Get returns the live value for key. Expired entries are removed on access.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, evicting the oldest entries if the cache
// would exceed its size bound.
func (c *TTLCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, storedAt: c.now()}
	c.prune()
}

// Purge drops every entry. Used when the underlying dataset changes.
func (c *TTLCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len reports the number of stored entries, including not-yet-collected
// expired ones.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache) prune() {
	if len(c.entries) <= c.maxSize {
		return
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, storedAt: e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	for _, a := range all[:len(all)-c.maxSize] {
		delete(c.entries, a.key)
	}
}
