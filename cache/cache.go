// Package cache stores rendered HTML fragments with a time to live.
package cache

import (
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const shardCount = 16

type entry struct {
	value   string
	expires time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Cache is a sharded in-memory string cache. Expired entries are dropped
// lazily when read. A Cache is safe for concurrent use.
type Cache struct {
	shards [shardCount]*shard
	now    func() time.Time
	group  singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used to compute and check expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{now: time.Now}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]entry)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) shard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// Get returns the value stored under key if it has not expired.
func (c *Cache) Get(key string) (string, bool) {
	s := c.shard(key)
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expires) {
		s.mu.Lock()
		// Another writer may have refreshed the entry meanwhile.
		if cur, ok := s.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl removes the key.
func (c *Cache) Set(key, value string, ttl time.Duration) {
	if ttl <= 0 {
		c.Delete(key)
		return
	}
	s := c.shard(key)
	s.mu.Lock()
	s.entries[key] = entry{value: value, expires: c.now().Add(ttl)}
	s.mu.Unlock()
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	s := c.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len returns the number of stored entries, including expired entries that
// have not been read since they expired.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

type result struct {
	value  string
	stored bool
}

// Do returns the value for key, calling fn on a miss. Concurrent misses for
// the same key share a single call of fn. fn reports whether its value may be
// stored; Do stores it for ttl in that case. stored is true when the returned
// value came from the cache or was stored by this fill.
func (c *Cache) Do(key string, ttl time.Duration, fn func() (string, bool, error)) (value string, stored bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return result{value: v, stored: true}, nil
		}
		v, store, err := fn()
		if err != nil {
			return nil, err
		}
		if store {
			c.Set(key, v, ttl)
		}
		return result{value: v, stored: store}, nil
	})
	if err != nil {
		return "", false, err
	}
	r := res.(result)
	return r.value, r.stored, nil
}
