// Package cache provides a bounded generic cache with per-entry expiry.
package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultSize = 1024

type item[V any] struct {
	value     V
	expiresAt time.Time
}

func (i item[V]) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	size int
	now  func() time.Time
}

// WithSize bounds the number of entries; least recently used entries are
// evicted first.
func WithSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.size = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Cache is a concurrency-safe LRU with TTL entries and a background janitor.
type Cache[K comparable, V any] struct {
	lru       *lru.Cache[K, item[V]]
	now       func() time.Time
	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a cache whose janitor sweeps expired entries every
// cleanupInterval. A zero interval disables the janitor.
func New[K comparable, V any](cleanupInterval time.Duration, opts ...Option) *Cache[K, V] {
	o := &options{size: defaultSize, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	// lru.New only fails on a non-positive size, which WithSize prevents.
	l, _ := lru.New[K, item[V]](o.size)

	c := &Cache[K, V]{
		lru:  l,
		now:  o.now,
		stop: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}

	return c
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V

	it, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if it.expired(c.now()) {
		c.lru.Remove(key)
		return zero, false
	}
	return it.value, true
}

// Set stores value under key. A zero ttl never expires.
func (c *Cache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	it := item[V]{value: value}
	if ttl > 0 {
		it.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, it)
}

// Delete removes key.
func (c *Cache[K, V]) Delete(_ context.Context, key K) {
	c.lru.Remove(key)
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Close stops the janitor.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache[K, V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache[K, V]) sweep() {
	now := c.now()
	for _, key := range c.lru.Keys() {
		if it, ok := c.lru.Peek(key); ok && it.expired(now) {
			c.lru.Remove(key)
		}
	}
}
