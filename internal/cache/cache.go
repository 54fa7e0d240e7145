// Package cache provides the render cache consulted before invoking a
// plugin's generation: plugins that expose a cache key and TTL get their
// frames reused instead of re-rendered.
package cache

import (
	"image"
	"sync"
	"time"
)

// Cache stores rendered frames keyed by a plugin-supplied cache key.
type Cache interface {
	// Get retrieves a frame. Returns false if absent or expired.
	Get(key string) (image.Image, bool)
	// Set stores a frame with the given TTL. Non-positive TTLs are ignored.
	Set(key string, img image.Image, ttl time.Duration)
	// Delete removes a frame.
	Delete(key string)
	// Close releases backend resources.
	Close() error
}

type entry struct {
	img        image.Image
	expiration time.Time
}

func (e *entry) expired() bool { return time.Now().After(e.expiration) }

// memoryCache is the in-process implementation with periodic cleanup.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stop    chan struct{}
	once    sync.Once
}

// NewMemory creates an in-memory frame cache. Expired entries are swept every
// cleanupInterval; a non-positive interval disables the sweeper.
func NewMemory(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.sweep(cleanupInterval)
	}
	return c
}

func (c *memoryCache) Get(key string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.expired() {
		return nil, false
	}
	return e.img, true
}

func (c *memoryCache) Set(key string, img image.Image, ttl time.Duration) {
	if ttl <= 0 || key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{img: img, expiration: time.Now().Add(ttl)}
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *memoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, e := range c.entries {
				if e.expired() {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// noop is a cache that never stores anything.
type noop struct{}

// NewNoop returns a cache that disables caching entirely.
func NewNoop() Cache { return noop{} }

func (noop) Get(string) (image.Image, bool)         { return nil, false }
func (noop) Set(string, image.Image, time.Duration) {}
func (noop) Delete(string)                          {}
func (noop) Close() error                           { return nil }
