package main

import (
	"sync"
	"time"
)

type cacheEntry struct {
	content  string
	storedAt time.Time
}

// ContentCache is a thread-safe TTL cache for fetched page content, keyed by
// URL. Repeated fetch-url requests for the same page within the TTL are
// served from memory.
type ContentCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewContentCache creates a content cache with the specified TTL.
func NewContentCache(ttl time.Duration) *ContentCache {
	return &ContentCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached content for url and whether it was a hit.
func (c *ContentCache) Get(url string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[url]
	if !ok {
		return "", false
	}
	if time.Since(entry.storedAt) > c.ttl {
		return "", false
	}
	return entry.content, true
}

// Set stores content for url, resetting its TTL.
func (c *ContentCache) Set(url, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = cacheEntry{content: content, storedAt: time.Now()}
}

// Clear drops every cached entry.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of cached entries, expired or not.
func (c *ContentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
