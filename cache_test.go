package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContentCacheSetGet(t *testing.T) {
	cache := NewContentCache(time.Minute)

	_, ok := cache.Get("https://example.com")
	assert.False(t, ok)

	cache.Set("https://example.com", "page text")
	content, ok := cache.Get("https://example.com")
	assert.True(t, ok)
	assert.Equal(t, "page text", content)
	assert.Equal(t, 1, cache.Len())
}

func TestContentCacheExpiry(t *testing.T) {
	cache := NewContentCache(10 * time.Millisecond)
	cache.Set("https://example.com", "page text")

	time.Sleep(25 * time.Millisecond)

	_, ok := cache.Get("https://example.com")
	assert.False(t, ok)
}

func TestContentCacheOverwriteResetsTTL(t *testing.T) {
	cache := NewContentCache(time.Minute)
	cache.Set("https://example.com", "old")
	cache.Set("https://example.com", "new")

	content, ok := cache.Get("https://example.com")
	assert.True(t, ok)
	assert.Equal(t, "new", content)
	assert.Equal(t, 1, cache.Len())
}

func TestContentCacheClear(t *testing.T) {
	cache := NewContentCache(time.Minute)
	cache.Set("https://a.example.com", "a")
	cache.Set("https://b.example.com", "b")

	cache.Clear()

	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Get("https://a.example.com")
	assert.False(t, ok)
}
