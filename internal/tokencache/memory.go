// Package tokencache remembers the last observed version token of every
// store path so writers can skip a lookup round-trip.
package tokencache

import (
	"context"
	"sync"

	"momentshub/internal/hub"
)

// MemoryCache is an in-process hub.TokenCache.
// This implementation is safe for concurrent use.
type MemoryCache struct {
	mu     sync.RWMutex
	tokens map[string]string // path -> version
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tokens: make(map[string]string)}
}

func (c *MemoryCache) Lookup(_ context.Context, path string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.tokens[path]
	return v, ok, nil
}

func (c *MemoryCache) Remember(_ context.Context, path, version string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[path] = version
	return nil
}

func (c *MemoryCache) Forget(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, path)
	return nil
}

// Clear drops every entry.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.tokens)
	return nil
}

// Close is a no-op.
func (c *MemoryCache) Close() error { return nil }

var _ hub.TokenCache = (*MemoryCache)(nil)
