// Package memory is an in-process local cache, used when no persistent
// backend is configured and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Cache is a mutex-guarded map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Get returns the value stored under key.
func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.entries[key]
	return value, ok, nil
}

// Set stores value under key.
func (c *Cache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = value
	return nil
}

// Delete removes key; missing keys are ignored.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Keys returns the sorted keys starting with prefix.
func (c *Cache) Keys(_ context.Context, prefix string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return keys, nil
}
