// Package redis is a local cache backed by a Redis instance, for clients
// that share one device-local Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/liftplan/internal/observability"
)

const scanBatch = 100

// Cache stores values under a namespace prefix.
type Cache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// New creates a Redis-backed cache. Keys are stored as namespace+key and
// expire after ttl when ttl > 0.
func New(client *redis.Client, namespace string, ttl time.Duration) *Cache {
	return &Cache{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

// Get returns the value stored under key.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.namespace+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes key; missing keys are ignored.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.namespace+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys returns the sorted keys starting with prefix, without the namespace.
func (c *Cache) Keys(ctx context.Context, prefix string) ([]string, error) {
	logger := observability.FromContext(ctx)
	pattern := escapeGlob(c.namespace+prefix) + "*"

	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), c.namespace))
	}
	if err := iter.Err(); err != nil {
		logger.Error("redis scan failed", observability.Error(err))
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	sort.Strings(keys)
	logger.Debug("redis scan completed",
		observability.String("pattern", pattern),
		observability.Int("keys", len(keys)))

	return keys, nil
}

// escapeGlob quotes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
