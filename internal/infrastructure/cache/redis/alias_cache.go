// Package redis implements the ingredient alias cache on a Redis key-value
// store. Entries are JSON alias records written by the query expander.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cosyhq/regcheck/internal/observability/metrics"
)

type AliasCache struct {
	client  *redis.Client
	service string
	metrics *metrics.HTTPServerMetrics
}

func NewAliasCache(addr, password string, db int) *AliasCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &AliasCache{client: client}
}

// WithMetrics enables hit/miss accounting. Safe to skip in tests.
func (c *AliasCache) WithMetrics(service string, m *metrics.HTTPServerMetrics) *AliasCache {
	c.service = service
	c.metrics = m
	return c
}

func (c *AliasCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *AliasCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		c.recordLookup(false)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	c.recordLookup(true)
	return value, true, nil
}

func (c *AliasCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (c *AliasCache) Close() error {
	return c.client.Close()
}

func (c *AliasCache) recordLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordAliasLookup(c.service, hit)
	}
}
