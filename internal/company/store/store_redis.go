package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sitegen/internal/company/models"
	"sitegen/pkg/domain"
	"sitegen/pkg/platform/sentinel"
)

const redisKeyPrefix = "sitegen:company:"

type redisEnvelope struct {
	Record      *models.CompanyRecord `json:"record"`
	RetrievedAt time.Time             `json:"retrieved_at"`
}

// RedisCache stores snapshots as JSON envelopes so several instances share one
// cache. Keys only expire when a TTL is configured; freshness is still judged
// from retrieved_at.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

// WithKeyTTL makes Redis evict entries after ttl. Zero keeps them forever.
func WithKeyTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisCache) {
		c.ttl = ttl
	}
}

// NewRedisCache constructs a Redis-backed cache.
func NewRedisCache(client *redis.Client, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func redisKey(cnpj string) string {
	return redisKeyPrefix + cnpj
}

// Find returns the snapshot for cnpj. Undecodable payloads count as misses.
func (c *RedisCache) Find(ctx context.Context, cnpj domain.CNPJ) (*models.CacheEntry, error) {
	data, err := c.client.Get(ctx, redisKey(cnpj.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w: %w", cnpj, sentinel.ErrNotFound, err)
	}
	if env.Record.IsEmpty() {
		return nil, fmt.Errorf("decode cache entry %s: empty record: %w", cnpj, sentinel.ErrNotFound)
	}
	return &models.CacheEntry{
		CNPJ:        cnpj.String(),
		Record:      env.Record,
		RetrievedAt: env.RetrievedAt,
	}, nil
}

// Save overwrites the snapshot for entry.CNPJ.
func (c *RedisCache) Save(ctx context.Context, entry *models.CacheEntry) error {
	if err := validEntry(entry); err != nil {
		return err
	}
	data, err := json.Marshal(redisEnvelope{Record: entry.Record, RetrievedAt: entry.RetrievedAt})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(entry.CNPJ), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}
