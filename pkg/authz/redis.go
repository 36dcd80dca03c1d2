package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const searchKeyPrefix = "authz:search:"

// RedisSearchCache shares authorization search results across replicas so a
// cold replica does not recompute joins its peers already ran.
type RedisSearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSearchCache creates a shared search cache with the given TTL.
func NewRedisSearchCache(client *redis.Client, ttl time.Duration) *RedisSearchCache {
	return &RedisSearchCache{client: client, ttl: ttl}
}

// Get returns the cached records for a search key. Any Redis or decode
// failure reads as a miss; the caller falls through to the join.
func (c *RedisSearchCache) Get(ctx context.Context, key string) ([]AuthorizationRecord, bool) {
	data, err := c.client.Get(ctx, searchKeyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	var records []AuthorizationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false
	}

	return records, true
}

// Set stores the records for a search key.
func (c *RedisSearchCache) Set(ctx context.Context, key string, records []AuthorizationRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode authorization records: %w", err)
	}

	if err := c.client.Set(ctx, searchKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache authorization records: %w", err)
	}

	return nil
}

// Purge deletes every cached search result.
func (c *RedisSearchCache) Purge(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, searchKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cached search %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached searches: %w", err)
	}
	return nil
}
