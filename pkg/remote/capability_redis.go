package remote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCapabilityCache backs CapabilityCache with Redis so a probe result
// survives a process restart. Keys expire after ttl; an expired or missing
// key just means the next WebDAV request re-probes, same as a cold
// LocalCapabilityCache.
type RedisCapabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCapabilityCache(client *redis.Client, ttl time.Duration) *RedisCapabilityCache {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisCapabilityCache{client: client, ttl: ttl}
}

func capabilityKey(sourceID string) string {
	return "ocrflow:webdav:capability:" + sourceID
}

// Get looks up the cached Capability. Any Redis error (including a miss) is
// treated as "not cached" — callers re-probe rather than fail the sync.
func (c *RedisCapabilityCache) Get(sourceID string) (Capability, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, capabilityKey(sourceID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return Capability{}, false
		}
		return Capability{}, false
	}
	var capability Capability
	if err := json.Unmarshal(raw, &capability); err != nil {
		return Capability{}, false
	}
	return capability, true
}

func (c *RedisCapabilityCache) Set(sourceID string, capability Capability) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(capability)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, capabilityKey(sourceID), raw, c.ttl).Err()
}
