package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cashback_platform/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

const rateCacheKey = "cashback:rates:current"

// setRatesScript writes the entry unless the stored one carries a newer version.
var setRatesScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'config', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisRateCache keeps the active rate row in Redis so fee quotes skip Postgres.
// Entries are versioned by UpdatedAt, so a reader that loaded an older row
// cannot overwrite a newer one.
type RedisRateCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisRateCache(client *redis.Client, ttl time.Duration) *RedisRateCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisRateCache{client: client, key: rateCacheKey, ttl: ttl}
}

func (c *RedisRateCache) Get(ctx context.Context) (*domain.RateConfig, error) {
	raw, err := c.client.HGet(ctx, c.key, "config").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg domain.RateConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		// a corrupt entry counts as a miss
		return nil, nil
	}
	return &cfg, nil
}

func (c *RedisRateCache) Set(ctx context.Context, cfg domain.RateConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return setRatesScript.Run(ctx, c.client, []string{c.key},
		cfg.UpdatedAt.UnixMicro(), raw, c.ttl.Milliseconds()).Err()
}

func (c *RedisRateCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
