package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/online-compiler-go/internal/ratelimit"
)

// incrementScript adds one to a window counter and returns {count, pttl}.
// KEYS[1] = counter key
// ARGV[1] = window in milliseconds
//
// Only the first increment of a window sets the expiry. A key that lost its TTL
// is given a fresh one so it cannot live forever.
var incrementScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end

return {current, ttl}
`)

// RateLimitRedisStore is a Redis implementation of ratelimit.Store.
type RateLimitRedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client redis.UniversalClient) *RateLimitRedisStore {
	return &RateLimitRedisStore{
		client: client,
		prefix: "rl:",
		now:    time.Now,
	}
}

// Load preloads the increment script into the server's script cache.
func (s *RateLimitRedisStore) Load(ctx context.Context) error {
	if err := incrementScript.Load(ctx, s.client).Err(); err != nil {
		return fmt.Errorf("load increment script: %w", err)
	}

	return nil
}

func (s *RateLimitRedisStore) Increment(ctx context.Context, key string, window time.Duration) (ratelimit.Counter, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return ratelimit.Counter{}, fmt.Errorf("redis increment %q: %w", key, err)
	}

	if len(res) != 2 {
		return ratelimit.Counter{}, fmt.Errorf("redis increment %q: unexpected reply length %d", key, len(res))
	}

	return ratelimit.Counter{
		Count:     res[0],
		ExpiresAt: s.now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// Ping checks connectivity to the Redis server.
func (s *RateLimitRedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RateLimitRedisStore) Close() error {
	return s.client.Close()
}
