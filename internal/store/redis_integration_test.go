//go:build integration

package store_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/online-compiler-go/internal/snippet"
	"github.com/serroba/online-compiler-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func getRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: getRedisAddr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	return client
}

func TestRateLimitRedisStoreIntegration(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	s := store.NewRateLimitRedisStore(client)

	require.NoError(t, s.Load(ctx))

	t.Run("first increment sets the window", func(t *testing.T) {
		key := "it:" + uuid.NewString()
		defer client.Del(ctx, "rl:"+key)

		c, err := s.Increment(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Count)
		assert.WithinDuration(t, time.Now().Add(time.Minute), c.ExpiresAt, 2*time.Second)

		ttl := client.PTTL(ctx, "rl:"+key).Val()
		assert.Greater(t, ttl, 55*time.Second)
	})

	t.Run("later increments keep the ttl", func(t *testing.T) {
		key := "it:" + uuid.NewString()
		defer client.Del(ctx, "rl:"+key)

		first, err := s.Increment(ctx, key, 2*time.Second)
		require.NoError(t, err)

		time.Sleep(500 * time.Millisecond)

		second, err := s.Increment(ctx, key, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(2), second.Count)
		assert.WithinDuration(t, first.ExpiresAt, second.ExpiresAt, 100*time.Millisecond)
	})

	t.Run("window rolls over", func(t *testing.T) {
		key := "it:" + uuid.NewString()
		defer client.Del(ctx, "rl:"+key)

		_, _ = s.Increment(ctx, key, 200*time.Millisecond)
		_, _ = s.Increment(ctx, key, 200*time.Millisecond)

		time.Sleep(300 * time.Millisecond)

		c, err := s.Increment(ctx, key, 200*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Count)
	})

	t.Run("concurrent increments are atomic", func(t *testing.T) {
		key := "it:" + uuid.NewString()
		defer client.Del(ctx, "rl:"+key)

		var (
			wg       sync.WaitGroup
			admitted atomic.Int64
		)

		for range 60 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				c, err := s.Increment(ctx, key, time.Minute)
				if err == nil && c.Count <= 50 {
					admitted.Add(1)
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, int64(50), admitted.Load())
	})
}

func TestFailoverRateLimitStoreIntegration(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()

	state := store.NewConnectivity(zap.NewNop(), nil)
	client.AddHook(state.Hook())

	s := store.NewFailoverRateLimitStore(
		store.NewRateLimitRedisStore(client),
		store.NewRateLimitMemoryStore(),
		state,
		store.DefaultFailoverConfig(),
		nil,
		zap.NewNop(),
	)
	s.Start(ctx)

	assert.True(t, state.Connected())

	key := "it:" + uuid.NewString()
	defer client.Del(ctx, "rl:"+key)

	c, err := s.Increment(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
	assert.Equal(t, "redis", s.Status().Store)

	require.NoError(t, s.Shutdown())
	assert.Equal(t, "memory", s.Status().Store)
}

func TestOTPRedisStoreIntegration(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	s := store.NewOTPRedisStore(client)

	email := uuid.NewString() + "@example.com"
	defer client.Del(ctx, "otp:"+email)

	require.NoError(t, s.Save(ctx, email, "111111", time.Minute))
	require.NoError(t, s.Save(ctx, email, "222222", time.Minute))

	ok, err := s.Consume(ctx, email, "111111")
	require.NoError(t, err)
	assert.False(t, ok, "the replaced code no longer works")

	ok, err = s.Consume(ctx, email, "222222")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, email, "222222")
	require.NoError(t, err)
	assert.False(t, ok, "codes are single use")
}

func TestRedisCacheRepositoryIntegration(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()

	backing := store.NewMemoryStore().Snippets()
	repo := store.NewRedisCacheRepository(backing, client, time.Minute)

	s := &snippet.Snippet{
		ID:        uuid.NewString(),
		UserID:    "u1",
		Language:  "go",
		Code:      "package main",
		Title:     "cached",
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	defer client.Del(ctx, "snippet:"+s.ID)

	require.NoError(t, repo.Create(ctx, s))

	t.Run("serves reads from cache", func(t *testing.T) {
		got, err := repo.Get(ctx, "u1", s.ID)
		require.NoError(t, err)
		assert.Equal(t, "cached", got.Title)
		assert.True(t, baseTime.Equal(got.CreatedAt))
	})

	t.Run("cache honours ownership", func(t *testing.T) {
		_, err := repo.Get(ctx, "u2", s.ID)
		assert.ErrorIs(t, err, snippet.ErrNotFound)
	})

	t.Run("delete evicts", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "u1", s.ID))

		assert.Zero(t, client.Exists(ctx, "snippet:"+s.ID).Val())

		_, err := repo.Get(ctx, "u1", s.ID)
		assert.ErrorIs(t, err, snippet.ErrNotFound)
	})
}
