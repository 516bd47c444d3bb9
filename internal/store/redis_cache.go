package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/online-compiler-go/internal/snippet"
)

// RedisCacheRepository wraps a snippet.Repository with Redis caching for single reads.
type RedisCacheRepository struct {
	snippet.Repository

	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCacheRepository creates a new Redis-cached snippet repository decorator.
func NewRedisCacheRepository(
	store snippet.Repository, client redis.UniversalClient, ttl time.Duration,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		Repository: store,
		client:     client,
		prefix:     "snippet:",
		ttl:        ttl,
	}
}

// Create stores a snippet in the underlying store and updates the cache.
func (r *RedisCacheRepository) Create(ctx context.Context, s *snippet.Snippet) error {
	if err := r.Repository.Create(ctx, s); err != nil {
		return err
	}

	// Write-through: update cache after successful save
	r.cacheSnippet(ctx, s)

	return nil
}

// Get retrieves a snippet, checking cache first.
func (r *RedisCacheRepository) Get(ctx context.Context, userID, id string) (*snippet.Snippet, error) {
	if s, err := r.getFromCache(ctx, id); err == nil {
		if s.UserID != userID {
			return nil, snippet.ErrNotFound
		}

		return s, nil
	}

	s, err := r.Repository.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	r.cacheSnippet(ctx, s)

	return s, nil
}

func (r *RedisCacheRepository) Update(
	ctx context.Context, userID, id string, patch snippet.Patch, at time.Time,
) (*snippet.Snippet, error) {
	s, err := r.Repository.Update(ctx, userID, id, patch, at)
	if err != nil {
		return nil, err
	}

	r.cacheSnippet(ctx, s)

	return s, nil
}

func (r *RedisCacheRepository) Delete(ctx context.Context, userID, id string) error {
	if err := r.Repository.Delete(ctx, userID, id); err != nil {
		return err
	}

	r.evict(ctx, id)

	return nil
}

func (r *RedisCacheRepository) DeleteMany(ctx context.Context, userID string, ids []string) (int64, error) {
	n, err := r.Repository.DeleteMany(ctx, userID, ids)
	if err != nil {
		return 0, err
	}

	r.evict(ctx, ids...)

	return n, nil
}

func (r *RedisCacheRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	owned, err := r.Repository.All(ctx, userID)
	if err != nil {
		return 0, err
	}

	n, err := r.Repository.DeleteAll(ctx, userID)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(owned))
	for _, s := range owned {
		ids = append(ids, s.ID)
	}

	r.evict(ctx, ids...)

	return n, nil
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context, id string) (*snippet.Snippet, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+id).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, snippet.ErrNotFound
	}

	return &snippet.Snippet{
		ID:        result["id"],
		UserID:    result["user_id"],
		Language:  result["language"],
		Code:      result["code"],
		Title:     result["title"],
		CreatedAt: parseNanos(result["created_at"]),
		UpdatedAt: parseNanos(result["updated_at"]),
	}, nil
}

func (r *RedisCacheRepository) cacheSnippet(ctx context.Context, s *snippet.Snippet) {
	pipe := r.client.Pipeline()
	key := r.prefix + s.ID

	pipe.HSet(ctx, key, map[string]interface{}{
		"id":         s.ID,
		"user_id":    s.UserID,
		"language":   s.Language,
		"code":       s.Code,
		"title":      s.Title,
		"created_at": s.CreatedAt.UnixNano(),
		"updated_at": s.UpdatedAt.UnixNano(),
	})

	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	_, _ = pipe.Exec(ctx)
}

func (r *RedisCacheRepository) evict(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.prefix+id)
	}

	_ = r.client.Del(ctx, keys...).Err()
}

func parseNanos(s string) time.Time {
	nanos, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(0, nanos).UTC()
}

// Shutdown is a no-op for RedisCacheRepository (client managed externally).
func (r *RedisCacheRepository) Shutdown() error {
	return nil
}

// Compile-time check.
var _ snippet.Repository = (*RedisCacheRepository)(nil)
