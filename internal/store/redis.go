package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript deletes an OTP only when the stored code matches.
// KEYS[1] = otp key
// ARGV[1] = submitted code
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// OTPRedisStore is a Redis implementation of auth.OTPStore.
type OTPRedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewOTPRedisStore creates a new Redis-backed OTP store.
func NewOTPRedisStore(client redis.UniversalClient) *OTPRedisStore {
	return &OTPRedisStore{
		client: client,
		prefix: "otp:",
	}
}

func (r *OTPRedisStore) Save(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+email, code, ttl).Err(); err != nil {
		return fmt.Errorf("redis save otp: %w", err)
	}

	return nil
}

func (r *OTPRedisStore) Consume(ctx context.Context, email, code string) (bool, error) {
	if code == "" {
		return false, nil
	}

	n, err := consumeScript.Run(ctx, r.client, []string{r.prefix + email}, code).Int64()
	if err != nil {
		return false, fmt.Errorf("redis consume otp: %w", err)
	}

	return n == 1, nil
}
