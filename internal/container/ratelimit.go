package container

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/online-compiler-go/internal/metrics"
	"github.com/serroba/online-compiler-go/internal/ratelimit"
	"github.com/serroba/online-compiler-go/internal/store"
	"go.uber.org/zap"
)

const janitorInterval = time.Minute

// CounterStore is the rate limit store owned by the container.
type CounterStore interface {
	ratelimit.Store
	ratelimit.StatusReporter
	Shutdown() error
}

// RateLimitPackage provides the policy set, the counter store and the limiter.
// The counter store gets its own Redis connection so that its connectivity hook only
// sees rate limit traffic and closing it leaves the shared client alone.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*ratelimit.PolicySet, error) {
		opts := do.MustInvoke[*Options](i)

		overrides, err := ratelimit.LoadOverrides(opts.PolicyFile)
		if err != nil {
			return nil, err
		}

		policies, err := overrides.Apply(ratelimit.DefaultPolicies())
		if err != nil {
			return nil, fmt.Errorf("apply policy overrides: %w", err)
		}

		return ratelimit.NewPolicySet(policies, ratelimit.GeneralAPI)
	})

	do.Provide(injector, func(i *do.Injector) (CounterStore, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		local := store.NewRateLimitMemoryStore()
		local.StartJanitor(janitorInterval)

		m.SetBackend(false)

		if !opts.RedisEnabled() {
			logger.Info("rate limit counters kept in memory")

			return local, nil
		}

		timeout := time.Duration(opts.RedisTimeoutMS) * time.Millisecond

		rdbOpts := redisOptions(opts)
		rdbOpts.DialTimeout = timeout
		rdbOpts.ReadTimeout = timeout
		rdbOpts.WriteTimeout = timeout
		rdbOpts.MaxRetries = -1

		state := store.NewConnectivity(logger, m.SetBackend)

		client := redis.NewClient(rdbOpts)
		client.AddHook(state.Hook())

		remote := store.NewRateLimitRedisStore(client)

		cfg := store.DefaultFailoverConfig()
		if timeout > 0 {
			cfg.OpTimeout = timeout
		}

		cfg.DrainTimeout = opts.ShutdownTimeout()

		failover := store.NewFailoverRateLimitStore(remote, local, state, cfg, m, logger)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.OpTimeout)
		defer cancel()

		if err := remote.Load(ctx); err != nil {
			logger.Warn("rate limit script not preloaded", zap.Error(err))
		}

		failover.Start(context.Background())

		return failover, nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.Limiter, error) {
		return ratelimit.NewLimiter(
			do.MustInvoke[CounterStore](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}
