package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/online-compiler-go/internal/auth"
	"github.com/serroba/online-compiler-go/internal/metrics"
	"github.com/serroba/online-compiler-go/internal/snippet"
	"github.com/serroba/online-compiler-go/internal/store"
	"github.com/serroba/online-compiler-go/internal/user"
	"go.uber.org/zap"
)

// snippetCacheTTL bounds how long a single snippet read is served from Redis.
const snippetCacheTTL = 10 * time.Minute

// Options configures the server. Every field is also read from SERVICE_<NAME>.
type Options struct {
	Port            int    `default:"8888"                            help:"Port to listen on"                                       short:"p"`
	LogFormat       string `default:"json"                            help:"Log format: json or console"`
	RedisAddr       string `default:"localhost:6379"                  help:"Redis server address, empty to run without Redis"        short:"r"`
	RedisPassword   string `default:""                                help:"Redis password"`
	RedisDB         int    `default:"0"                               help:"Redis database number"`
	RedisTimeoutMS  int    `default:"250"                             help:"Timeout in milliseconds for each rate limit counter call"`
	DatabaseURL     string `default:""                                help:"PostgreSQL connection URL, empty for in-memory storage"  short:"d"`
	JWTSecret       string `default:""                                help:"Secret used to sign session tokens"`
	CookieSecure    bool   `default:"false"                           help:"Send the session cookie over HTTPS only"`
	ClientOrigin    string `default:"http://localhost:5173"           help:"Browser origin allowed by CORS"`
	TrustProxy      bool   `default:"false"                           help:"Take the client address from X-Forwarded-For"`
	JudgeURL        string `default:"https://judge0-ce.p.rapidapi.com" help:"Judge API base URL"`
	JudgeAPIKey     string `default:""                                help:"RapidAPI key for the judge"`
	JudgeTimeoutSec int    `default:"30"                              help:"Judge request timeout in seconds"`
	PolicyFile      string `default:""                                help:"YAML file with rate limit policy overrides"`
	ShutdownSec     int    `default:"10"                              help:"Seconds to wait for in-flight work on shutdown"`
}

// RedisEnabled reports whether a Redis address is configured.
func (o *Options) RedisEnabled() bool {
	return o.RedisAddr != ""
}

// ShutdownTimeout is the shutdown bound as a duration.
func (o *Options) ShutdownTimeout() time.Duration {
	if o.ShutdownSec <= 0 {
		return 10 * time.Second
	}

	return time.Duration(o.ShutdownSec) * time.Second
}

// RedisClient owns the Redis connection shared by the OTP store, the snippet cache and
// the event stream. A nil *RedisClient means Redis is disabled.
type RedisClient struct {
	Client redis.UniversalClient
}

// Shutdown closes the connection. Watermill closes the client it was handed, so an
// already closed client is not an error.
func (c *RedisClient) Shutdown() error {
	if c == nil {
		return nil
	}

	if err := c.Client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}

	return nil
}

// Database owns the PostgreSQL pool. Pool is nil when no database is configured.
type Database struct {
	Pool *pgxpool.Pool
}

// Shutdown closes the pool.
func (d *Database) Shutdown() error {
	if d.Pool != nil {
		d.Pool.Close()
	}

	return nil
}

// LoggerPackage provides the zap logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "console" {
			return zap.NewDevelopment()
		}

		return zap.NewProduction()
	})
}

// MetricsPackage provides the Prometheus metrics registered with the default registry.
func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})
}

func redisOptions(opts *Options) *redis.Options {
	return &redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	}
}

// RedisPackage provides the shared Redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.RedisEnabled() {
			return nil, nil
		}

		return &RedisClient{Client: redis.NewClient(redisOptions(opts))}, nil
	})
}

// PostgresPackage provides the PostgreSQL pool when a database URL is configured.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Database, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.DatabaseURL == "" {
			return &Database{}, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		return &Database{Pool: pool}, nil
	})
}

// RepositoryPackage provides the user, snippet and OTP stores. Users and snippets live
// in PostgreSQL when configured and in memory otherwise; single snippet reads are cached
// in Redis when it is enabled.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (user.Repository, error) {
		db := do.MustInvoke[*Database](i)
		if db.Pool != nil {
			return store.NewPostgresStore(db.Pool), nil
		}

		return do.MustInvoke[*store.MemoryStore](i), nil
	})

	do.Provide(injector, func(_ *do.Injector) (*store.MemoryStore, error) {
		return store.NewMemoryStore(), nil
	})

	do.Provide(injector, func(i *do.Injector) (snippet.Repository, error) {
		var repo snippet.Repository

		if db := do.MustInvoke[*Database](i); db.Pool != nil {
			repo = store.NewPostgresStore(db.Pool).Snippets()
		} else {
			repo = do.MustInvoke[*store.MemoryStore](i).Snippets()
		}

		if client := do.MustInvoke[*RedisClient](i); client != nil {
			return store.NewRedisCacheRepository(repo, client.Client, snippetCacheTTL), nil
		}

		return repo, nil
	})

	do.Provide(injector, func(i *do.Injector) (auth.OTPStore, error) {
		if client := do.MustInvoke[*RedisClient](i); client != nil {
			return store.NewOTPRedisStore(client.Client), nil
		}

		return store.NewOTPMemoryStore(), nil
	})
}
