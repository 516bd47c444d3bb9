package container

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"github.com/serroba/online-compiler-go/internal/activity"
	"github.com/serroba/online-compiler-go/internal/apierr"
	"github.com/serroba/online-compiler-go/internal/auth"
	"github.com/serroba/online-compiler-go/internal/handlers"
	"github.com/serroba/online-compiler-go/internal/health"
	"github.com/serroba/online-compiler-go/internal/judge"
	"github.com/serroba/online-compiler-go/internal/metrics"
	"github.com/serroba/online-compiler-go/internal/middleware"
	"github.com/serroba/online-compiler-go/internal/ratelimit"
	"github.com/serroba/online-compiler-go/internal/session"
	"github.com/serroba/online-compiler-go/internal/snippet"
	"github.com/serroba/online-compiler-go/internal/user"
	"go.uber.org/zap"
)

var ErrMissingSecret = errors.New("a JWT secret is required")

// HTTPPackage provides the router and the API with every route registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		opts := do.MustInvoke[*Options](i)

		router := chi.NewMux()
		router.Use(middleware.CORS(opts.ClientOrigin))
		router.Handle("/metrics", promhttp.Handler())

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (*session.Manager, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.JWTSecret == "" {
			return nil, ErrMissingSecret
		}

		return session.NewManager(opts.JWTSecret, session.DefaultTTL), nil
	})

	do.Provide(injector, func(i *do.Injector) (*judge.Client, error) {
		opts := do.MustInvoke[*Options](i)

		return judge.NewClient(
			opts.JudgeURL,
			opts.JudgeAPIKey,
			time.Duration(opts.JudgeTimeoutSec)*time.Second,
			judge.WithObserver(do.MustInvoke[*metrics.Metrics](i)),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (handlers.Handlers, error) {
		return newHandlers(i)
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		policies := do.MustInvoke[*ratelimit.PolicySet](i)

		h, err := do.Invoke[handlers.Handlers](i)
		if err != nil {
			return nil, err
		}

		apierr.Install()

		config := huma.DefaultConfig("Online Compiler API", "1.0.0")
		config.DocsPath = "/api/docs"
		config.OpenAPIPath = "/api/openapi"
		config.SchemasPath = "/api/schemas"

		api := humachi.New(router, config)
		api.UseMiddleware(
			middleware.AccessLog(m, logger),
			middleware.RequestMeta(opts.TrustProxy),
			middleware.Authenticate(api, do.MustInvoke[*session.Manager](i), do.MustInvoke[user.Repository](i), logger),
			middleware.Admission(api, do.MustInvoke[*ratelimit.Limiter](i), policies, m, logger),
		)

		handlers.RegisterRoutes(api, h)
		health.RegisterRoutes(api, health.NewHandler(healthChecks(i), do.MustInvoke[CounterStore](i)))

		if err := ratelimit.ValidateRoutes(api.OpenAPI(), policies); err != nil {
			return nil, fmt.Errorf("route admission config: %w", err)
		}

		return api, nil
	})
}

func newHandlers(i *do.Injector) (handlers.Handlers, error) {
	logger := do.MustInvoke[*zap.Logger](i)
	users := do.MustInvoke[user.Repository](i)
	publishers := do.MustInvoke[activity.Publishers](i)

	sessions, err := do.Invoke[*session.Manager](i)
	if err != nil {
		return handlers.Handlers{}, err
	}

	generate, err := auth.NewCodeGenerator()
	if err != nil {
		return handlers.Handlers{}, fmt.Errorf("create code generator: %w", err)
	}

	service := auth.NewService(
		do.MustInvoke[auth.OTPStore](i),
		users,
		auth.NewLogMailer(logger),
		generate,
		sessions,
	)

	cookies := handlers.Cookies{
		Secure: do.MustInvoke[*Options](i).CookieSecure,
		TTL:    sessions.TTL(),
	}

	return handlers.Handlers{
		Auth:    handlers.NewAuthHandler(service, cookies, logger),
		Compile: handlers.NewCompileHandler(do.MustInvoke[*judge.Client](i), publishers.CompileExecuted, logger),
		User: handlers.NewUserHandler(
			users,
			do.MustInvoke[snippet.Repository](i),
			cookies,
			publishers.SnippetChanged,
			logger,
		),
	}, nil
}

func healthChecks(i *do.Injector) map[string]health.Checker {
	checks := make(map[string]health.Checker)

	if client := do.MustInvoke[*RedisClient](i); client != nil {
		checks["redis"] = health.NewRedisChecker(client.Client)
	}

	if db := do.MustInvoke[*Database](i); db.Pool != nil {
		checks["postgres"] = health.NewPostgresChecker(db.Pool)
	}

	return checks
}
