package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/online-compiler-go/internal/ratelimit"
)

const checkTimeout = 2 * time.Second

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts a redis client to the Checker interface.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PostgresChecker adapts a pgx pool to the Checker interface.
type PostgresChecker struct {
	pool *pgxpool.Pool
}

// NewPostgresChecker creates a new Postgres health checker.
func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

// Ping checks Postgres connectivity.
func (p *PostgresChecker) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Handler handles health and status operations.
type Handler struct {
	checks  map[string]Checker
	limiter ratelimit.StatusReporter
}

// NewHandler creates a new health handler. checks maps a dependency name to its checker;
// limiter may be nil when admission control reports no backend.
func NewHandler(checks map[string]Checker, limiter ratelimit.StatusReporter) *Handler {
	return &Handler{checks: checks, limiter: limiter}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status       string            `json:"status"       enum:"OK,DEGRADED"`
		Message      string            `json:"message"`
		Dependencies map[string]string `json:"dependencies,omitempty" doc:"healthy or unhealthy per dependency"`
	}
}

// StatusResponse describes the admission control backend.
type StatusResponse struct {
	Body ratelimit.Status
}

// Check performs a health check of the application and its dependencies.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "OK"
	resp.Body.Message = "Server is running"

	if len(h.checks) == 0 {
		return resp, nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	resp.Body.Dependencies = make(map[string]string, len(h.checks))

	for name, checker := range h.checks {
		if err := checker.Ping(ctx); err != nil {
			resp.Body.Dependencies[name] = "unhealthy"
			resp.Body.Status = "DEGRADED"
			resp.Body.Message = "Server is running with degraded dependencies"

			continue
		}

		resp.Body.Dependencies[name] = "healthy"
	}

	return resp, nil
}

// Status reports which counter store admission control is using.
func (h *Handler) Status(_ context.Context, _ *struct{}) (*StatusResponse, error) {
	resp := &StatusResponse{}

	if h.limiter == nil {
		resp.Body = ratelimit.Status{Store: ratelimit.BackendMemory}

		return resp, nil
	}

	resp.Body = h.limiter.Status()

	return resp, nil
}

// RegisterRoutes registers health check routes. The general policy does not count them.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Liveness and dependency health",
		Tags:        []string{"Operations"},
	}, h.Check)

	huma.Register(api, huma.Operation{
		OperationID: "limiter-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Admission control backend",
		Tags:        []string{"Operations"},
	}, h.Status)
}
