package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/online-compiler-go/internal/handlers"
	"github.com/serroba/online-compiler-go/internal/metrics"
	"github.com/serroba/online-compiler-go/internal/ratelimit"
	"github.com/serroba/online-compiler-go/internal/session"
	"go.uber.org/zap"
)

// maxPeek bounds how much of a body is buffered to resolve a claimed identity.
const maxPeek = 64 << 10

// DecisionObserver records admission outcomes.
type DecisionObserver interface {
	ObserveDecision(policy, outcome string)
}

// Rejection is the body of a 429 response. RetryAfter is whole seconds, or "unknown".
type Rejection struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RetryAfter any    `json:"retryAfter"`
}

// Admission returns a Huma middleware that admits each request against the set's
// default policies plus the policies bound to its route, in that order. The first
// policy that rejects ends the request with 429.
func Admission(
	api huma.API,
	limiter *ratelimit.Limiter,
	policies *ratelimit.PolicySet,
	observer DecisionObserver,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		var names []string

		if route := ratelimit.GetRoute(ctx); route != nil {
			if route.Disabled {
				next(ctx)

				return
			}

			names = route.Policies
		}

		selected, err := policies.Resolve(names)
		if err != nil {
			logger.Error("route names an unknown policy", zap.String("path", ctx.URL().Path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error")

			return
		}

		peek := &peekContext{humaContext: ctx}
		subject, _ := session.SubjectFromContext(ctx.Context())
		meta := handlers.RequestMetaFromContext(ctx.Context())
		req := ratelimit.NewRequest(ctx.Method(), ctx.URL().Path, meta.ClientIP, subject.ID, peek.load)

		var tightest *ratelimit.Decision

		for _, p := range selected {
			d := limiter.Admit(ctx.Context(), req, p)
			observe(observer, d)

			if !d.Allowed {
				reject(ctx, req, p, d, logger)

				return
			}

			if d.Skipped {
				logger.Debug("admission skipped", zap.String("policy", p.Name), zap.String("path", req.Path))

				continue
			}

			if !d.Degraded && (tightest == nil || d.Remaining() < tightest.Remaining()) {
				tightest = &d
			}
		}

		if tightest != nil {
			setQuotaHeaders(ctx, *tightest)
		}

		next(peek)
	}
}

func observe(observer DecisionObserver, d ratelimit.Decision) {
	if observer == nil {
		return
	}

	outcome := metrics.OutcomeAllowed

	switch {
	case d.Skipped:
		outcome = metrics.OutcomeSkipped
	case d.Degraded:
		outcome = metrics.OutcomeDegraded
	case !d.Allowed:
		outcome = metrics.OutcomeRejected
	}

	observer.ObserveDecision(d.Policy, outcome)
}

func setQuotaHeaders(ctx huma.Context, d ratelimit.Decision) {
	ctx.SetHeader("RateLimit-Limit", strconv.FormatInt(d.Quota, 10))
	ctx.SetHeader("RateLimit-Remaining", strconv.FormatInt(d.Remaining(), 10))

	if d.RetryKnown {
		ctx.SetHeader("RateLimit-Reset", strconv.FormatInt(d.RetryAfter, 10))
	}
}

func reject(ctx huma.Context, req *ratelimit.Request, p *ratelimit.Policy, d ratelimit.Decision, logger *zap.Logger) {
	body := Rejection{
		Message:    p.Message(req, d),
		RetryAfter: "unknown",
	}

	if d.RetryKnown {
		body.RetryAfter = d.RetryAfter
		ctx.SetHeader("Retry-After", strconv.FormatInt(d.RetryAfter, 10))
	}

	logger.Warn("rate limit exceeded",
		zap.String("policy", d.Policy),
		zap.String("key", d.Key),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int64("count", d.Count),
		zap.Int64("quota", d.Quota),
		zap.Time("timestamp", time.Now().UTC()),
	)

	setQuotaHeaders(ctx, d)
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusTooManyRequests)

	if err := json.NewEncoder(ctx.BodyWriter()).Encode(body); err != nil {
		logger.Error("failed to write rejection", zap.Error(err))
	}
}

type humaContext = huma.Context

// peekContext lets policies read the request body while leaving it intact for the handler.
type peekContext struct {
	humaContext

	peeked []byte
	read   bool
}

var _ huma.Context = (*peekContext)(nil)

func (c *peekContext) load() []byte {
	if c.read {
		return c.peeked
	}

	c.read = true

	r := c.humaContext.BodyReader()
	if r == nil {
		return nil
	}

	c.peeked, _ = io.ReadAll(io.LimitReader(r, maxPeek))

	return c.peeked
}

func (c *peekContext) BodyReader() io.Reader {
	if !c.read {
		return c.humaContext.BodyReader()
	}

	return io.MultiReader(bytes.NewReader(c.peeked), c.humaContext.BodyReader())
}
