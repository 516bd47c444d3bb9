package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Decision is the outcome of admitting one request under one policy.
type Decision struct {
	Allowed bool
	Skipped bool
	// Degraded is set when the store failed and the request was admitted uncounted.
	Degraded bool
	Policy  string
	Key     string
	Count   int64
	Quota   int64
	ResetAt time.Time
	// RetryAfter is in whole seconds and only meaningful when RetryKnown is set.
	RetryAfter int64
	RetryKnown bool
}

// Remaining is the number of requests left in the current window.
func (d Decision) Remaining() int64 {
	if d.Count >= d.Quota {
		return 0
	}

	return d.Quota - d.Count
}

// Limiter admits requests against policies using a shared counter store.
type Limiter struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock used to compute retry hints.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter backed by store.
func NewLimiter(store Store, logger *zap.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		now:    time.Now,
		logger: logger,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// CompositeKey is the counter key for identity key under policy name.
func CompositeKey(policy, key string) string {
	return policy + ":" + key
}

// Admit counts r against p and decides whether it may proceed. A skipped request is
// never counted. A store failure admits the request with an unknown retry hint.
func (l *Limiter) Admit(ctx context.Context, r *Request, p *Policy) Decision {
	d := Decision{Policy: p.Name}

	if p.Skip != nil && p.Skip(r) {
		d.Allowed = true
		d.Skipped = true

		return d
	}

	d.Key = ResolveKey(r, p)
	d.Quota = p.Quota(r)

	counter, err := l.store.Increment(ctx, CompositeKey(p.Name, d.Key), p.Window)
	if err != nil {
		l.logger.Warn("rate limit store failed, admitting request",
			zap.String("policy", p.Name),
			zap.String("key", d.Key),
			zap.Error(err),
		)

		d.Allowed = true
		d.Degraded = true

		return d
	}

	d.Count = counter.Count
	d.Allowed = counter.Count <= d.Quota

	if !counter.ExpiresAt.IsZero() {
		d.ResetAt = counter.ExpiresAt
		d.RetryAfter = retryAfter(counter.ExpiresAt.Sub(l.now()))
		d.RetryKnown = true
	}

	return d
}

func retryAfter(remaining time.Duration) int64 {
	if remaining <= 0 {
		return 0
	}

	secs := int64(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}

	return secs
}
