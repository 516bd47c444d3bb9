package ratelimit

import (
	"context"
	"time"
)

// Counter is the state of a fixed-window counter after an increment.
type Counter struct {
	Count     int64
	ExpiresAt time.Time
}

// Store defines the interface for rate limit counter storage.
type Store interface {
	// Increment atomically adds one to the counter for key. The first increment of a
	// window sets its expiry; later increments in the same window keep it.
	Increment(ctx context.Context, key string, window time.Duration) (Counter, error)
}

// Backend names reported by Status.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Status describes which counter backend is serving increments.
type Status struct {
	Redis bool   `json:"redis" doc:"Whether the shared counter store is connected"`
	Store string `json:"store" enum:"redis,memory" doc:"Backend currently serving increments"`
}

// StatusReporter is implemented by stores that can describe their backend.
type StatusReporter interface {
	Status() Status
}
