package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/serroba/online-compiler-go/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// RemoteCounterStore is a shared counter store that can be pinged and closed.
type RemoteCounterStore interface {
	ratelimit.Store
	Ping(ctx context.Context) error
	Close() error
}

// FallbackObserver is notified whenever an increment is served by the in-process store
// instead of the shared one.
type FallbackObserver interface {
	ObserveFallback(reason string)
}

type noopObserver struct{}

func (noopObserver) ObserveFallback(string) {}

// Fallback reasons.
const (
	FallbackDisconnected = "disconnected"
	FallbackError        = "error"
	FallbackSaturated    = "saturated"
	FallbackClosing      = "closing"
)

// FailoverConfig tunes a FailoverRateLimitStore.
type FailoverConfig struct {
	// OpTimeout bounds every call to the shared store.
	OpTimeout time.Duration
	// PingInterval is how often a disconnected store is pinged.
	PingInterval time.Duration
	// MaxInFlight caps concurrent calls to the shared store.
	MaxInFlight int64
	// DrainTimeout bounds how long Shutdown waits for in-flight calls.
	DrainTimeout time.Duration
}

// DefaultFailoverConfig returns the defaults used by the server.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		OpTimeout:    250 * time.Millisecond,
		PingInterval: 5 * time.Second,
		MaxInFlight:  1024,
		DrainTimeout: 5 * time.Second,
	}
}

// FailoverRateLimitStore serves increments from a shared store while it is connected
// and from an in-process fixed-window store otherwise. Store errors never reach the
// caller: a failed call is served locally and flips the connectivity state.
type FailoverRateLimitStore struct {
	remote   RemoteCounterStore
	local    *RateLimitMemoryStore
	state    *Connectivity
	cfg      FailoverConfig
	inflight *semaphore.Weighted
	observer FallbackObserver
	logger   *zap.Logger

	closing   atomic.Bool
	started   atomic.Bool
	stopPing  chan struct{}
	pingDone  chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewFailoverRateLimitStore wires remote and local behind one ratelimit.Store.
// A nil observer discards fallback notifications.
func NewFailoverRateLimitStore(
	remote RemoteCounterStore,
	local *RateLimitMemoryStore,
	state *Connectivity,
	cfg FailoverConfig,
	observer FallbackObserver,
	logger *zap.Logger,
) *FailoverRateLimitStore {
	if observer == nil {
		observer = noopObserver{}
	}

	return &FailoverRateLimitStore{
		remote:    remote,
		local:     local,
		state:     state,
		cfg:       cfg,
		inflight:  semaphore.NewWeighted(cfg.MaxInFlight),
		observer:  observer,
		logger:    logger,
		stopPing:  make(chan struct{}),
		pingDone:  make(chan struct{}),
	}
}

// Start pings the shared store once and then pings it in the background while it
// is disconnected.
func (s *FailoverRateLimitStore) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started.Store(true)
		s.ping(ctx)

		go s.pingLoop()
	})
}

func (s *FailoverRateLimitStore) pingLoop() {
	defer close(s.pingDone)

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.state.Connected() {
				s.ping(context.Background())
			}
		case <-s.stopPing:
			return
		}
	}
}

func (s *FailoverRateLimitStore) ping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := s.remote.Ping(ctx); err != nil {
		s.logger.Debug("rate limit store ping failed", zap.Error(err))
		s.state.MarkDisconnected(err)

		return
	}

	s.state.MarkConnected()
}

func (s *FailoverRateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (ratelimit.Counter, error) {
	if s.closing.Load() {
		return s.fallback(ctx, key, window, FallbackClosing)
	}

	if !s.state.Connected() {
		return s.fallback(ctx, key, window, FallbackDisconnected)
	}

	if !s.inflight.TryAcquire(1) {
		return s.fallback(ctx, key, window, FallbackSaturated)
	}
	defer s.inflight.Release(1)

	// The increment completes even if the inbound request goes away.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.OpTimeout)
	defer cancel()

	counter, err := s.remote.Increment(opCtx, key, window)
	if err != nil {
		s.logger.Warn("rate limit store increment failed",
			zap.String("key", key),
			zap.Error(err),
		)
		s.state.MarkDisconnected(err)

		return s.fallback(ctx, key, window, FallbackError)
	}

	return counter, nil
}

func (s *FailoverRateLimitStore) fallback(
	ctx context.Context,
	key string,
	window time.Duration,
	reason string,
) (ratelimit.Counter, error) {
	s.observer.ObserveFallback(reason)

	return s.local.Increment(ctx, key, window)
}

// Status reports which backend currently serves increments.
func (s *FailoverRateLimitStore) Status() ratelimit.Status {
	if s.state.Connected() && !s.closing.Load() {
		return ratelimit.Status{Redis: true, Store: ratelimit.BackendRedis}
	}

	return ratelimit.Status{Redis: false, Store: ratelimit.BackendMemory}
}

// Shutdown stops probing, waits for in-flight shared-store calls up to the drain
// timeout and then releases the shared store.
func (s *FailoverRateLimitStore) Shutdown() error {
	var err error

	s.stopOnce.Do(func() {
		s.closing.Store(true)

		close(s.stopPing)

		if s.started.Load() {
			<-s.pingDone
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
		defer cancel()

		if acqErr := s.inflight.Acquire(ctx, s.cfg.MaxInFlight); acqErr != nil {
			s.logger.Warn("rate limit store drain timed out, closing with calls in flight")
		} else {
			s.inflight.Release(s.cfg.MaxInFlight)
		}

		err = errors.Join(s.remote.Close(), s.local.Shutdown())
	})

	return err
}
