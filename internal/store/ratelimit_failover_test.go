package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serroba/online-compiler-go/internal/ratelimit"
	"github.com/serroba/online-compiler-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errRemoteDown = errors.New("dial tcp: connection refused")

// fakeRemote is a shared counter store whose availability can be toggled.
type fakeRemote struct {
	local *store.RateLimitMemoryStore
	down  atomic.Bool
	gate  chan struct{}

	increments atomic.Int64
	closed     atomic.Bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{local: store.NewRateLimitMemoryStore()}
}

func (f *fakeRemote) Increment(ctx context.Context, key string, window time.Duration) (ratelimit.Counter, error) {
	if f.gate != nil {
		<-f.gate
	}

	if f.down.Load() {
		return ratelimit.Counter{}, errRemoteDown
	}

	f.increments.Add(1)

	return f.local.Increment(ctx, key, window)
}

func (f *fakeRemote) Ping(context.Context) error {
	if f.down.Load() {
		return errRemoteDown
	}

	return nil
}

func (f *fakeRemote) Close() error {
	f.closed.Store(true)

	return nil
}

type recordingObserver struct {
	mu      sync.Mutex
	reasons []string
}

func (o *recordingObserver) ObserveFallback(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.reasons = append(o.reasons, reason)
}

func (o *recordingObserver) Reasons() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]string(nil), o.reasons...)
}

func testFailoverConfig() store.FailoverConfig {
	return store.FailoverConfig{
		OpTimeout:    time.Second,
		PingInterval: 10 * time.Millisecond,
		MaxInFlight:  16,
		DrainTimeout: time.Second,
	}
}

func newFailover(remote *fakeRemote, observer store.FallbackObserver) (*store.FailoverRateLimitStore, *store.Connectivity) {
	state := store.NewConnectivity(zap.NewNop(), nil)
	s := store.NewFailoverRateLimitStore(
		remote, store.NewRateLimitMemoryStore(), state, testFailoverConfig(), observer, zap.NewNop(),
	)

	return s, state
}

func TestFailoverRateLimitStore(t *testing.T) {
	t.Run("uses the shared store while connected", func(t *testing.T) {
		remote := newFakeRemote()
		s, state := newFailover(remote, nil)
		s.Start(context.Background())

		defer func() { _ = s.Shutdown() }()

		require.True(t, state.Connected())

		c, err := s.Increment(context.Background(), "compile:1.2.3.4", time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Count)
		assert.Equal(t, int64(1), remote.increments.Load())
		assert.Equal(t, ratelimit.Status{Redis: true, Store: ratelimit.BackendRedis}, s.Status())
	})

	t.Run("starts on the fallback when the shared store is down", func(t *testing.T) {
		remote := newFakeRemote()
		remote.down.Store(true)

		observer := &recordingObserver{}
		s, state := newFailover(remote, observer)
		s.Start(context.Background())

		defer func() { _ = s.Shutdown() }()

		c, err := s.Increment(context.Background(), "k", time.Minute)

		require.NoError(t, err)
		assert.False(t, state.Connected())
		assert.Equal(t, int64(1), c.Count)
		assert.Equal(t, []string{store.FallbackDisconnected}, observer.Reasons())
		assert.Equal(t, ratelimit.Status{Redis: false, Store: ratelimit.BackendMemory}, s.Status())
	})

	t.Run("still enforces quotas when the store fails mid-run", func(t *testing.T) {
		remote := newFakeRemote()
		s, state := newFailover(remote, nil)
		s.Start(context.Background())

		defer func() { _ = s.Shutdown() }()

		limiter := ratelimit.NewLimiter(s, zap.NewNop())
		policy := &ratelimit.Policy{Name: "otp-request", Window: 15 * time.Minute, Quota: ratelimit.FixedQuota(5)}
		req := ratelimit.NewRequest("POST", "/api/auth/request-otp", "10.0.0.1", "", nil)

		for range 2 {
			require.True(t, limiter.Admit(context.Background(), req, policy).Allowed)
		}

		remote.down.Store(true)

		admitted := 0

		for range 10 {
			if limiter.Admit(context.Background(), req, policy).Allowed {
				admitted++
			}
		}

		assert.False(t, state.Connected())
		assert.Equal(t, 5, admitted, "the in-process store enforces the full quota on its own")
	})

	t.Run("recovers through the background ping", func(t *testing.T) {
		remote := newFakeRemote()
		remote.down.Store(true)

		s, state := newFailover(remote, nil)
		s.Start(context.Background())

		defer func() { _ = s.Shutdown() }()

		require.False(t, state.Connected())

		remote.down.Store(false)

		assert.Eventually(t, state.Connected, time.Second, 5*time.Millisecond)
	})

	t.Run("waits for in-flight increments before closing", func(t *testing.T) {
		remote := newFakeRemote()
		s, _ := newFailover(remote, nil)
		s.Start(context.Background())

		remote.gate = make(chan struct{})

		incDone := make(chan struct{})

		go func() {
			defer close(incDone)

			_, _ = s.Increment(context.Background(), "k", time.Minute)
		}()

		// Let the increment take its slot before shutting down.
		time.Sleep(20 * time.Millisecond)

		shutdownDone := make(chan struct{})

		go func() {
			defer close(shutdownDone)

			_ = s.Shutdown()
		}()

		time.Sleep(20 * time.Millisecond)
		assert.False(t, remote.closed.Load(), "close must wait for the in-flight increment")

		close(remote.gate)
		<-incDone
		<-shutdownDone

		assert.True(t, remote.closed.Load())
	})

	t.Run("serves locally once closing", func(t *testing.T) {
		remote := newFakeRemote()
		s, _ := newFailover(remote, nil)
		s.Start(context.Background())

		require.NoError(t, s.Shutdown())

		c, err := s.Increment(context.Background(), "k", time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Count)
		assert.Equal(t, int64(0), remote.increments.Load())
	})

	t.Run("a cancelled request still completes its increment", func(t *testing.T) {
		remote := newFakeRemote()
		s, _ := newFailover(remote, nil)
		s.Start(context.Background())

		defer func() { _ = s.Shutdown() }()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Increment(ctx, "k", time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), remote.increments.Load())
	})
}

func TestConnectivity(t *testing.T) {
	var changes []bool

	c := store.NewConnectivity(zap.NewNop(), func(connected bool) { changes = append(changes, connected) })

	assert.False(t, c.Connected())
	assert.True(t, c.MarkConnected())
	assert.False(t, c.MarkConnected(), "repeated events do not transition")
	assert.True(t, c.MarkDisconnected(errRemoteDown))
	assert.False(t, c.MarkDisconnected(errRemoteDown))
	assert.Equal(t, []bool{true, false}, changes)
}
