package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/online-compiler-go/internal/ratelimit"
)

type windowEntry struct {
	count     int64
	expiresAt time.Time
}

// RateLimitMemoryStore is an in-memory fixed-window implementation of ratelimit.Store.
// Counts are per process only.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	entries map[string]windowEntry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// MemoryOption configures a RateLimitMemoryStore.
type MemoryOption func(*RateLimitMemoryStore)

// WithMemoryClock replaces the wall clock.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *RateLimitMemoryStore) { s.now = now }
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore(opts ...MemoryOption) *RateLimitMemoryStore {
	s := &RateLimitMemoryStore{
		entries: make(map[string]windowEntry),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RateLimitMemoryStore) Increment(_ context.Context, key string, window time.Duration) (ratelimit.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.expiresAt) {
		entry = windowEntry{expiresAt: now.Add(window)}
	}

	entry.count++
	s.entries[key] = entry

	return ratelimit.Counter{Count: entry.count, ExpiresAt: entry.expiresAt}, nil
}

// Sweep drops expired windows and returns how many were removed.
func (s *RateLimitMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0

	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)

			removed++
		}
	}

	return removed
}

// Len returns the number of tracked windows, expired or not.
func (s *RateLimitMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// StartJanitor sweeps expired windows every interval until Shutdown.
func (s *RateLimitMemoryStore) StartJanitor(interval time.Duration) {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()

		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Shutdown stops the janitor, if running.
func (s *RateLimitMemoryStore) Shutdown() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop == nil {
		return nil
	}

	s.stopOnce.Do(func() { close(stop) })
	<-done

	return nil
}

// Status reports the in-process backend.
func (s *RateLimitMemoryStore) Status() ratelimit.Status {
	return ratelimit.Status{Redis: false, Store: ratelimit.BackendMemory}
}
