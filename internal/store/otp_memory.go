package store

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

type pendingCode struct {
	code      string
	expiresAt time.Time
}

// OTPMemoryStore is an in-memory implementation of auth.OTPStore.
type OTPMemoryStore struct {
	mu    sync.Mutex
	codes map[string]pendingCode
	now   func() time.Time
}

// NewOTPMemoryStore creates a new in-memory OTP store.
func NewOTPMemoryStore() *OTPMemoryStore {
	return &OTPMemoryStore{
		codes: make(map[string]pendingCode),
		now:   time.Now,
	}
}

func (s *OTPMemoryStore) Save(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[email] = pendingCode{code: code, expiresAt: s.now().Add(ttl)}

	return nil
}

func (s *OTPMemoryStore) Consume(_ context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.codes[email]
	if !ok || code == "" {
		return false, nil
	}

	if !s.now().Before(pending.expiresAt) {
		delete(s.codes, email)

		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(pending.code), []byte(code)) != 1 {
		return false, nil
	}

	delete(s.codes, email)

	return true, nil
}
