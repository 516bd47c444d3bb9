package ratelimit_test

import (
	"testing"

	"github.com/serroba/online-compiler-go/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestSubjectOrOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		subject string
		want    string
	}{
		{name: "authenticated subject", origin: "10.0.0.1", subject: "42", want: "user:42"},
		{name: "guest uses origin", origin: "10.0.0.1", want: "10.0.0.1"},
		{name: "missing origin", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := ratelimit.NewRequest("GET", "/", tt.origin, tt.subject, nil)
			assert.Equal(t, tt.want, ratelimit.SubjectOrOrigin(r))
		})
	}
}

func TestClaimedIdentity(t *testing.T) {
	t.Parallel()

	key := ratelimit.ClaimedIdentity("email")

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "lower-cases and trims", body: `{"email":"  Alice@Example.COM "}`, want: "alice@example.com"},
		{name: "absent field", body: `{"name":"alice"}`, want: "10.1.1.1"},
		{name: "non-string field", body: `{"email":17}`, want: "10.1.1.1"},
		{name: "blank field", body: `{"email":"   "}`, want: "10.1.1.1"},
		{name: "invalid json", body: `{"email":`, want: "10.1.1.1"},
		{name: "empty body", body: ``, want: "10.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := ratelimit.NewRequest("POST", "/api/auth/request-otp", "10.1.1.1", "", func() []byte {
				return []byte(tt.body)
			})
			assert.Equal(t, tt.want, key(r))
		})
	}

	t.Run("ignores subject", func(t *testing.T) {
		t.Parallel()

		r := ratelimit.NewRequest("POST", "/", "10.1.1.1", "7", nil)
		assert.Equal(t, "10.1.1.1", key(r))
	})
}

func TestRequestBodyLoadedOnce(t *testing.T) {
	t.Parallel()

	loads := 0
	r := ratelimit.NewRequest("POST", "/", "", "", func() []byte {
		loads++

		return []byte(`{"email":"a@b.c","otp":"123456"}`)
	})

	assert.Equal(t, "a@b.c", r.Field("email"))
	assert.Equal(t, "123456", r.Field("otp"))
	assert.Equal(t, 1, loads)
}

func TestBodyNotLoadedWithoutClaimedIdentity(t *testing.T) {
	t.Parallel()

	loaded := false
	r := ratelimit.NewRequest("GET", "/", "10.0.0.1", "", func() []byte {
		loaded = true

		return nil
	})

	_ = ratelimit.SubjectOrOrigin(r)

	assert.False(t, loaded)
}

func TestPrefixed(t *testing.T) {
	t.Parallel()

	key := ratelimit.Prefixed("sensitive", ratelimit.SubjectOrOrigin)

	assert.Equal(t, "sensitive:user:9", key(ratelimit.NewRequest("DELETE", "/", "1.2.3.4", "9", nil)))
	assert.Equal(t, "sensitive:1.2.3.4", key(ratelimit.NewRequest("DELETE", "/", "1.2.3.4", "", nil)))
}

func TestResolveKey(t *testing.T) {
	t.Parallel()

	r := ratelimit.NewRequest("GET", "/", "10.0.0.5", "", nil)

	t.Run("panicking rule falls back to origin", func(t *testing.T) {
		t.Parallel()

		p := &ratelimit.Policy{Name: "p", Key: func(*ratelimit.Request) string { panic("boom") }}
		assert.Equal(t, "10.0.0.5", ratelimit.ResolveKey(r, p))
	})

	t.Run("empty key falls back to origin", func(t *testing.T) {
		t.Parallel()

		p := &ratelimit.Policy{Name: "p", Key: func(*ratelimit.Request) string { return "" }}
		assert.Equal(t, "10.0.0.5", ratelimit.ResolveKey(r, p))
	})

	t.Run("nil rule uses subject or origin", func(t *testing.T) {
		t.Parallel()

		p := &ratelimit.Policy{Name: "p"}
		assert.Equal(t, "10.0.0.5", ratelimit.ResolveKey(r, p))
	})
}
