package ratelimit

import (
	"encoding/json"
	"strings"
)

const unknownOrigin = "unknown"

// Request is the view of an inbound request that policies evaluate.
type Request struct {
	Method    string
	Path      string
	Origin    string
	SubjectID string

	loadBody func() []byte
	fields   map[string]any
	parsed   bool
}

// NewRequest creates a request view. loadBody is called at most once, and only when a
// policy needs a field from the body; it may be nil.
func NewRequest(method, path, origin, subjectID string, loadBody func() []byte) *Request {
	return &Request{
		Method:    method,
		Path:      path,
		Origin:    origin,
		SubjectID: subjectID,
		loadBody:  loadBody,
	}
}

// Authenticated reports whether an upstream auth step attached a subject.
func (r *Request) Authenticated() bool {
	return r.SubjectID != ""
}

// Field returns a top-level string field of a JSON body, or "" when the body is
// missing, not JSON, or the field is not a string.
func (r *Request) Field(name string) string {
	if !r.parsed {
		r.parsed = true

		if r.loadBody != nil {
			if body := r.loadBody(); len(body) > 0 {
				_ = json.Unmarshal(body, &r.fields)
			}
		}
	}

	v, _ := r.fields[name].(string)

	return v
}

// KeyFunc derives the identity part of a counter key from a request.
type KeyFunc func(r *Request) string

// OriginKey keys on the network origin address.
func OriginKey(r *Request) string {
	if r.Origin == "" {
		return unknownOrigin
	}

	return r.Origin
}

// SubjectOrOrigin keys on the authenticated subject, falling back to the origin.
func SubjectOrOrigin(r *Request) string {
	if r.Authenticated() {
		return "user:" + r.SubjectID
	}

	return OriginKey(r)
}

// ClaimedIdentity keys on a declared identity field of the body (for example an email
// on pre-authentication flows). The value is case-normalized; when it is absent the
// origin address is used instead.
func ClaimedIdentity(field string) KeyFunc {
	return func(r *Request) string {
		if v := strings.ToLower(strings.TrimSpace(r.Field(field))); v != "" {
			return v
		}

		return OriginKey(r)
	}
}

// Prefixed namespaces the key produced by base.
func Prefixed(prefix string, base KeyFunc) KeyFunc {
	return func(r *Request) string {
		return prefix + ":" + base(r)
	}
}

// ResolveKey computes the identity key for r under p. It never panics: a key rule
// that fails falls back to the origin address.
func ResolveKey(r *Request, p *Policy) (key string) {
	if p.Key == nil {
		return SubjectOrOrigin(r)
	}

	defer func() {
		if rec := recover(); rec != nil {
			key = OriginKey(r)
		}
	}()

	key = p.Key(r)
	if key == "" {
		key = OriginKey(r)
	}

	return key
}
