package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnnamedPolicy    = errors.New("policy has no name")
	ErrDuplicatePolicy  = errors.New("duplicate policy name")
	ErrInvalidWindow    = errors.New("policy window must be positive")
	ErrMissingQuota     = errors.New("policy has no quota")
	ErrUnknownPolicy    = errors.New("unknown policy")
	ErrDefaultNotInList = errors.New("default policy is not defined")
)

// DefaultMessage is used when a policy has no reject handler.
const DefaultMessage = "Too many requests, please try again later."

// QuotaFunc resolves the quota for a request. Quotas may depend on the caller's identity.
type QuotaFunc func(r *Request) int64

// SkipFunc reports whether a request bypasses a policy entirely.
type SkipFunc func(r *Request) bool

// RejectFunc builds the message returned to a rejected caller.
type RejectFunc func(r *Request, d Decision) string

// FixedQuota returns a quota that does not depend on the request.
func FixedQuota(n int64) QuotaFunc {
	return func(*Request) int64 { return n }
}

// AuthQuota returns one quota for authenticated callers and another for guests.
func AuthQuota(authenticated, guest int64) QuotaFunc {
	return func(r *Request) int64 {
		if r.Authenticated() {
			return authenticated
		}

		return guest
	}
}

// StaticMessage returns a reject handler that always yields msg.
func StaticMessage(msg string) RejectFunc {
	return func(*Request, Decision) string { return msg }
}

// Policy is a named, independently configured limiter. Each policy owns its own
// counter space: counters are keyed by name + ":" + identity key.
type Policy struct {
	Name     string
	Window   time.Duration
	Quota    QuotaFunc
	Key      KeyFunc
	Skip     SkipFunc
	OnReject RejectFunc
}

func (p *Policy) validate() error {
	if p.Name == "" {
		return ErrUnnamedPolicy
	}

	if p.Window <= 0 {
		return fmt.Errorf("%s: %w", p.Name, ErrInvalidWindow)
	}

	if p.Quota == nil {
		return fmt.Errorf("%s: %w", p.Name, ErrMissingQuota)
	}

	return nil
}

// Message resolves the rejection message for d.
func (p *Policy) Message(r *Request, d Decision) string {
	if p.OnReject == nil {
		return DefaultMessage
	}

	if msg := p.OnReject(r, d); msg != "" {
		return msg
	}

	return DefaultMessage
}

// PolicySet is the immutable registry of policies built at startup.
type PolicySet struct {
	policies map[string]*Policy
	order    []string
	defaults []string
}

// NewPolicySet validates policies and the names of the policies applied to every
// request. A misconfigured set is a startup error.
func NewPolicySet(policies []Policy, defaults ...string) (*PolicySet, error) {
	set := &PolicySet{
		policies: make(map[string]*Policy, len(policies)),
		order:    make([]string, 0, len(policies)),
	}

	for i := range policies {
		p := policies[i]
		if err := p.validate(); err != nil {
			return nil, err
		}

		if _, exists := set.policies[p.Name]; exists {
			return nil, fmt.Errorf("%s: %w", p.Name, ErrDuplicatePolicy)
		}

		set.policies[p.Name] = &p
		set.order = append(set.order, p.Name)
	}

	for _, name := range defaults {
		if _, ok := set.policies[name]; !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrDefaultNotInList)
		}
	}

	set.defaults = append([]string(nil), defaults...)

	return set, nil
}

// Get returns the policy with the given name.
func (s *PolicySet) Get(name string) (*Policy, bool) {
	p, ok := s.policies[name]

	return p, ok
}

// Names returns policy names in registration order.
func (s *PolicySet) Names() []string {
	return append([]string(nil), s.order...)
}

// Defaults returns the names of the policies applied to every request.
func (s *PolicySet) Defaults() []string {
	return append([]string(nil), s.defaults...)
}

// Resolve returns the policies to evaluate for a route: the defaults followed by
// the route's own policies, without duplicates.
func (s *PolicySet) Resolve(route []string) ([]*Policy, error) {
	seen := make(map[string]struct{}, len(s.defaults)+len(route))
	out := make([]*Policy, 0, len(s.defaults)+len(route))

	for _, names := range [][]string{s.defaults, route} {
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}

			p, ok := s.policies[name]
			if !ok {
				return nil, fmt.Errorf("%s: %w", name, ErrUnknownPolicy)
			}

			seen[name] = struct{}{}

			out = append(out, p)
		}
	}

	return out, nil
}
