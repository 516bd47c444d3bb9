package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// Policy names.
const (
	OTPRequest      = "otp-request"
	OTPVerify       = "otp-verify"
	Compile         = "compile"
	GeneralAPI      = "general-api"
	Sensitive       = "sensitive"
	SnippetMutation = "snippet-mutation"
	Login           = "login"
	ExportImport    = "export-import"
)

// EmailField is the body field carrying a claimed identity on pre-authentication routes.
const EmailField = "email"

var unmeteredPrefixes = []string{"/api/health", "/api/docs", "/api/status"}

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			Name:     OTPRequest,
			Window:   15 * time.Minute,
			Quota:    FixedQuota(5),
			Key:      ClaimedIdentity(EmailField),
			Skip:     func(r *Request) bool { return r.Path == "/api/health" },
			OnReject: StaticMessage("Too many OTP requests. Try again after 15 minutes."),
		},
		{
			Name:     OTPVerify,
			Window:   15 * time.Minute,
			Quota:    FixedQuota(10),
			Key:      ClaimedIdentity(EmailField),
			OnReject: StaticMessage("Too many OTP verification attempts."),
		},
		{
			Name:   Compile,
			Window: time.Minute,
			Quota:  AuthQuota(15, 5),
			Key:    SubjectOrOrigin,
			OnReject: func(r *Request, _ Decision) string {
				if r.Authenticated() {
					return "Too many compilation requests for user."
				}

				return "Too many compilation requests for guest."
			},
		},
		{
			Name:   GeneralAPI,
			Window: 15 * time.Minute,
			Quota:  FixedQuota(100),
			Key:    SubjectOrOrigin,
			Skip: func(r *Request) bool {
				for _, prefix := range unmeteredPrefixes {
					if strings.HasPrefix(r.Path, prefix) {
						return true
					}
				}

				return false
			},
			OnReject: StaticMessage(DefaultMessage),
		},
		{
			Name:     Sensitive,
			Window:   time.Hour,
			Quota:    FixedQuota(3),
			Key:      Prefixed("sensitive", SubjectOrOrigin),
			Skip:     func(r *Request) bool { return !strings.Contains(r.Path, "/sensitive") },
			OnReject: StaticMessage("Too many requests. Try again after an hour."),
		},
		{
			Name:   SnippetMutation,
			Window: 10 * time.Minute,
			Quota:  FixedQuota(30),
			Key:    SubjectOrOrigin,
			Skip: func(r *Request) bool {
				if !r.Authenticated() {
					return true
				}

				switch r.Method {
				case http.MethodPost, http.MethodPut, http.MethodDelete:
					return false
				default:
					return true
				}
			},
			OnReject: StaticMessage("Too many snippet operations."),
		},
		{
			Name:     Login,
			Window:   15 * time.Minute,
			Quota:    FixedQuota(5),
			Key:      ClaimedIdentity(EmailField),
			Skip:     func(r *Request) bool { return r.Method != http.MethodPost },
			OnReject: StaticMessage("Too many login attempts. Try later."),
		},
		{
			Name:     ExportImport,
			Window:   24 * time.Hour,
			Quota:    FixedQuota(5),
			Key:      SubjectOrOrigin,
			Skip:     func(r *Request) bool { return !r.Authenticated() },
			OnReject: StaticMessage("Export/Import limit exceeded."),
		},
	}
}
