package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/online-compiler-go/internal/ratelimit"
	"github.com/serroba/online-compiler-go/internal/session"
)

const maxImportBytes = 10 << 20

// Handlers groups the API handlers registered by RegisterRoutes.
type Handlers struct {
	Auth    *AuthHandler
	Compile *CompileHandler
	User    *UserHandler
}

// metadata binds admission policies to an operation and marks it as requiring a session.
func metadata(authRequired bool, policies ...string) map[string]any {
	m := ratelimit.Gated(policies...)
	if authRequired {
		m[session.MetadataKey] = true
	}

	return m
}

// RegisterRoutes registers the API routes with their admission policies.
// The set's default policies apply to every route in addition to the ones listed here.
func RegisterRoutes(api huma.API, h Handlers) {
	registerAuthRoutes(api, h.Auth)
	registerCompileRoutes(api, h.Compile)
	registerUserRoutes(api, h.User)
	registerSnippetRoutes(api, h.User)
}

func registerAuthRoutes(api huma.API, h *AuthHandler) {
	tags := []string{"Auth"}

	huma.Register(api, huma.Operation{
		OperationID: "request-otp",
		Method:      http.MethodPost,
		Path:        "/api/auth/request-otp",
		Summary:     "Request a one-time code",
		Tags:        tags,
		Metadata:    metadata(false, ratelimit.OTPRequest),
	}, h.RequestOTP)

	// Login runs first so a sixth attempt for one email gets the login message.
	huma.Register(api, huma.Operation{
		OperationID: "verify-otp",
		Method:      http.MethodPost,
		Path:        "/api/auth/verify-otp",
		Summary:     "Log in with a one-time code",
		Tags:        tags,
		Metadata:    metadata(false, ratelimit.Login, ratelimit.OTPVerify),
	}, h.VerifyOTP)

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/auth/logout",
		Summary:     "Clear the session cookie",
		Tags:        tags,
		Metadata:    metadata(false, ratelimit.OTPRequest),
	}, h.Logout)
}

func registerCompileRoutes(api huma.API, h *CompileHandler) {
	tags := []string{"Compiler"}

	huma.Register(api, huma.Operation{
		OperationID: "compile",
		Method:      http.MethodPost,
		Path:        "/api/compiler/compile",
		Summary:     "Run code",
		Description: "Submits code to the judge and waits for the result. Guests get a smaller budget than users.",
		Tags:        tags,
		Metadata:    metadata(false, ratelimit.Compile),
	}, h.Compile)

	huma.Register(api, huma.Operation{
		OperationID: "list-submissions",
		Method:      http.MethodGet,
		Path:        "/api/compiler/submissions",
		Summary:     "Poll several submissions",
		Tags:        tags,
		Metadata:    metadata(false),
	}, h.Submissions)

	huma.Register(api, huma.Operation{
		OperationID: "get-submission",
		Method:      http.MethodGet,
		Path:        "/api/compiler/submissions/{token}",
		Summary:     "Poll a submission",
		Tags:        tags,
		Metadata:    metadata(false),
	}, h.Submission)

	huma.Register(api, huma.Operation{
		OperationID: "list-languages",
		Method:      http.MethodGet,
		Path:        "/api/compiler/languages",
		Summary:     "List judge languages",
		Tags:        tags,
		Metadata:    metadata(false),
	}, h.Languages)
}

func registerUserRoutes(api huma.API, h *UserHandler) {
	tags := []string{"User"}

	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/api/user/profile",
		Summary:     "Get the caller's profile",
		Tags:        tags,
		Metadata:    metadata(true),
	}, h.Profile)

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPut,
		Path:        "/api/user/profile",
		Summary:     "Touch the caller's profile",
		Description: "The email address cannot be changed.",
		Tags:        tags,
		Metadata:    metadata(true),
	}, h.UpdateProfile)

	huma.Register(api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/user/stats",
		Summary:     "Summarize the caller's snippets",
		Tags:        tags,
		Metadata:    metadata(true),
	}, h.Stats)

	huma.Register(api, huma.Operation{
		OperationID: "get-activity",
		Method:      http.MethodGet,
		Path:        "/api/user/activity",
		Summary:     "List recent activity",
		Tags:        tags,
		Metadata:    metadata(true),
	}, h.Activity)

	huma.Register(api, huma.Operation{
		OperationID: "delete-account",
		Method:      http.MethodDelete,
		Path:        "/api/user/sensitive/account",
		Summary:     "Delete the caller's account and snippets",
		Tags:        tags,
		Metadata:    metadata(true, ratelimit.Sensitive),
	}, h.DeleteAccount)

	huma.Register(api, huma.Operation{
		OperationID: "export-snippets",
		Method:      http.MethodGet,
		Path:        "/api/user/export",
		Summary:     "Download every snippet",
		Tags:        tags,
		Metadata:    metadata(true, ratelimit.ExportImport),
	}, h.Export)

	huma.Register(api, huma.Operation{
		OperationID:   "import-snippets",
		Method:        http.MethodPost,
		Path:          "/api/user/import",
		Summary:       "Import snippets",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  maxImportBytes,
		Metadata:      metadata(true, ratelimit.ExportImport),
	}, h.Import)
}

func registerSnippetRoutes(api huma.API, h *UserHandler) {
	tags := []string{"Snippets"}

	huma.Register(api, huma.Operation{
		OperationID:   "create-snippet",
		Method:        http.MethodPost,
		Path:          "/api/user/snippets",
		Summary:       "Save a snippet",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
		Metadata:      metadata(true, ratelimit.SnippetMutation),
	}, h.CreateSnippet)

	huma.Register(api, huma.Operation{
		OperationID: "list-snippets",
		Method:      http.MethodGet,
		Path:        "/api/user/snippets",
		Summary:     "List snippets",
		Tags:        tags,
		Metadata:    metadata(true),
	}, h.ListSnippets)

	huma.Register(api, huma.Operation{
		OperationID: "delete-snippets",
		Method:      http.MethodDelete,
		Path:        "/api/user/snippets",
		Summary:     "Delete several snippets",
		Tags:        tags,
		Metadata:    metadata(true, ratelimit.SnippetMutation),
	}, h.DeleteSnippets)

	huma.Register(api, huma.Operation{
		OperationID: "search-snippets",
		Method:      http.MethodGet,
		Path:        "/api/user/snippets/search/{query}",
		Summary:     "Search snippet titles and code",
		Tags:        tags,
		Metadata:    metadata(true),
	}, h.SearchSnippets)

	huma.Register(api, huma.Operation{
		OperationID: "get-snippet",
		Method:      http.MethodGet,
		Path:        "/api/user/snippets/{snippetId}",
		Summary:     "Get a snippet",
		Tags:        tags,
		Metadata:    metadata(true),
	}, h.GetSnippet)

	huma.Register(api, huma.Operation{
		OperationID: "update-snippet",
		Method:      http.MethodPut,
		Path:        "/api/user/snippets/{snippetId}",
		Summary:     "Update a snippet",
		Tags:        tags,
		Metadata:    metadata(true, ratelimit.SnippetMutation),
	}, h.UpdateSnippet)

	huma.Register(api, huma.Operation{
		OperationID: "delete-snippet",
		Method:      http.MethodDelete,
		Path:        "/api/user/snippets/{snippetId}",
		Summary:     "Delete a snippet",
		Tags:        tags,
		Metadata:    metadata(true, ratelimit.SnippetMutation),
	}, h.DeleteSnippet)
}
