package handlers

import (
	"net/http"
	"time"

	"github.com/serroba/online-compiler-go/internal/judge"
	"github.com/serroba/online-compiler-go/internal/snippet"
	"github.com/serroba/online-compiler-go/internal/user"
)

// RequestOTPRequest is the request body for issuing a one-time code.
type RequestOTPRequest struct {
	Body struct {
		Email string `doc:"Address the code is sent to" example:"ada@example.com" json:"email,omitempty"`
	}
}

// RequestOTPResponse acknowledges that a code was issued.
type RequestOTPResponse struct {
	Body struct {
		Success bool   `json:"success"`
		Message string `json:"message" example:"OTP sent to your email"`
		Email   string `json:"email"   example:"ada@example.com"`
	}
}

// VerifyOTPRequest is the request body for logging in with a one-time code.
type VerifyOTPRequest struct {
	Body struct {
		Email string `doc:"Address the code was sent to" example:"ada@example.com" json:"email,omitempty"`
		OTP   string `doc:"Six digit code"               example:"123456"          json:"otp,omitempty"`
	}
}

// SessionUser identifies the logged in user.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// VerifyOTPResponse sets the session cookie.
type VerifyOTPResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Success bool        `json:"success"`
		Message string      `json:"message" example:"Login successful"`
		User    SessionUser `json:"user"`
	}
}

// LogoutResponse clears the session cookie.
type LogoutResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Success bool   `json:"success"`
		Message string `json:"message" example:"Logged out successfully"`
	}
}

// CompileRequest is the request body for running code.
type CompileRequest struct {
	Body struct {
		Language string `doc:"One of cpp, java, javascript, python" example:"python"   json:"language,omitempty"`
		Code     string `doc:"Source code"                          example:"print(1)" json:"code,omitempty"`
		Input    string `doc:"Standard input"                                          json:"input,omitempty"`
	}
}

// CompileResponse is the formatted execution result.
type CompileResponse struct {
	Body judge.Result
}

// LanguagesResponse lists judge languages.
type LanguagesResponse struct {
	Body struct {
		Success    bool             `json:"success"`
		Languages  []judge.Language `json:"languages"`
		Compilable []string         `doc:"Languages the compile endpoint accepts" json:"compilable"`
	}
}

// SubmissionRequest addresses a judge submission.
type SubmissionRequest struct {
	Token string `doc:"Judge submission token" path:"token"`
}

// SubmissionsRequest addresses several judge submissions.
type SubmissionsRequest struct {
	Tokens []string `doc:"Comma separated judge submission tokens" maxItems:"20" query:"tokens"`
}

// SubmissionsResponse carries the results of several submissions.
type SubmissionsResponse struct {
	Body struct {
		Success     bool           `json:"success"`
		Submissions []judge.Result `json:"submissions"`
		Accepted    int            `doc:"Submissions the judge accepted" json:"accepted"`
	}
}

// ProfileUser is the public view of an account.
type ProfileUser struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	IsVerified bool       `json:"isVerified"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
}

func profileOf(u *user.User, withDates bool) ProfileUser {
	p := ProfileUser{ID: u.ID, Email: u.Email, IsVerified: u.IsVerified}

	if withDates {
		p.CreatedAt = timePtr(u.CreatedAt)
		p.LastLogin = timePtr(u.LastLogin)
	}

	return p
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

// ProfileResponse returns the caller's account.
type ProfileResponse struct {
	Body struct {
		Success bool        `json:"success"`
		Message string      `json:"message,omitempty"`
		User    ProfileUser `json:"user"`
	}
}

// UpdateProfileRequest may only restate the caller's email.
type UpdateProfileRequest struct {
	Body struct {
		Email string `doc:"Must match the current address" json:"email,omitempty"`
	}
}

// StatsResponse summarizes the caller's snippets.
type StatsResponse struct {
	Body struct {
		Success bool `json:"success"`
		Stats   struct {
			TotalSnippets     int                     `json:"totalSnippets"`
			MemberSince       *time.Time              `json:"memberSince"`
			LastActive        *time.Time              `json:"lastActive"`
			LanguageBreakdown []snippet.LanguageCount `json:"languageBreakdown"`
			TotalCodeSize     int64                   `json:"totalCodeSize"`
		} `json:"stats"`
	}
}

// ActivityRequest bounds the recent activity list.
type ActivityRequest struct {
	Limit int `default:"20" doc:"Number of recent snippets" maximum:"100" minimum:"1" query:"limit"`
}

// ActivityResponse lists the caller's recent activity.
type ActivityResponse struct {
	Body struct {
		Success  bool `json:"success"`
		Activity struct {
			AccountCreated *time.Time       `json:"accountCreated"`
			LastLogin      *time.Time       `json:"lastLogin"`
			RecentActivity []SnippetSummary `json:"recentActivity"`
		} `json:"activity"`
	}
}

// DeleteAccountResponse confirms account removal and clears the session cookie.
type DeleteAccountResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Success         bool   `json:"success"`
		Message         string `json:"message"`
		DeletedSnippets int64  `json:"deletedSnippets"`
	}
}

// SnippetSummary is a snippet without its code.
type SnippetSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
}

// SnippetView is a complete snippet.
type SnippetView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func summaryOf(s *snippet.Snippet) SnippetSummary {
	return SnippetSummary{ID: s.ID, Title: s.Title, Language: s.Language, CreatedAt: s.CreatedAt}
}

func summariesOf(items []*snippet.Snippet) []SnippetSummary {
	out := make([]SnippetSummary, 0, len(items))
	for _, s := range items {
		out = append(out, summaryOf(s))
	}

	return out
}

func viewOf(s *snippet.Snippet) SnippetView {
	return SnippetView{
		ID:        s.ID,
		UserID:    s.UserID,
		Title:     s.Title,
		Language:  s.Language,
		Code:      s.Code,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// Pagination describes the position of a page in a result set.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Limit int `json:"limit"`
}

func paginate(total, page, limit int) Pagination {
	return Pagination{
		Total: total,
		Page:  page,
		Pages: (total + limit - 1) / limit,
		Limit: limit,
	}
}

// CreateSnippetRequest is the request body for saving a snippet.
type CreateSnippetRequest struct {
	Body struct {
		Language string `example:"python"   json:"language,omitempty"`
		Code     string `example:"print(1)" json:"code,omitempty"`
		Title    string `example:"Hello"    json:"title,omitempty"`
	}
}

// CreateSnippetResponse is returned after a snippet is saved.
type CreateSnippetResponse struct {
	Body struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Snippet SnippetSummary `json:"snippet"`
	}
}

// ListSnippetsRequest selects a page of the caller's snippets.
type ListSnippetsRequest struct {
	Page     int    `default:"1"  minimum:"1"                     query:"page"`
	Limit    int    `default:"10" maximum:"100" minimum:"1"       query:"limit"`
	Language string `doc:"Language filter, or all" query:"language"`
}

// ListSnippetsResponse is one page of snippet summaries.
type ListSnippetsResponse struct {
	Body struct {
		Success    bool             `json:"success"`
		Snippets   []SnippetSummary `json:"snippets"`
		Pagination Pagination       `json:"pagination"`
	}
}

// SnippetRequest addresses one of the caller's snippets.
type SnippetRequest struct {
	SnippetID string `doc:"Snippet id" path:"snippetId"`
}

// SnippetResponse returns a complete snippet.
type SnippetResponse struct {
	Body struct {
		Success bool        `json:"success"`
		Message string      `json:"message,omitempty"`
		Snippet SnippetView `json:"snippet"`
	}
}

// UpdateSnippetRequest changes the non-empty fields of a snippet.
type UpdateSnippetRequest struct {
	SnippetID string `doc:"Snippet id" path:"snippetId"`
	Body      struct {
		Language string `json:"language,omitempty"`
		Code     string `json:"code,omitempty"`
		Title    string `json:"title,omitempty"`
	}
}

// DeleteSnippetsRequest lists snippets to remove.
type DeleteSnippetsRequest struct {
	Body struct {
		SnippetIDs []string `json:"snippetIds,omitempty"`
	}
}

// DeleteSnippetsResponse reports how many snippets were removed.
type DeleteSnippetsResponse struct {
	Body struct {
		Success      bool   `json:"success"`
		Message      string `json:"message"`
		DeletedCount int64  `json:"deletedCount"`
	}
}

// SearchSnippetsRequest searches titles and code.
type SearchSnippetsRequest struct {
	Query string `doc:"Case-insensitive text" path:"query"`
	Page  int    `default:"1"  minimum:"1"               query:"page"`
	Limit int    `default:"10" maximum:"100" minimum:"1" query:"limit"`
}

// SearchSnippetsResponse is one page of matches.
type SearchSnippetsResponse struct {
	Body struct {
		Success    bool             `json:"success"`
		Query      string           `json:"query"`
		Snippets   []SnippetSummary `json:"snippets"`
		Pagination Pagination       `json:"pagination"`
	}
}

// ExportResponse is a downloadable dump of the caller's snippets.
type ExportResponse struct {
	ContentDisposition string `header:"Content-Disposition"`
	Body               struct {
		User         string        `json:"user"`
		ExportDate   time.Time     `json:"exportDate"`
		SnippetCount int           `json:"snippetCount"`
		Snippets     []SnippetView `json:"snippets"`
	}
}

// ImportedSnippet is one entry of an import.
type ImportedSnippet struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`
	Title    string `json:"title,omitempty"`
}

// ImportRequest carries snippets to import. Invalid entries are ignored.
type ImportRequest struct {
	Body struct {
		Snippets []ImportedSnippet `json:"snippets,omitempty"`
	}
}

// ImportResponse reports the imported snippets.
type ImportResponse struct {
	Body struct {
		Success       bool             `json:"success"`
		Message       string           `json:"message"`
		ImportedCount int              `json:"importedCount"`
		Snippets      []SnippetSummary `json:"snippets"`
	}
}
