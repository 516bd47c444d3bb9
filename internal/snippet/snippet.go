package snippet

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("snippet not found")

// Snippet is a piece of source code saved by a user.
type Snippet struct {
	ID        string
	UserID    string
	Language  string
	Code      string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patch holds the fields of an update. Nil fields are left unchanged.
type Patch struct {
	Language *string
	Code     *string
	Title    *string
}

// Filter selects a page of a user's snippets, newest first.
type Filter struct {
	UserID   string
	Language string
	// Query matches title or code, case-insensitively. Empty lists everything.
	Query  string
	Offset int
	Limit  int
}

// Page is one page of results and the total number of matches.
type Page struct {
	Items []*Snippet
	Total int
}

// LanguageCount is the number of snippets written in one language.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// Stats summarizes a user's snippets.
type Stats struct {
	Total         int
	Languages     []LanguageCount
	TotalCodeSize int64
}

// Repository persists snippets. Every lookup is scoped to the owning user.
type Repository interface {
	Create(ctx context.Context, s *Snippet) error
	CreateMany(ctx context.Context, snippets []*Snippet) error
	Get(ctx context.Context, userID, id string) (*Snippet, error)
	Update(ctx context.Context, userID, id string, patch Patch, at time.Time) (*Snippet, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteMany(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
	List(ctx context.Context, f Filter) (Page, error)
	All(ctx context.Context, userID string) ([]*Snippet, error)
	Stats(ctx context.Context, userID string) (Stats, error)
}
