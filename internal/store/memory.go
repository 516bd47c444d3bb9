package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/serroba/online-compiler-go/internal/snippet"
	"github.com/serroba/online-compiler-go/internal/user"
)

// MemoryStore is an in-memory implementation of user.Repository and snippet.Repository.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*user.User // id -> user
	emails   map[string]string     // email -> id
	snippets map[string]*snippet.Snippet
}

// NewMemoryStore creates a new in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*user.User),
		emails:   make(map[string]string),
		snippets: make(map[string]*snippet.Snippet),
	}
}

func (m *MemoryStore) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *u
	m.users[u.ID] = &stored
	m.emails[u.Email] = u.ID

	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}

	out := *u

	return &out, nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.RLock()
	id, ok := m.emails[email]
	m.mu.RUnlock()

	if !ok {
		return nil, user.ErrNotFound
	}

	return m.GetByID(ctx, id)
}

func (m *MemoryStore) MarkLogin(_ context.Context, id string, at time.Time) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}

	u.IsVerified = true
	u.LastLogin = at
	out := *u

	return &out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return user.ErrNotFound
	}

	delete(m.emails, u.Email)
	delete(m.users, id)

	return nil
}

// Snippets returns the snippet side of the store.
func (m *MemoryStore) Snippets() *MemorySnippetStore {
	return &MemorySnippetStore{m: m}
}

// MemorySnippetStore implements snippet.Repository on top of a MemoryStore.
type MemorySnippetStore struct {
	m *MemoryStore
}

func (s *MemorySnippetStore) Create(_ context.Context, sn *snippet.Snippet) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	stored := *sn
	s.m.snippets[sn.ID] = &stored

	return nil
}

func (s *MemorySnippetStore) CreateMany(ctx context.Context, snippets []*snippet.Snippet) error {
	for _, sn := range snippets {
		if err := s.Create(ctx, sn); err != nil {
			return err
		}
	}

	return nil
}

func (s *MemorySnippetStore) Get(_ context.Context, userID, id string) (*snippet.Snippet, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	sn, ok := s.m.snippets[id]
	if !ok || sn.UserID != userID {
		return nil, snippet.ErrNotFound
	}

	out := *sn

	return &out, nil
}

func (s *MemorySnippetStore) Update(
	_ context.Context, userID, id string, patch snippet.Patch, at time.Time,
) (*snippet.Snippet, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	sn, ok := s.m.snippets[id]
	if !ok || sn.UserID != userID {
		return nil, snippet.ErrNotFound
	}

	if patch.Language != nil {
		sn.Language = *patch.Language
	}

	if patch.Code != nil {
		sn.Code = *patch.Code
	}

	if patch.Title != nil {
		sn.Title = *patch.Title
	}

	sn.UpdatedAt = at
	out := *sn

	return &out, nil
}

func (s *MemorySnippetStore) Delete(_ context.Context, userID, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	sn, ok := s.m.snippets[id]
	if !ok || sn.UserID != userID {
		return snippet.ErrNotFound
	}

	delete(s.m.snippets, id)

	return nil
}

func (s *MemorySnippetStore) DeleteMany(_ context.Context, userID string, ids []string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var deleted int64

	for _, id := range ids {
		if sn, ok := s.m.snippets[id]; ok && sn.UserID == userID {
			delete(s.m.snippets, id)

			deleted++
		}
	}

	return deleted, nil
}

func (s *MemorySnippetStore) DeleteAll(_ context.Context, userID string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var deleted int64

	for id, sn := range s.m.snippets {
		if sn.UserID == userID {
			delete(s.m.snippets, id)

			deleted++
		}
	}

	return deleted, nil
}

func (s *MemorySnippetStore) List(_ context.Context, f snippet.Filter) (snippet.Page, error) {
	s.m.mu.RLock()
	matches := s.collect(func(sn *snippet.Snippet) bool {
		if sn.UserID != f.UserID {
			return false
		}

		if f.Language != "" && sn.Language != f.Language {
			return false
		}

		if f.Query != "" {
			q := strings.ToLower(f.Query)

			return strings.Contains(strings.ToLower(sn.Title), q) || strings.Contains(strings.ToLower(sn.Code), q)
		}

		return true
	})
	s.m.mu.RUnlock()

	page := snippet.Page{Total: len(matches)}

	if f.Offset >= len(matches) {
		return page, nil
	}

	end := len(matches)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}

	page.Items = matches[f.Offset:end]

	return page, nil
}

func (s *MemorySnippetStore) All(_ context.Context, userID string) ([]*snippet.Snippet, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	return s.collect(func(sn *snippet.Snippet) bool { return sn.UserID == userID }), nil
}

func (s *MemorySnippetStore) Stats(_ context.Context, userID string) (snippet.Stats, error) {
	s.m.mu.RLock()
	owned := s.collect(func(sn *snippet.Snippet) bool { return sn.UserID == userID })
	s.m.mu.RUnlock()

	stats := snippet.Stats{Total: len(owned)}
	counts := make(map[string]int)

	for _, sn := range owned {
		counts[sn.Language]++
		stats.TotalCodeSize += int64(len([]rune(sn.Code)))
	}

	for lang, n := range counts {
		stats.Languages = append(stats.Languages, snippet.LanguageCount{Language: lang, Count: n})
	}

	slices.SortFunc(stats.Languages, func(a, b snippet.LanguageCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}

		return strings.Compare(a.Language, b.Language)
	})

	return stats, nil
}

// collect returns copies of matching snippets, newest first. Callers hold the lock.
func (s *MemorySnippetStore) collect(match func(*snippet.Snippet) bool) []*snippet.Snippet {
	var out []*snippet.Snippet

	for _, sn := range s.m.snippets {
		if match(sn) {
			c := *sn
			out = append(out, &c)
		}
	}

	slices.SortFunc(out, func(a, b *snippet.Snippet) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return out
}

// Shutdown is a no-op for MemoryStore.
func (m *MemoryStore) Shutdown() error {
	return nil
}

// Compile-time checks.
var (
	_ user.Repository    = (*MemoryStore)(nil)
	_ snippet.Repository = (*MemorySnippetStore)(nil)
)
