package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/serroba/online-compiler-go/internal/snippet"
	"github.com/serroba/online-compiler-go/internal/store"
	"github.com/serroba/online-compiler-go/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func TestMemoryStoreUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find by id or email", func(t *testing.T) {
		s := store.NewMemoryStore()
		u := &user.User{ID: "u1", Email: "a@b.com", CreatedAt: baseTime}

		require.NoError(t, s.Create(ctx, u))

		byID, err := s.GetByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", byID.Email)

		byEmail, err := s.GetByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", byEmail.ID)
	})

	t.Run("unknown user returns ErrNotFound", func(t *testing.T) {
		s := store.NewMemoryStore()

		_, err := s.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, user.ErrNotFound)

		_, err = s.GetByEmail(ctx, "missing@x.com")
		assert.ErrorIs(t, err, user.ErrNotFound)

		_, err = s.MarkLogin(ctx, "missing", baseTime)
		assert.ErrorIs(t, err, user.ErrNotFound)

		assert.ErrorIs(t, s.Delete(ctx, "missing"), user.ErrNotFound)
	})

	t.Run("mark login verifies and stamps", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Create(ctx, &user.User{ID: "u1", Email: "a@b.com"}))

		u, err := s.MarkLogin(ctx, "u1", baseTime)
		require.NoError(t, err)
		assert.True(t, u.IsVerified)
		assert.Equal(t, baseTime, u.LastLogin)
	})

	t.Run("delete frees the email", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Create(ctx, &user.User{ID: "u1", Email: "a@b.com"}))
		require.NoError(t, s.Delete(ctx, "u1"))

		_, err := s.GetByEmail(ctx, "a@b.com")
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}

func seedSnippets(t *testing.T, repo snippet.Repository, userID string, n int) {
	t.Helper()

	langs := []string{"go", "python", "go"}

	for i := range n {
		require.NoError(t, repo.Create(context.Background(), &snippet.Snippet{
			ID:        fmt.Sprintf("%s-s%02d", userID, i),
			UserID:    userID,
			Language:  langs[i%len(langs)],
			Code:      fmt.Sprintf("code %d", i),
			Title:     fmt.Sprintf("Title %d", i),
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestMemorySnippetStore(t *testing.T) {
	ctx := context.Background()

	t.Run("get is scoped to the owner", func(t *testing.T) {
		repo := store.NewMemoryStore().Snippets()
		seedSnippets(t, repo, "u1", 1)

		_, err := repo.Get(ctx, "u2", "u1-s00")
		assert.ErrorIs(t, err, snippet.ErrNotFound)

		s, err := repo.Get(ctx, "u1", "u1-s00")
		require.NoError(t, err)
		assert.Equal(t, "Title 0", s.Title)
	})

	t.Run("list pages newest first", func(t *testing.T) {
		repo := store.NewMemoryStore().Snippets()
		seedSnippets(t, repo, "u1", 5)
		seedSnippets(t, repo, "u2", 2)

		page, err := repo.List(ctx, snippet.Filter{UserID: "u1", Offset: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "u1-s02", page.Items[0].ID)
		assert.Equal(t, "u1-s01", page.Items[1].ID)
	})

	t.Run("list filters by language", func(t *testing.T) {
		repo := store.NewMemoryStore().Snippets()
		seedSnippets(t, repo, "u1", 6)

		page, err := repo.List(ctx, snippet.Filter{UserID: "u1", Language: "python", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("search matches title or code case-insensitively", func(t *testing.T) {
		repo := store.NewMemoryStore().Snippets()
		seedSnippets(t, repo, "u1", 3)

		page, err := repo.List(ctx, snippet.Filter{UserID: "u1", Query: "TITLE 1", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)

		page, err = repo.List(ctx, snippet.Filter{UserID: "u1", Query: "CODE", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
	})

	t.Run("offset past the end returns no items", func(t *testing.T) {
		repo := store.NewMemoryStore().Snippets()
		seedSnippets(t, repo, "u1", 2)

		page, err := repo.List(ctx, snippet.Filter{UserID: "u1", Offset: 10, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Empty(t, page.Items)
	})

	t.Run("update applies only set fields", func(t *testing.T) {
		repo := store.NewMemoryStore().Snippets()
		seedSnippets(t, repo, "u1", 1)

		title := "Renamed"
		s, err := repo.Update(ctx, "u1", "u1-s00", snippet.Patch{Title: &title}, baseTime.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "Renamed", s.Title)
		assert.Equal(t, "code 0", s.Code)
		assert.Equal(t, baseTime.Add(time.Hour), s.UpdatedAt)

		_, err = repo.Update(ctx, "u2", "u1-s00", snippet.Patch{Title: &title}, baseTime)
		assert.ErrorIs(t, err, snippet.ErrNotFound)
	})

	t.Run("delete many counts only owned snippets", func(t *testing.T) {
		repo := store.NewMemoryStore().Snippets()
		seedSnippets(t, repo, "u1", 3)
		seedSnippets(t, repo, "u2", 1)

		n, err := repo.DeleteMany(ctx, "u1", []string{"u1-s00", "u1-s01", "u2-s00", "nope"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = repo.Get(ctx, "u2", "u2-s00")
		assert.NoError(t, err)
	})

	t.Run("delete all and stats", func(t *testing.T) {
		repo := store.NewMemoryStore().Snippets()
		seedSnippets(t, repo, "u1", 3)

		stats, err := repo.Stats(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, int64(len("code 0")*3), stats.TotalCodeSize)
		assert.Equal(t, []snippet.LanguageCount{{Language: "go", Count: 2}, {Language: "python", Count: 1}}, stats.Languages)

		n, err := repo.DeleteAll(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		all, err := repo.All(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestOTPMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes a matching code once", func(t *testing.T) {
		s := store.NewOTPMemoryStore()
		require.NoError(t, s.Save(ctx, "a@b.com", "123456", time.Minute))

		ok, err := s.Consume(ctx, "a@b.com", "000000")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.Consume(ctx, "a@b.com", "123456")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, _ = s.Consume(ctx, "a@b.com", "123456")
		assert.False(t, ok, "a code can only be used once")
	})

	t.Run("a new code replaces the previous one", func(t *testing.T) {
		s := store.NewOTPMemoryStore()
		require.NoError(t, s.Save(ctx, "a@b.com", "111111", time.Minute))
		require.NoError(t, s.Save(ctx, "a@b.com", "222222", time.Minute))

		ok, _ := s.Consume(ctx, "a@b.com", "111111")
		assert.False(t, ok)

		ok, _ = s.Consume(ctx, "a@b.com", "222222")
		assert.True(t, ok)
	})

	t.Run("expired codes are rejected", func(t *testing.T) {
		s := store.NewOTPMemoryStore()
		require.NoError(t, s.Save(ctx, "a@b.com", "123456", -time.Second))

		ok, err := s.Consume(ctx, "a@b.com", "123456")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty code never matches", func(t *testing.T) {
		s := store.NewOTPMemoryStore()

		ok, err := s.Consume(ctx, "a@b.com", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
