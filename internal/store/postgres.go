package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/online-compiler-go/internal/snippet"
	"github.com/serroba/online-compiler-go/internal/user"
)

// PostgresStore is a PostgreSQL implementation of user.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed user store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `id, email, is_verified, created_at, last_login`

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u         user.User
		lastLogin *time.Time
	)

	if err := row.Scan(&u.ID, &u.Email, &u.IsVerified, &u.CreatedAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}

		return nil, err
	}

	if lastLogin != nil {
		u.LastLogin = *lastLogin
	}

	return &u, nil
}

func (p *PostgresStore) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (id, email, is_verified, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := p.pool.Exec(ctx, query, u.ID, u.Email, u.IsVerified, u.CreatedAt, nullableTime(u.LastLogin))

	return err
}

func (p *PostgresStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (p *PostgresStore) MarkLogin(ctx context.Context, id string, at time.Time) (*user.User, error) {
	query := `
		UPDATE users SET is_verified = TRUE, last_login = $2
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(p.pool.QueryRow(ctx, query, id, at))
}

// Delete removes the user; snippets go with it through the foreign key.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

// Snippets returns the snippet side of the store.
func (p *PostgresStore) Snippets() *PostgresSnippetStore {
	return &PostgresSnippetStore{pool: p.pool}
}

// PostgresSnippetStore is a PostgreSQL implementation of snippet.Repository.
type PostgresSnippetStore struct {
	pool *pgxpool.Pool
}

const snippetColumns = `id, user_id, language, code, title, created_at, updated_at`

func scanSnippet(row pgx.Row) (*snippet.Snippet, error) {
	var s snippet.Snippet

	err := row.Scan(&s.ID, &s.UserID, &s.Language, &s.Code, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, snippet.ErrNotFound
		}

		return nil, err
	}

	return &s, nil
}

func (p *PostgresSnippetStore) Create(ctx context.Context, s *snippet.Snippet) error {
	query := `
		INSERT INTO snippets (id, user_id, language, code, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := p.pool.Exec(ctx, query, s.ID, s.UserID, s.Language, s.Code, s.Title, s.CreatedAt, s.UpdatedAt)

	return err
}

func (p *PostgresSnippetStore) CreateMany(ctx context.Context, snippets []*snippet.Snippet) error {
	rows := make([][]any, 0, len(snippets))
	for _, s := range snippets {
		rows = append(rows, []any{s.ID, s.UserID, s.Language, s.Code, s.Title, s.CreatedAt, s.UpdatedAt})
	}

	_, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"snippets"},
		[]string{"id", "user_id", "language", "code", "title", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy snippets: %w", err)
	}

	return nil
}

func (p *PostgresSnippetStore) Get(ctx context.Context, userID, id string) (*snippet.Snippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM snippets WHERE id = $1 AND user_id = $2`

	return scanSnippet(p.pool.QueryRow(ctx, query, id, userID))
}

func (p *PostgresSnippetStore) Update(
	ctx context.Context, userID, id string, patch snippet.Patch, at time.Time,
) (*snippet.Snippet, error) {
	query := `
		UPDATE snippets SET
			language = COALESCE($3, language),
			code = COALESCE($4, code),
			title = COALESCE($5, title),
			updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING ` + snippetColumns

	return scanSnippet(p.pool.QueryRow(ctx, query, id, userID, patch.Language, patch.Code, patch.Title, at))
}

func (p *PostgresSnippetStore) Delete(ctx context.Context, userID, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM snippets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return snippet.ErrNotFound
	}

	return nil
}

func (p *PostgresSnippetStore) DeleteMany(ctx context.Context, userID string, ids []string) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM snippets WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (p *PostgresSnippetStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM snippets WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (p *PostgresSnippetStore) List(ctx context.Context, f snippet.Filter) (snippet.Page, error) {
	where := []string{"user_id = $1"}
	args := []any{f.UserID}

	if f.Language != "" {
		args = append(args, f.Language)
		where = append(where, fmt.Sprintf("language = $%d", len(args)))
	}

	if f.Query != "" {
		args = append(args, "%"+escapeLike(f.Query)+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR code ILIKE $%d)", len(args), len(args)))
	}

	cond := strings.Join(where, " AND ")

	var page snippet.Page

	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM snippets WHERE `+cond, args...).Scan(&page.Total); err != nil {
		return snippet.Page{}, err
	}

	args = append(args, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM snippets WHERE %s ORDER BY created_at DESC, id OFFSET $%d`,
		snippetColumns, cond, len(args))

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	items, err := p.query(ctx, query, args...)
	if err != nil {
		return snippet.Page{}, err
	}

	page.Items = items

	return page, nil
}

func (p *PostgresSnippetStore) All(ctx context.Context, userID string) ([]*snippet.Snippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM snippets WHERE user_id = $1 ORDER BY created_at DESC, id`

	return p.query(ctx, query, userID)
}

func (p *PostgresSnippetStore) Stats(ctx context.Context, userID string) (snippet.Stats, error) {
	var stats snippet.Stats

	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(char_length(code)), 0) FROM snippets WHERE user_id = $1`, userID,
	).Scan(&stats.Total, &stats.TotalCodeSize)
	if err != nil {
		return snippet.Stats{}, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT language, COUNT(*) FROM snippets WHERE user_id = $1
		GROUP BY language ORDER BY COUNT(*) DESC, language
	`, userID)
	if err != nil {
		return snippet.Stats{}, err
	}

	stats.Languages, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (snippet.LanguageCount, error) {
		var lc snippet.LanguageCount
		err := row.Scan(&lc.Language, &lc.Count)

		return lc, err
	})
	if err != nil {
		return snippet.Stats{}, err
	}

	return stats, nil
}

func (p *PostgresSnippetStore) query(ctx context.Context, query string, args ...any) ([]*snippet.Snippet, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*snippet.Snippet, error) {
		return scanSnippet(row)
	})
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

// Compile-time checks.
var (
	_ user.Repository    = (*PostgresStore)(nil)
	_ snippet.Repository = (*PostgresSnippetStore)(nil)
)
