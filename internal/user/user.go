package user

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrInvalidEmail = errors.New("invalid email address")
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// User is an account identified by its email address.
type User struct {
	ID         string
	Email      string
	IsVerified bool
	CreatedAt  time.Time
	LastLogin  time.Time
}

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// MarkLogin flags the user as verified and records the login time.
	MarkLogin(ctx context.Context, id string, at time.Time) (*User, error)
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the shape of an email address.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}

	return nil
}
