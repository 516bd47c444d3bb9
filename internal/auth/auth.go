package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"github.com/serroba/online-compiler-go/internal/session"
	"github.com/serroba/online-compiler-go/internal/user"
	"go.uber.org/zap"
)

const (
	CodeLength = 6
	CodeTTL    = 10 * time.Minute
)

var ErrInvalidCode = errors.New("invalid or expired OTP")

// OTPStore keeps one pending code per email.
type OTPStore interface {
	// Save stores code for email, replacing any previous code.
	Save(ctx context.Context, email, code string, ttl time.Duration) error
	// Consume deletes the code for email if it matches and reports whether it did.
	Consume(ctx context.Context, email, code string) (bool, error)
}

// Mailer delivers one-time codes.
type Mailer interface {
	SendCode(ctx context.Context, email, code string, ttl time.Duration) error
}

// CodeGenerator produces one-time codes.
type CodeGenerator func() string

// NewCodeGenerator returns a generator of numeric codes.
func NewCodeGenerator() (CodeGenerator, error) {
	gen, err := nanoid.CustomASCII("0123456789", CodeLength)
	if err != nil {
		return nil, fmt.Errorf("otp generator: %w", err)
	}

	return gen, nil
}

// LogMailer writes codes to the log instead of sending email.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer that logs codes.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendCode(_ context.Context, email, code string, ttl time.Duration) error {
	m.logger.Info("otp issued",
		zap.String("email", email),
		zap.String("code", code),
		zap.Duration("ttl", ttl),
	)

	return nil
}

// Login is the result of a successful verification.
type Login struct {
	User    *user.User
	Token   string
	Created bool
}

// Service runs the passwordless login flow.
type Service struct {
	otps     OTPStore
	users    user.Repository
	mailer   Mailer
	generate CodeGenerator
	sessions *session.Manager
	now      func() time.Time
}

// NewService creates an auth service.
func NewService(
	otps OTPStore,
	users user.Repository,
	mailer Mailer,
	generate CodeGenerator,
	sessions *session.Manager,
) *Service {
	return &Service{
		otps:     otps,
		users:    users,
		mailer:   mailer,
		generate: generate,
		sessions: sessions,
		now:      time.Now,
	}
}

// RequestCode issues a new code for email and hands it to the mailer.
func (s *Service) RequestCode(ctx context.Context, email string) error {
	email = user.NormalizeEmail(email)
	if err := user.ValidateEmail(email); err != nil {
		return err
	}

	code := s.generate()

	if err := s.otps.Save(ctx, email, code, CodeTTL); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}

	if err := s.mailer.SendCode(ctx, email, code, CodeTTL); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}

	return nil
}

// Verify consumes a code and logs the user in, creating the account on first login.
func (s *Service) Verify(ctx context.Context, email, code string) (*Login, error) {
	email = user.NormalizeEmail(email)

	ok, err := s.otps.Consume(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}

	if !ok {
		return nil, ErrInvalidCode
	}

	now := s.now()
	created := false

	u, err := s.users.GetByEmail(ctx, email)

	switch {
	case errors.Is(err, user.ErrNotFound):
		u = &user.User{
			ID:         uuid.NewString(),
			Email:      email,
			IsVerified: true,
			CreatedAt:  now,
			LastLogin:  now,
		}

		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}

		created = true
	case err != nil:
		return nil, fmt.Errorf("find user: %w", err)
	default:
		if u, err = s.users.MarkLogin(ctx, u.ID, now); err != nil {
			return nil, fmt.Errorf("mark login: %w", err)
		}
	}

	token, err := s.sessions.Issue(u.ID)
	if err != nil {
		return nil, err
	}

	return &Login{User: u, Token: token, Created: created}, nil
}
