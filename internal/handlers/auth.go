package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/serroba/online-compiler-go/internal/apierr"
	"github.com/serroba/online-compiler-go/internal/auth"
	"github.com/serroba/online-compiler-go/internal/session"
	"github.com/serroba/online-compiler-go/internal/user"
	"go.uber.org/zap"
)

// Cookies builds the session cookie.
type Cookies struct {
	Secure bool
	TTL    time.Duration
}

// Session returns a cookie carrying token.
func (c Cookies) Session(token string) http.Cookie {
	return http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.TTL / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Cleared returns a cookie that removes the session.
func (c Cookies) Cleared() http.Cookie {
	return http.Cookie{
		Name:     session.CookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// AuthHandler runs the passwordless login endpoints.
type AuthHandler struct {
	service *auth.Service
	cookies Cookies
	logger  *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(service *auth.Service, cookies Cookies, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, cookies: cookies, logger: logger}
}

func (h *AuthHandler) RequestOTP(ctx context.Context, req *RequestOTPRequest) (*RequestOTPResponse, error) {
	err := h.service.RequestCode(ctx, req.Body.Email)

	switch {
	case errors.Is(err, user.ErrInvalidEmail):
		return nil, apierr.BadRequest("Invalid email address")
	case err != nil:
		h.logger.Error("failed to issue otp", zap.Error(err))

		return nil, apierr.Internal("Failed to send OTP")
	}

	resp := &RequestOTPResponse{}
	resp.Body.Success = true
	resp.Body.Message = "OTP sent to your email"
	resp.Body.Email = req.Body.Email

	return resp, nil
}

func (h *AuthHandler) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (*VerifyOTPResponse, error) {
	if req.Body.Email == "" || req.Body.OTP == "" {
		return nil, apierr.BadRequest("Email and OTP are required")
	}

	login, err := h.service.Verify(ctx, req.Body.Email, req.Body.OTP)

	switch {
	case errors.Is(err, auth.ErrInvalidCode):
		return nil, apierr.Unauthorized("Invalid or expired OTP")
	case err != nil:
		h.logger.Error("otp verification failed", zap.Error(err))

		return nil, apierr.Internal("Verification failed")
	}

	if login.Created {
		h.logger.Info("user registered", zap.String("userId", login.User.ID))
	}

	resp := &VerifyOTPResponse{SetCookie: h.cookies.Session(login.Token)}
	resp.Body.Success = true
	resp.Body.Message = "Login successful"
	resp.Body.User = SessionUser{ID: login.User.ID, Email: login.User.Email}

	return resp, nil
}

func (h *AuthHandler) Logout(_ context.Context, _ *struct{}) (*LogoutResponse, error) {
	resp := &LogoutResponse{SetCookie: h.cookies.Cleared()}
	resp.Body.Success = true
	resp.Body.Message = "Logged out successfully"

	return resp, nil
}

// currentSubject returns the authenticated caller.
func currentSubject(ctx context.Context) (session.Subject, error) {
	s, ok := session.SubjectFromContext(ctx)
	if !ok {
		return session.Subject{}, apierr.Unauthorized("No token, authorization denied")
	}

	return s, nil
}
