package middleware

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/online-compiler-go/internal/session"
	"github.com/serroba/online-compiler-go/internal/user"
	"go.uber.org/zap"
)

const (
	msgNoToken      = "No token, authorization denied"
	msgInvalidToken = "Token is invalid or expired"
	msgUserNotFound = "User not found"
)

// RequiresAuth reports whether the operation was registered with session.MetadataKey.
func RequiresAuth(op *huma.Operation) bool {
	if op == nil || op.Metadata == nil {
		return false
	}

	required, _ := op.Metadata[session.MetadataKey].(bool)

	return required
}

// Authenticate attaches the session subject to the request context. On routes that
// require authentication a missing or unusable session is answered with 401; elsewhere
// the request continues as a guest.
func Authenticate(
	api huma.API,
	sessions *session.Manager,
	users user.Repository,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		required := RequiresAuth(ctx.Operation())

		cookie, err := huma.ReadCookie(ctx, session.CookieName)
		if err != nil || cookie.Value == "" {
			if required {
				_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, msgNoToken)

				return
			}

			next(ctx)

			return
		}

		userID, err := sessions.Parse(cookie.Value)
		if err != nil {
			if required {
				_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, msgInvalidToken)

				return
			}

			next(ctx)

			return
		}

		u, err := users.GetByID(ctx.Context(), userID)
		if err != nil {
			if !errors.Is(err, user.ErrNotFound) {
				logger.Error("session user lookup failed", zap.String("userId", userID), zap.Error(err))
			}

			if required {
				_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, msgUserNotFound)

				return
			}

			next(ctx)

			return
		}

		subject := session.Subject{ID: u.ID, Email: u.Email}
		next(huma.WithContext(ctx, session.ContextWithSubject(ctx.Context(), subject)))
	}
}
