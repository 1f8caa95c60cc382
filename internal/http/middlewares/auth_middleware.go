package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/staffauth/internal/actorctx"
	"github.com/geocoder89/staffauth/internal/auth"
	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	Authenticate(ctx context.Context, authHeader string) (user.User, error)
	Authorize(u user.User, allowed user.RoleSet) error
}

type FailureRecorder interface {
	RecordAuthFailure(reason string)
}

type AuthMiddleware struct {
	gate    Authenticator
	metrics FailureRecorder
	log     *slog.Logger
}

func NewAuthMiddleware(gate Authenticator, metrics FailureRecorder, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{gate: gate, metrics: metrics, log: log}
}

type authFailure struct {
	status  int
	code    string
	message string
}

var authFailures = []struct {
	err error
	authFailure
}{
	{auth.ErrTokenRequired, authFailure{http.StatusUnauthorized, "token_required", "Access token is required"}},
	{auth.ErrTokenExpired, authFailure{http.StatusUnauthorized, "token_expired", "Access token has expired"}},
	{auth.ErrInvalidToken, authFailure{http.StatusUnauthorized, "invalid_token", "Access token is invalid"}},
	{auth.ErrUnknownSubject, authFailure{http.StatusUnauthorized, "user_not_found", "User no longer exists"}},
	{user.ErrAccountInactive, authFailure{http.StatusForbidden, "account_inactive", "Account is inactive"}},
}

// RequireAuth resolves the bearer token to the live user record and stores
// it on both the gin context and the request context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := m.gate.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			for _, f := range authFailures {
				if errors.Is(err, f.err) {
					m.record(f.code)
					abortWithError(c, f.status, f.code, f.message)
					return
				}
			}

			m.log.ErrorContext(c.Request.Context(), "authenticate request", "err", err)
			abortWithError(c, http.StatusInternalServerError, "internal_error", "Could not verify access token")
			return
		}

		c.Set(CtxUser, u)
		c.Request = c.Request.WithContext(actorctx.WithUser(c.Request.Context(), u))

		c.Next()
	}
}

func (m *AuthMiddleware) record(reason string) {
	if m.metrics != nil {
		m.metrics.RecordAuthFailure(reason)
	}
}
