package middlewares

import (
	"net/http"

	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(allowed user.RoleSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "token_required", "Missing identity context")
			return
		}

		if err := m.gate.Authorize(u, allowed); err != nil {
			m.record("forbidden")
			abortWithError(c, http.StatusForbidden, "forbidden", "Your role is not allowed to access this resource")
			return
		}
		c.Next()
	}
}

// RequireSelfOrRole lets a user act on its own :param resource, and anyone in
// allowed act on any.
func (m *AuthMiddleware) RequireSelfOrRole(param string, allowed user.RoleSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "token_required", "Missing identity context")
			return
		}

		if u.ID == c.Param(param) || m.gate.Authorize(u, allowed) == nil {
			c.Next()
			return
		}

		m.record("forbidden")
		abortWithError(c, http.StatusForbidden, "forbidden", "You may only change your own account")
	}
}
