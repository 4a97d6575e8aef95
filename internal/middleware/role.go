package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/tullo/trust/internal/apperr"
)

// RequireRole lets the request through only if the caller holds one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, apperr.Unauthorized("Unauthorized"))
			return
		}
		if !slices.Contains(roles, user.Role) {
			abort(c, apperr.Forbidden("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

// RequireVerifiedEmail rejects callers whose email is unverified
func RequireVerifiedEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.EmailVerified {
			abort(c, apperr.Forbidden("Email verification required"))
			return
		}
		c.Next()
	}
}
