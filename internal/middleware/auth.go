package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/auth"
	"github.com/tullo/trust/internal/models"
)

// Keys set on the gin context by AuthMiddleware
const (
	ContextUserID = "user_id"
	ContextUser   = "user"
)

// UserLookup loads the account behind a token
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware validates the bearer token and loads the caller. Tokens
// issued before the user's last revocation are rejected.
func AuthMiddleware(jwtService *auth.JWTService, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abort(c, apperr.Unauthorized("Authorization header required"))
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			abort(c, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if apperr.Is(err, apperr.CodeNotFound) {
				abort(c, apperr.Unauthorized("Unknown user"))
				return
			}
			abort(c, apperr.Internal("Failed to load user", err))
			return
		}
		if user.TokenVersion != claims.TokenVersion {
			abort(c, apperr.Unauthorized("Token has been revoked"))
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)
		c.Next()
	}
}

// CurrentUser returns the caller loaded by AuthMiddleware
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(err.Status, gin.H{"error": err.Message, "code": err.Code})
}
