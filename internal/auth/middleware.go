package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"ojcore/pkg/utils/contextkey"
	"ojcore/pkg/utils/response"

	appErr "ojcore/pkg/errors"
)

const userKey = "auth.user"

// Middleware authenticates requests. The token is read from the session
// cookie first, falling back to the Authorization header for API
// clients. Unauthenticated requests are rejected.
func Middleware(tm *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Cookie(tm.CookieName())
		if raw == "" {
			raw = extractBearer(c.GetHeader("Authorization"))
		}
		if raw == "" {
			response.AbortWithError(c, appErr.New(appErr.CodeUnauthorized).WithMessage("Authentication required"))
			return
		}
		user, err := tm.Verify(raw)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Set(userKey, user)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, user.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Optional authenticates when a token is present but lets anonymous
// requests through. Read-only endpoints use it so public contests stay
// browsable.
func Optional(tm *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Cookie(tm.CookieName())
		if raw == "" {
			raw = extractBearer(c.GetHeader("Authorization"))
		}
		if raw != "" {
			if user, err := tm.Verify(raw); err == nil {
				c.Set(userKey, user)
				ctx := context.WithValue(c.Request.Context(), contextkey.UserID, user.ID)
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}
