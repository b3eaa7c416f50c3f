package auth

import (
	"github.com/gin-gonic/gin"

	"ojcore/internal/model"
)

// CurrentUser returns the authenticated user set by the middleware, or
// nil when the request is anonymous.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}
