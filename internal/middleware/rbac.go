package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/asproject/assignment-portal-api/internal/models"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
	"github.com/asproject/assignment-portal-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. The request
// must already carry validated claims from the JWT middleware.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
