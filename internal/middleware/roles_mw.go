package middleware

import (
	"net/http"
	"slices"

	"github.com/sbguangha/tianyishenshu/internal/model"

	"github.com/gin-gonic/gin"
)

// RoleMiddleware admits requests whose session holds at least one of allowedRoles
func RoleMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rolesVal, exists := c.Get(AuthRolesKey)
		if !exists {
			abort(c, http.StatusForbidden, "Roles not found in token, ensure JWT middleware runs first", CodeForbidden)
			return
		}

		userRoles, ok := rolesVal.([]string)
		if !ok {
			abort(c, http.StatusForbidden, "Invalid roles type in token", CodeForbidden)
			return
		}

		isAllowed := slices.ContainsFunc(userRoles, func(role string) bool {
			return slices.Contains(allowedRoles, role)
		})
		if !isAllowed {
			abort(c, http.StatusForbidden, "You do not have permission to access this resource", CodeForbidden)
			return
		}

		c.Next()
	}
}

// AdminMiddleware checks if the user is an admin
func AdminMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.RoleAdmin)
}

// UserMiddleware checks if the user has the 'user' role
func UserMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.RoleUser)
}
