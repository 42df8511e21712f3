package middleware

import (
	"net/http"

	"vipearn/internal/domain"

	"github.com/gin-gonic/gin"
)

// AdminRequired checks that the authenticated user has the ADMIN role.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != domain.RoleAdmin {
			abort(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}
