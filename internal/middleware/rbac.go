package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/response"
)

// RequireRole lets the request through only for the given roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
	}
}
