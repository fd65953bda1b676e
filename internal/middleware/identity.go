package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/response"
)

const (
	// ContextKeyIdentity is the Gin context key for the caller's identity.
	ContextKeyIdentity = "identity"
)

// RequireIdentity resolves the backend access token into an auth.Identity.
// The token is read from the Authorization header, or from ?token= for
// WebSocket upgrades that cannot send headers.
func RequireIdentity(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		id, err := auth.FromToken(token, jwtSecret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyIdentity, id)
		c.Next()
	}
}

// GetIdentity retrieves the identity set by RequireIdentity.
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return auth.Identity{}, false
	}
	id, ok := val.(auth.Identity)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}
