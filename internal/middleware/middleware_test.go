package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/neudev/attemptd/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func identityRouter(secret string) *gin.Engine {
	r := gin.New()
	r.GET("/me", RequireIdentity(secret), func(c *gin.Context) {
		id, _ := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user": id.UserID, "role": id.Role})
	})
	r.POST("/finish", RequireIdentity(secret), RequireRole(auth.RoleStudent), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireIdentity(t *testing.T) {
	const secret = "s3cret"
	valid := signed(t, secret, jwt.MapClaims{"user_id": 7, "user_type": "teacher", "exp": time.Now().Add(time.Hour).Unix()})
	expired := signed(t, secret, jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(-time.Hour).Unix()})

	tests := []struct {
		name   string
		header string
		query  string
		status int
		code   string
	}{
		{"missing", "", "", http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"bearer", "Bearer " + valid, "", http.StatusOK, ""},
		{"query fallback", "", valid, http.StatusOK, ""},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"bad signature", "Bearer " + signed(t, "other", jwt.MapClaims{"user_id": 1}), "", http.StatusUnauthorized, "TOKEN_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/me"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			identityRouter(secret).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			} else {
				assert.Contains(t, w.Body.String(), `"role":"teacher"`)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := identityRouter("")

	req := httptest.NewRequest(http.MethodPost, "/finish", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	teacher := signed(t, "x", jwt.MapClaims{"user_id": 3, "role": "teacher"})
	req = httptest.NewRequest(http.MethodPost, "/finish", nil)
	req.Header.Set("Authorization", "Bearer "+teacher)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.allow("a"))
}

func TestBrotli(t *testing.T) {
	big := strings.Repeat("attempt ", 500)
	r := gin.New()
	r.Use(Brotli(), NoStore())
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, big, string(body))

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/big", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, big, w.Body.String())
}
