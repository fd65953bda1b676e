package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, reqID string, h gin.HandlerFunc) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func TestSuccessCarriesRequestID(t *testing.T) {
	code, out := serve(t, "req-1", func(c *gin.Context) {
		Success(c, http.StatusOK, map[string]int{"remaining": 60})
	})

	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, out.Error)
	assert.Equal(t, "req-1", out.Meta.RequestID)
	assert.False(t, out.Meta.ServedAt.IsZero())
	assert.Equal(t, map[string]any{"remaining": float64(60)}, out.Data)
}

func TestFailFillsMessage(t *testing.T) {
	code, out := serve(t, "", func(c *gin.Context) {
		FailWithDetail(c, http.StatusBadGateway, ErrSubmitFailed, "backend said no")
	})

	assert.Equal(t, http.StatusBadGateway, code)
	require.NotNil(t, out.Error)
	assert.Equal(t, ErrSubmitFailed, out.Error.Code)
	assert.Equal(t, GetMessage(ErrSubmitFailed), out.Error.Message)
	assert.Equal(t, "backend said no", out.Error.Detail)
	assert.NotEmpty(t, out.Meta.RequestID)
}
