package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sec "CorpChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newAuthEngine(secret []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Middleware(DefaultOptions(secret)), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserIDKey))
	})
	return r
}

func TestMiddlewareBearerHeader(t *testing.T) {
	secret := []byte("mw-secret")
	r := newAuthEngine(secret)

	token, _, err := sec.Generate(sec.DefaultOptions(secret), "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "alice", w.Body.String())
}

func TestMiddlewareQueryToken(t *testing.T) {
	secret := []byte("mw-secret")
	r := newAuthEngine(secret)

	token, _, err := sec.Generate(sec.DefaultOptions(secret), "bob")
	require.NoError(t, err)

	// WebSocket 升级场景：token 走 query
	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "bob", w.Body.String())
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	r := newAuthEngine([]byte("mw-secret"))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsBadToken(t *testing.T) {
	r := newAuthEngine([]byte("mw-secret"))

	token, _, err := sec.Generate(sec.DefaultOptions([]byte("other-secret")), "mallory")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
