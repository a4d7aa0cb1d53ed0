package security

import (
	"net/http"
	"strings"

	errs "CorpChat/tools/errs"
	sec "CorpChat/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续模块统一用这个 key 读取已验证身份
const CtxUserIDKey = "authUserID"

type Options struct {
	Secret []byte
	// 额外允许从 query 读 token（WebSocket 升级时浏览器带不了自定义 header）
	QueryTokenKey string // 默认 "token"
}

func DefaultOptions(secret []byte) *Options {
	return &Options{Secret: secret, QueryTokenKey: "token"}
}

// Middleware 校验 Bearer JWT 并把 subject 写入 context。
// 校验失败直接 401，不放行。
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" && opts.QueryTokenKey != "" {
			token = strings.TrimSpace(c.Query(opts.QueryTokenKey))
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		userID, err := sec.Verify(sec.DefaultOptions(opts.Secret), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired.WithDetail(err.Error()))
			return
		}

		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if authz == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
