package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"store_manager/internal/identity"

	"github.com/gin-gonic/gin"
)

const sessionTokenKey = "session_token"

// RequireSession 解析 Bearer token，把身份挂到 request ctx 上。
// 未登录或会话过期返回 401。
func RequireSession(svc *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		sess, err := svc.Current(c.Request.Context(), token)
		if errors.Is(err, identity.ErrNoSession) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": err.Error()})
			return
		}
		if err != nil {
			log.Printf("resolve session: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "internal error"})
			return
		}

		c.Set(sessionTokenKey, sess.Token)
		c.Request = c.Request.WithContext(identity.WithOwner(c.Request.Context(), sess.Owner))
		c.Next()
	}
}

// SessionToken 当前请求的会话 token，RequireSession 之后可用。
func SessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
