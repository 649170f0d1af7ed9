package router

import (
	"net/http"

	"store_manager/internal/cart"
	"store_manager/internal/identity"
	"store_manager/internal/middleware"

	"github.com/gin-gonic/gin"
)

func sessionView(s identity.Session) gin.H {
	return gin.H{
		"token":      s.Token,
		"owner":      s.Owner,
		"expires_at": s.ExpiresAt,
	}
}

// signUp 注册后直接返回新会话。
func signUp(svc *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required,min=6"`
			FullName string `json:"full_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		sess, err := svc.SignUp(c.Request.Context(), req.Email, req.Password, req.FullName)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, sessionView(sess))
	}
}

func signIn(svc *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		sess, err := svc.SignIn(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, sessionView(sess))
	}
}

// signOut 删除会话并丢弃该会话的购物车。
func signOut(svc *identity.Service, carts *cart.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := middleware.SessionToken(c)
		if err := svc.SignOut(c.Request.Context(), token); err != nil {
			writeError(c, err)
			return
		}
		carts.Drop(token)
		ok(c, gin.H{"signed_out": true})
	}
}

func currentSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		ok(c, gin.H{"owner": owner})
	}
}
