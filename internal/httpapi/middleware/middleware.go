package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taxmitra/taxmitra/internal/auth"
	"github.com/taxmitra/taxmitra/internal/common"
)

const (
	UserIDKey    = "auth_user_id"
	RequestIDKey = "request_id"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Recovery] panic: %v path=%s", r, c.Request.URL.Path)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(RequestIDKey, rid)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

func AuthRequired(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			c.Abort()
			return
		}
		uid, err := auth.ParseJWT(strings.TrimPrefix(h, "Bearer "), jwtSecret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			c.Abort()
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}
