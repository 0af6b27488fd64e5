package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errcode"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/jwt"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/response"
)

const ContextClientKey = "client"

// JWTAuth requires a bearer token signed with secret. An empty secret disables the check.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			response.ErrorStatus(c, 401, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.ErrorStatus(c, 401, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			response.ErrorStatus(c, 401, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextClientKey, claims.Client)
		c.Next()
	}
}

// ClientName returns the authenticated client, or "anonymous".
func ClientName(c *gin.Context) string {
	if v, ok := c.Get(ContextClientKey); ok {
		if name, ok := v.(string); ok && name != "" {
			return name
		}
	}
	return "anonymous"
}
