package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/collections-agent/pkg/auth"
	"github.com/troikatech/collections-agent/pkg/errors"
)

// AuthMiddleware accepts a bearer token in the Authorization header. Browser
// websockets cannot set headers, so a token query parameter is accepted too.
func AuthMiddleware(jwtSecret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" {
				errors.Unauthorized(c, "invalid authorization format")
				c.Abort()
				return
			}
			tokenString = bearerToken[1]
		}
		if tokenString == "" {
			errors.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(tokenString, jwtSecret, issuer)
		if err != nil {
			errors.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

func RoleMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("user_role")
		if role == "" {
			errors.Forbidden(c, "role not found in token")
			c.Abort()
			return
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}

		errors.Forbidden(c, "insufficient permissions")
		c.Abort()
	}
}
