package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/frostdev-ops/erp-backend-go/pkg/utils"
)

const (
	userIDKey   = "user_id"
	usernameKey = "username"
)

// AuthMiddleware validates HS256 bearer tokens and stores the operator
// identity for handlers
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.SendError(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			utils.SendError(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenParts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			utils.SendError(c, http.StatusUnauthorized, "Invalid token")
			c.Abort()
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if id, ok := claims[userIDKey]; ok {
				c.Set(userIDKey, id)
			}
			if name, ok := claims[usernameKey].(string); ok && name != "" {
				c.Set(usernameKey, name)
			} else if sub, err := claims.GetSubject(); err == nil && sub != "" {
				c.Set(usernameKey, sub)
			}
		}

		c.Next()
	}
}

// OptionalAuthMiddleware enforces AuthMiddleware only when auth is enabled
func OptionalAuthMiddleware(enabled bool, jwtSecret string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return AuthMiddleware(jwtSecret)
}

// GetUsername returns the authenticated operator, or "" for anonymous requests
func GetUsername(c *gin.Context) string {
	return c.GetString(usernameKey)
}
