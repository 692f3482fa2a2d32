package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/auth"
)

// Context keys for values set in gin.Context.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyEmail     = "email"
	ContextKeyRequestID = "request_id"
	ContextKeyLogger    = "logger"
)

// accessTokenParam carries the session token on WebSocket upgrades,
// where browsers cannot set an Authorization header.
const accessTokenParam = "access_token"

// AuthMiddleware validates the session JWT and stores the caller's
// identity in the context. It aborts with 401 if the token is missing
// or invalid, so handlers behind it can trust GetUserID.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Next()
	}
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// access_token query parameter.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query(accessTokenParam)
		return token, token != ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID returns the authenticated user, or uuid.Nil outside
// AuthMiddleware.
func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}
