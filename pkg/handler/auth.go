package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/cadenza-chat/cadenza/pkg/config"
)

// Context key for the authenticated user id.
const ContextUserID = "user_id"

// DefaultUserID is used in local single-user mode, when no token hashes are
// configured.
const DefaultUserID = "local"

// AuthMiddleware validates bearer tokens against the bcrypt hashes in the
// config. With no hashes configured authentication is disabled and every
// request runs as the local user.
func AuthMiddleware(cfg *config.AppConfig) gin.HandlerFunc {
	hashes := cfg.Auth.TokenHashes

	return func(c *gin.Context) {
		if len(hashes) == 0 {
			c.Set(ContextUserID, userIDFrom(c))
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "Missing bearer token"})
			return
		}

		for _, hash := range hashes {
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil {
				c.Set(ContextUserID, userIDFrom(c))
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "Invalid bearer token"})
	}
}

// bearerToken extracts the token from the Authorization header, falling back
// to the access_token query parameter for WebSocket clients that cannot set
// headers.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("access_token")
}

func userIDFrom(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-User-ID")); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.Query("user_id")); id != "" {
		return id
	}
	return DefaultUserID
}

// UserID returns the authenticated user id for the request.
func UserID(c *gin.Context) string {
	if id, ok := c.Get(ContextUserID); ok {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
	}
	return DefaultUserID
}
