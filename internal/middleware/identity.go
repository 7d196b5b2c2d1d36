package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/room"
)

// Identity trusts the user id injected by the upstream gateway after it has
// verified the session. This service never authenticates; it only consumes
// the already-verified caller id.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		if !room.ValidID(userID) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid identity"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
