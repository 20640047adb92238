package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"petamigos/contentguard/internal/security"
)

const moderatorClaimsKey = "moderator_claims"

// ModeratorAuth accepts HS512 bearer tokens issued to reviewers.
func ModeratorAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseModeratorToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(moderatorClaimsKey, *claims)
		c.Next()
	}
}

// CurrentModerator returns the claims stored by ModeratorAuth.
func CurrentModerator(c *gin.Context) (security.ModeratorClaims, bool) {
	val, ok := c.Get(moderatorClaimsKey)
	if !ok {
		return security.ModeratorClaims{}, false
	}
	claims, ok := val.(security.ModeratorClaims)
	return claims, ok
}
