package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery catches panics outside the content guard, which recovers its
// own.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID := RequestIDFrom(c)
				log.Error().
					Interface("error", r).
					Str("path", c.Request.URL.Path).
					Str("request_id", requestID).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":     "internal_server_error",
					"requestId": requestID,
				})
			}
		}()
		c.Next()
	}
}
