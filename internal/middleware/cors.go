package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const corsMaxAge = "600"

// CORS reflects allowed origins. With no configured origins every origin
// is reflected but credentials are never allowed; a preflight from an
// origin outside the list is refused.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originMap[strings.TrimSpace(origin)] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			c.Next()
			return
		}

		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		_, listed := originMap[origin]
		allowed := allowAll || listed
		if allowed {
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Expose-Headers", requestIDHeader)
			if listed {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		preflight := c.Request.Method == http.MethodOptions && c.Request.Header.Get("Access-Control-Request-Method") != ""
		if !preflight {
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+requestIDHeader)
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Max-Age", corsMaxAge)
		c.AbortWithStatus(http.StatusNoContent)
	}
}
