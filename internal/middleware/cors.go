package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origins is a parsed origin allow-list. Shared by CORS and the websocket upgrader.
type Origins map[string]bool

// ParseOrigins parses "*" or a comma-separated list. An empty list allows any origin.
func ParseOrigins(s string) Origins {
	m := make(Origins)
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			m[o] = true
		}
	}
	return m
}

// Any reports whether every origin is allowed.
func (o Origins) Any() bool { return len(o) == 0 || o["*"] }

// Allows reports whether origin may call the API.
func (o Origins) Allows(origin string) bool {
	return o.Any() || (origin != "" && o[origin])
}

// CORS sets cross-origin headers for the dashboard and scanner apps.
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := ParseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowOrigin := ""
		switch {
		case origins.Any():
			allowOrigin = "*"
		case origins.Allows(origin):
			allowOrigin = origin
			c.Header("Vary", "Origin")
		}
		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderRequestID)
			c.Header("Access-Control-Expose-Headers", HeaderRequestID)
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
