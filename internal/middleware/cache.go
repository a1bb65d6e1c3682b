package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoCache marks responses as uncacheable. The scale polls these endpoints and
// must never see a stale reading.
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, must-revalidate")
		c.Next()
	}
}
