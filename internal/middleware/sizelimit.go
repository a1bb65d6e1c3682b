package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/capd-api/pkg/httputil"
)

// SizeLimit rejects bodies over max bytes. Exit-site photos arrive as data URIs,
// so the limit is sized for images rather than plain JSON.
func SizeLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > max {
			msg := fmt.Sprintf("request body exceeds %d bytes", max)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Success: false,
				Message: msg,
				Error:   &httputil.Error{Code: http.StatusRequestEntityTooLarge, Message: msg},
			})
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
