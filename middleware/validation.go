package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"applypilot/utils"
)

// MaxRequestSize caps the request body. Control payloads are small;
// anything past the cap fails when the handler reads the body.
func MaxRequestSize(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// RequireJSON rejects body-carrying requests whose Content-Type is not
// application/json. Requests without a body pass through untouched, so
// bare control POSTs like stop keep working.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
			c.Next()
			return
		}
		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}
		if !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
			utils.BadRequestError(c, "Content-Type must be application/json", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
