package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"applypilot/services"
	"applypilot/utils"
)

// Auth validates the bearer token and pins the caller to their own
// resources: the authenticated user id must match the :userID path param.
func Auth(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			utils.UnauthorizedError(c, "Authorization header required")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			utils.UnauthorizedError(c, "Bearer token required")
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			utils.UnauthorizedError(c, "Invalid or expired token")
			c.Abort()
			return
		}

		if param := c.Param("userID"); param != "" {
			if id, err := strconv.Atoi(param); err != nil || id != claims.UserID {
				utils.ErrorResponseWithCode(c, http.StatusForbidden, "Access denied", nil)
				c.Abort()
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}
