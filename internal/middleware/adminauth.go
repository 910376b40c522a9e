package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/infinity-9427/shop-microservices/orders/internal/models"
)

const AdminSecretHeader = "X-Admin-Secret"

// AdminAuth guards the admin product endpoints with a shared secret header.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(AdminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "Admin secret missing or invalid",
			})
			return
		}
		c.Next()
	}
}
