package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/security"
)

const SignatureHeader = "X-Signature"

// VerifySignature authenticates webhook deliveries. The HMAC is computed over
// the raw body, so the body is read here and restored for the handler's bind.
func VerifySignature(secret string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "VALIDATION_ERROR",
				Message: "Failed to read request body",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		signature := c.GetHeader(SignatureHeader)
		if signature == "" || !security.VerifySignature(body, signature, secret) {
			logger.WarnContext(c.Request.Context(), "Webhook signature verification failed",
				slog.String("path", c.Request.URL.Path),
				slog.Bool("signature_present", signature != ""),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "INVALID_SIGNATURE",
				Message: "Webhook signature missing or invalid",
			})
			return
		}

		c.Next()
	}
}
