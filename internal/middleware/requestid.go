package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/infinity-9427/shop-microservices/orders/internal/service"
)

const RequestIDHeader = "X-Request-ID"

// RequestID takes the caller's X-Request-ID or mints one, echoes it on the
// response, and stores it in both the gin keys (for the access log) and the
// request context (for service-layer logs).
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := context.WithValue(c.Request.Context(), service.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
