package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/infinity-9427/shop-microservices/orders/internal/middleware"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/service"
)

const maxIdempotencyKeyLength = 255

type OrdersHandler struct {
	service service.OrdersService
	limiter *middleware.RateLimiter
	logger  *slog.Logger
}

func NewOrdersHandler(service service.OrdersService, limiter *middleware.RateLimiter, logger *slog.Logger) *OrdersHandler {
	return &OrdersHandler{
		service: service,
		limiter: limiter,
		logger:  logger,
	}
}

func (h *OrdersHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Idempotency-Key header is required")
		return
	}
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("Idempotency-Key must be at most %d characters", maxIdempotencyKeyLength))
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	// Limit by the requesting user, not the connection; one user hammering
	// order placement must not starve others behind the same NAT.
	limitKey := "ratelimit:orders:" + req.UserEmail
	if req.UserEmail == "" {
		limitKey = "ratelimit:orders:ip:" + c.ClientIP()
	}
	if !h.limiter.Allow(ctx, limitKey) {
		respondWithError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many order requests, slow down")
		return
	}

	order, reused, err := h.service.CreateOrder(ctx, &req, idempotencyKey)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	if reused {
		h.logger.InfoContext(ctx, "Idempotent order replay",
			slog.String("order_id", order.ID.String()),
		)
	}

	c.Header("Location", fmt.Sprintf("/orders/%s", order.ID))
	c.JSON(http.StatusCreated, order)
}

func (h *OrdersHandler) GetOrder(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order ID")
		return
	}

	order, err := h.service.GetOrderByID(ctx, id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrdersHandler) CancelOrder(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order ID")
		return
	}

	order, err := h.service.CancelOrder(ctx, id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
