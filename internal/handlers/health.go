package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/infinity-9427/shop-microservices/orders/internal/repository"
)

type HealthHandler struct {
	dbPool *pgxpool.Pool
	redis  *redis.Client
	outbox repository.OutboxRepository
	logger *slog.Logger
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func NewHealthHandler(dbPool *pgxpool.Pool, redisClient *redis.Client, outbox repository.OutboxRepository, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		dbPool: dbPool,
		redis:  redisClient,
		outbox: outbox,
		logger: logger,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Services: make(map[string]string),
	}

	// Simple database ping
	if err := h.dbPool.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "Database health check failed", slog.String("error", err.Error()))
		response.Status = "unhealthy"
		response.Services["database"] = "unhealthy"
	} else {
		response.Services["database"] = "healthy"

		if pending, err := h.outbox.CountPending(ctx); err == nil {
			response.Services["outbox_pending"] = strconv.Itoa(pending)
		}
	}

	// Redis only backs the rate limiter, which fails open, so a Redis outage
	// degrades the report without flipping the overall status.
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.logger.WarnContext(ctx, "Redis health check failed", slog.String("error", err.Error()))
			response.Services["redis"] = "unhealthy"
		} else {
			response.Services["redis"] = "healthy"
		}
	}

	if response.Status == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
