package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/service"
)

// handleServiceError maps service error types onto the HTTP contract. Missing
// or inactive products are client mistakes (400); stock and state conflicts
// are 409 because a retry with the same payload may later succeed.
func handleServiceError(c *gin.Context, logger *slog.Logger, err error) {
	switch e := err.(type) {
	case *service.ValidationError:
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", e.Error())
	case *service.ProductsMissingError:
		respondWithError(c, http.StatusBadRequest, "PRODUCTS_MISSING", e.Error())
	case *service.ProductInactiveError:
		respondWithError(c, http.StatusBadRequest, "PRODUCT_INACTIVE", e.Error())
	case *service.ProductNameTakenError:
		respondWithError(c, http.StatusBadRequest, "PRODUCT_NAME_TAKEN", e.Error())
	case *service.InsufficientStockError:
		respondWithError(c, http.StatusConflict, "INSUFFICIENT_STOCK", e.Error())
	case *service.IdempotencyConflictError:
		respondWithError(c, http.StatusConflict, "IDEMPOTENCY_CONFLICT", e.Error())
	case *service.IllegalTransitionError:
		respondWithError(c, http.StatusConflict, "ILLEGAL_TRANSITION", e.Error())
	case *service.OrderNotFoundError:
		respondWithError(c, http.StatusNotFound, "ORDER_NOT_FOUND", e.Error())
	case *service.ProductNotFoundError:
		respondWithError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", e.Error())
	default:
		logger.ErrorContext(c.Request.Context(), "Unhandled service error",
			slog.String("error", err.Error()),
			slog.String("type", fmt.Sprintf("%T", err)))
		respondWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

func respondWithError(c *gin.Context, status int, errorCode, message string) {
	response := models.ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	c.JSON(status, response)
}
