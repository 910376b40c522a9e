package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/service"
)

// AdminHandler exposes product management. Routes using it sit behind the
// admin-secret middleware.
type AdminHandler struct {
	service service.ProductsService
	logger  *slog.Logger
}

func NewAdminHandler(service service.ProductsService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger,
	}
}

func (h *AdminHandler) CreateProduct(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	product, err := h.service.CreateProduct(ctx, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *AdminHandler) UpdateProduct(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid product ID")
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	product, err := h.service.UpdateProduct(ctx, id, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, product)
}
