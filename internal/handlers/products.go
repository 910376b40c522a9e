package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/service"
)

type ProductsHandler struct {
	service service.ProductsService
	logger  *slog.Logger
}

type ListProductsResponse struct {
	Items      []*models.Product `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func NewProductsHandler(service service.ProductsService, logger *slog.Logger) *ProductsHandler {
	return &ProductsHandler{
		service: service,
		logger:  logger,
	}
}

// ListProducts is the public catalog listing. Pagination is cursor-based: the
// cursor is the last returned item's sort-field value, base64 encoded, and the
// next page filters on it instead of using OFFSET.
func (h *ProductsHandler) ListProducts(c *gin.Context) {
	ctx := c.Request.Context()

	query := &models.ListProductsQuery{
		Search:   c.Query("search"),
		SortBy:   c.DefaultQuery("sort_by", "created_at"),
		SortDesc: c.DefaultQuery("order", "asc") == "desc",
	}

	if activeStr := c.Query("is_active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid is_active parameter")
			return
		}
		query.IsActive = &active
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid limit parameter")
			return
		}
		query.Limit = limit
	}

	if cursorStr := c.Query("cursor"); cursorStr != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid cursor parameter")
			return
		}
		query.Cursor = string(decoded)
	}

	query.SetDefaults()

	products, err := h.service.ListProducts(ctx, query)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response := ListProductsResponse{Items: products}
	if len(products) == query.Limit {
		response.NextCursor = encodeCursor(products[len(products)-1], query.SortBy)
	}
	if response.Items == nil {
		response.Items = []*models.Product{}
	}

	c.JSON(http.StatusOK, response)
}

func (h *ProductsHandler) GetProduct(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid product ID")
		return
	}

	product, err := h.service.GetProduct(ctx, id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func encodeCursor(last *models.Product, sortBy string) string {
	var raw string
	if sortBy == "name" {
		raw = last.Name
	} else {
		raw = last.CreatedAt.Format(time.RFC3339Nano)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}
