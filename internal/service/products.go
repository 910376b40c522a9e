package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/repository"
)

type ProductsService interface {
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, query *models.ListProductsQuery) ([]*models.Product, error)
}

type productsService struct {
	products repository.ProductsRepository
	logger   *slog.Logger
}

func NewProductsService(products repository.ProductsRepository, logger *slog.Logger) ProductsService {
	return &productsService{products: products, logger: logger}
}

func (s *productsService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	price, _ := models.ParsePrice(req.Price)
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	product := &models.Product{
		ID:       uuid.New(),
		Name:     req.Name,
		Price:    models.FormatPrice(price),
		Stock:    req.Stock,
		IsActive: isActive,
	}

	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &ProductNameTakenError{Name: req.Name}
		}
		return nil, s.internal(ctx, "Failed to create product", err)
	}

	s.logger.InfoContext(ctx, "Product created",
		slog.String("request_id", getRequestID(ctx)),
		slog.String("product_id", product.ID.String()),
		slog.String("name", product.Name),
	)
	return product, nil
}

func (s *productsService) UpdateProduct(ctx context.Context, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		var notFound *repository.ProductNotFoundError
		if errors.As(err, &notFound) {
			return nil, &ProductNotFoundError{ID: id}
		}
		return nil, s.internal(ctx, "Failed to load product", err)
	}

	if req.Price != nil {
		price, _ := models.ParsePrice(*req.Price)
		product.Price = models.FormatPrice(price)
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.products.Update(ctx, product); err != nil {
		var notFound *repository.ProductNotFoundError
		if errors.As(err, &notFound) {
			return nil, &ProductNotFoundError{ID: id}
		}
		return nil, s.internal(ctx, "Failed to update product", err)
	}

	s.logger.InfoContext(ctx, "Product updated",
		slog.String("request_id", getRequestID(ctx)),
		slog.String("product_id", id.String()),
	)
	return product, nil
}

func (s *productsService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		var notFound *repository.ProductNotFoundError
		if errors.As(err, &notFound) {
			return nil, &ProductNotFoundError{ID: id}
		}
		return nil, s.internal(ctx, "Failed to get product", err)
	}
	return product, nil
}

func (s *productsService) ListProducts(ctx context.Context, query *models.ListProductsQuery) ([]*models.Product, error) {
	query.SetDefaults()
	products, err := s.products.List(ctx, query)
	if err != nil {
		return nil, s.internal(ctx, "Failed to list products", err)
	}
	return products, nil
}

func (s *productsService) internal(ctx context.Context, msg string, err error) error {
	s.logger.ErrorContext(ctx, msg,
		slog.String("request_id", getRequestID(ctx)),
		slog.String("error", err.Error()),
	)
	return &InternalError{Message: msg}
}
