package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/infinity-9427/shop-microservices/orders/internal/logging"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/repository"
)

// Demo catalog for local development. Seeding is idempotent: products are
// matched by name and skipped when they already exist.
var demoProducts = []struct {
	Name  string
	Price string
	Stock int
}{
	{"Mechanical Keyboard", "129.99", 25},
	{"Wireless Mouse", "49.90", 40},
	{"27in 4K Monitor", "399.00", 12},
	{"USB-C Dock", "89.50", 30},
	{"Laptop Stand", "35.00", 50},
	{"Noise Canceling Headphones", "249.99", 18},
}

func main() {
	logger := logging.NewLogger()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("Failed to create database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()

	products := repository.NewProductsRepository(dbPool)

	seeded := 0
	for _, demo := range demoProducts {
		existing, err := products.GetByName(ctx, demo.Name)
		if err != nil {
			logger.Error("Failed to look up product", slog.String("name", demo.Name), slog.String("error", err.Error()))
			os.Exit(1)
		}
		if existing != nil {
			continue
		}

		product := &models.Product{
			ID:       uuid.New(),
			Name:     demo.Name,
			Price:    demo.Price,
			Stock:    demo.Stock,
			IsActive: true,
		}
		if err := products.Create(ctx, product); err != nil {
			logger.Error("Failed to seed product", slog.String("name", demo.Name), slog.String("error", err.Error()))
			os.Exit(1)
		}
		seeded++
		logger.Info("Seeded product",
			slog.String("product_id", product.ID.String()),
			slog.String("name", product.Name),
			slog.String("price", product.Price),
			slog.Int("stock", product.Stock),
		)
	}

	logger.Info("Seeding complete", slog.Int("seeded", seeded), slog.Int("total", len(demoProducts)))
}
