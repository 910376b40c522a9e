package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"` // Always 2dp string from decimal - never use floats
	Stock     int       `json:"stock"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetPriceDecimal returns the price as an exact decimal for precise calculations
// Never uses float64 - parses string directly to decimal.Decimal
func (p *Product) GetPriceDecimal() (decimal.Decimal, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price format '%s': %w", p.Price, err)
	}
	return price, nil
}

// FormatPrice formats a decimal price as a 2-decimal-place string
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParsePrice parses a price string into decimal.Decimal
func ParsePrice(priceStr string) (decimal.Decimal, error) {
	return decimal.NewFromString(priceStr)
}

type CreateProductRequest struct {
	Name     string `json:"name" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Stock    int    `json:"stock"`
	IsActive *bool  `json:"is_active"`
}

func (r *CreateProductRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	price, err := ParsePrice(r.Price)
	if err != nil {
		return fmt.Errorf("price must be a decimal string: %w", err)
	}
	if price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	if r.Stock < 0 {
		return fmt.Errorf("stock must not be negative")
	}
	return nil
}

type UpdateProductRequest struct {
	Price    *string `json:"price"`
	Stock    *int    `json:"stock"`
	IsActive *bool   `json:"is_active"`
}

func (r *UpdateProductRequest) Validate() error {
	if r.Price != nil {
		price, err := ParsePrice(*r.Price)
		if err != nil {
			return fmt.Errorf("price must be a decimal string: %w", err)
		}
		if price.IsNegative() {
			return fmt.Errorf("price must not be negative")
		}
	}
	if r.Stock != nil && *r.Stock < 0 {
		return fmt.Errorf("stock must not be negative")
	}
	return nil
}

// ListProductsQuery carries the filters and cursor for the public product listing.
type ListProductsQuery struct {
	Search   string
	IsActive *bool
	SortBy   string // created_at or name
	SortDesc bool
	Cursor   string // decoded value of the sort field from the last item
	Limit    int
}

func (q *ListProductsQuery) SetDefaults() {
	if q.SortBy != "name" {
		q.SortBy = "created_at"
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}
