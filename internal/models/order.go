package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID         uuid.UUID   `json:"id"`
	UserEmail  string      `json:"user_email"`
	Status     OrderStatus `json:"status"`
	ItemsTotal string      `json:"items_total"` // Always 2dp string from decimal
	Items      []OrderItem `json:"items"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	ProductID     uuid.UUID `json:"product_id"`
	Quantity      int       `json:"quantity"`
	PriceSnapshot string    `json:"price_snapshot"` // Product price at reservation time, 2dp string
}

type CreateOrderRequest struct {
	UserEmail string                   `json:"user_email" binding:"required,email"`
	Items     []CreateOrderItemRequest `json:"items" binding:"required,min=1"`
}

type CreateOrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required"`
}

// Validate checks the request shape. Duplicate product lines are allowed and
// kept as separate lines; each line debits stock on its own.
func (r *CreateOrderRequest) Validate() error {
	if r.UserEmail == "" {
		return fmt.Errorf("user_email is required")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("order must contain at least one item")
	}
	for i, item := range r.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *CreateOrderItemRequest) Validate() error {
	if r.ProductID == uuid.Nil {
		return fmt.Errorf("product_id is required")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	return nil
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
