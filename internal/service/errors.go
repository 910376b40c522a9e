package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type IdempotencyConflictError struct {
	Key string
}

func (e *IdempotencyConflictError) Error() string {
	return fmt.Sprintf("idempotency key conflict: different payload for key %q", e.Key)
}

type ProductsMissingError struct {
	IDs []uuid.UUID
}

func (e *ProductsMissingError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("products not found: %s", strings.Join(ids, ", "))
}

type ProductInactiveError struct {
	ID   uuid.UUID
	Name string
}

func (e *ProductInactiveError) Error() string {
	return fmt.Sprintf("product %q is not active", e.Name)
}

type InsufficientStockError struct {
	ProductID uuid.UUID
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Name, e.Requested, e.Available)
}

type IllegalTransitionError struct {
	OrderID uuid.UUID
	From    models.OrderStatus
	Event   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot process %s (status: %s)", e.OrderID, e.Event, e.From)
}

type OrderNotFoundError struct {
	ID uuid.UUID
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order with ID %s not found", e.ID)
}

type ProductNotFoundError struct {
	ID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with ID %s not found", e.ID)
}

type ProductNameTakenError struct {
	Name string
}

func (e *ProductNameTakenError) Error() string {
	return fmt.Sprintf("product with name %q already exists", e.Name)
}

type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return e.Message
}
