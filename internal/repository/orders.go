package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
)

type OrdersRepository interface {
	Insert(ctx context.Context, tx pgx.Tx, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// GetByIDForUpdate locks the order row; concurrent payment callbacks and
	// cancellations for the same order serialize on this lock.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.OrderStatus) error
}

type PostgresOrdersRepository struct {
	db DB
}

func NewOrdersRepository(db DB) OrdersRepository {
	return &PostgresOrdersRepository{db: db}
}

type OrderNotFoundError struct {
	ID uuid.UUID
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order with ID %s not found", e.ID)
}

func (r *PostgresOrdersRepository) Insert(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (id, user_email, status, items_total)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		order.ID, order.UserEmail, order.Status, order.ItemsTotal,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, price_snapshot) VALUES ($1, $2, $3, $4, $5)`,
			item.ID, item.OrderID, item.ProductID, item.Quantity, item.PriceSnapshot,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `id, user_email, status, items_total::text, created_at, updated_at`

func (r *PostgresOrdersRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := r.scanOrder(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, r.db, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *PostgresOrdersRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error) {
	order, err := r.scanOrder(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, tx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *PostgresOrdersRepository) scanOrder(ctx context.Context, q Querier, query string, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}
	err := q.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.UserEmail,
		&order.Status,
		&order.ItemsTotal,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &OrderNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (r *PostgresOrdersRepository) loadItems(ctx context.Context, q Querier, order *models.Order) error {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, quantity, price_snapshot::text FROM order_items WHERE order_id = $1`,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	order.Items = order.Items[:0]
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceSnapshot); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate over order items: %w", err)
	}
	return nil
}

func (r *PostgresOrdersRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.OrderStatus) error {
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &OrderNotFoundError{ID: id}
	}
	return nil
}
