package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
)

type IdempotencyRepository interface {
	// Get returns nil without error when the key is absent.
	Get(ctx context.Context, key string) (*models.IdempotencyKey, error)
	// Insert binds the key to the order it produced. A concurrent writer that
	// binds the same key first surfaces as ErrConflict.
	Insert(ctx context.Context, tx pgx.Tx, key, requestHash string, orderID uuid.UUID) error
}

type PostgresIdempotencyRepository struct {
	db DB
}

func NewIdempotencyRepository(db DB) IdempotencyRepository {
	return &PostgresIdempotencyRepository{db: db}
}

func (r *PostgresIdempotencyRepository) Get(ctx context.Context, key string) (*models.IdempotencyKey, error) {
	query := `SELECT key, request_hash, order_id, created_at FROM idempotency_keys WHERE key = $1`
	k := &models.IdempotencyKey{}
	err := r.db.QueryRow(ctx, query, key).Scan(&k.Key, &k.RequestHash, &k.OrderID, &k.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	return k, nil
}

func (r *PostgresIdempotencyRepository) Insert(ctx context.Context, tx pgx.Tx, key, requestHash string, orderID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO idempotency_keys (key, request_hash, order_id) VALUES ($1, $2, $3)`,
		key, requestHash, orderID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("idempotency key %q: %w", key, ErrConflict)
		}
		return fmt.Errorf("failed to insert idempotency key: %w", err)
	}
	return nil
}
