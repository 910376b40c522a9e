package repository

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
)

type ProductsRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetByName(ctx context.Context, name string) (*models.Product, error)
	// GetByIDsForUpdate locks the product rows with SELECT ... FOR UPDATE.
	// Rows are acquired in ascending id order so concurrent reservations that
	// share products cannot deadlock.
	GetByIDsForUpdate(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]*models.Product, error)
	UpdateStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, stock int) error
	IncrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) error
	Update(ctx context.Context, product *models.Product) error
	List(ctx context.Context, query *models.ListProductsQuery) ([]*models.Product, error)
}

type PostgresProductsRepository struct {
	db DB
}

func NewProductsRepository(db DB) ProductsRepository {
	return &PostgresProductsRepository{db: db}
}

type ProductNotFoundError struct {
	ID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with ID %s not found", e.ID)
}

const productColumns = `id, name, price::text, stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresProductsRepository) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (id, name, price, stock, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		product.ID, product.Name, product.Price, product.Stock, product.IsActive,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product name %q: %w", product.Name, ErrConflict)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *PostgresProductsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ProductNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (r *PostgresProductsRepository) GetByName(ctx context.Context, name string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE name = $1`
	p, err := scanProduct(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product by name: %w", err)
	}
	return p, nil
}

func (r *PostgresProductsRepository) GetByIDsForUpdate(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]*models.Product, error) {
	sorted := SortProductIDs(ids)

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id ASC FOR UPDATE`
	rows, err := tx.Query(ctx, query, sorted)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over products: %w", err)
	}
	return products, nil
}

func (r *PostgresProductsRepository) UpdateStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, stock int) error {
	tag, err := tx.Exec(ctx, `UPDATE products SET stock = $2, updated_at = now() WHERE id = $1`, id, stock)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ProductNotFoundError{ID: id}
	}
	return nil
}

func (r *PostgresProductsRepository) IncrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) error {
	tag, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ProductNotFoundError{ID: id}
	}
	return nil
}

func (r *PostgresProductsRepository) Update(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET price = $2, stock = $3, is_active = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		product.ID, product.Price, product.Stock, product.IsActive,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &ProductNotFoundError{ID: product.ID}
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *PostgresProductsRepository) List(ctx context.Context, q *models.ListProductsQuery) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Search != "" {
		conds = append(conds, fmt.Sprintf("name ILIKE %s", arg("%"+q.Search+"%")))
	}
	if q.IsActive != nil {
		conds = append(conds, fmt.Sprintf("is_active = %s", arg(*q.IsActive)))
	}
	if q.Cursor != "" {
		op := ">"
		if q.SortDesc {
			op = "<"
		}
		conds = append(conds, fmt.Sprintf("%s %s %s", q.SortBy, op, arg(q.Cursor)))
	}

	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s LIMIT %s", q.SortBy, dir, arg(q.Limit))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over products: %w", err)
	}
	return products, nil
}

// SortProductIDs returns a deduplicated copy of ids in ascending byte order.
// Every caller that locks product rows goes through this, so lock acquisition
// order is globally consistent.
func SortProductIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
