package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
)

type OutboxRepository interface {
	Insert(ctx context.Context, tx pgx.Tx, event *models.OutboxEvent) error
	// ClaimDue locks up to limit pending events whose next_attempt_at has
	// passed, skipping rows already locked by another dispatcher replica.
	ClaimDue(ctx context.Context, tx pgx.Tx, limit int, now time.Time) ([]*models.OutboxEvent, error)
	MarkSent(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	MarkDead(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempts int) error
	ScheduleRetry(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempts int, nextAttemptAt time.Time) error
	CountPending(ctx context.Context) (int, error)
}

type PostgresOutboxRepository struct {
	db DB
}

func NewOutboxRepository(db DB) OutboxRepository {
	return &PostgresOutboxRepository{db: db}
}

func (r *PostgresOutboxRepository) Insert(ctx context.Context, tx pgx.Tx, event *models.OutboxEvent) error {
	query := `
		INSERT INTO outbox (id, event_type, payload_json, status, attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		event.ID, event.EventType, string(event.Payload), event.Status, event.Attempts, event.NextAttemptAt,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (r *PostgresOutboxRepository) ClaimDue(ctx context.Context, tx pgx.Tx, limit int, now time.Time) ([]*models.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload_json, status, attempts, next_attempt_at, created_at
		FROM outbox
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY next_attempt_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, query, models.OutboxStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	defer rows.Close()

	var events []*models.OutboxEvent
	for rows.Next() {
		event := &models.OutboxEvent{}
		var payload string
		if err := rows.Scan(&event.ID, &event.EventType, &payload, &event.Status, &event.Attempts, &event.NextAttemptAt, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		event.Payload = []byte(payload)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over outbox events: %w", err)
	}
	return events, nil
}

func (r *PostgresOutboxRepository) MarkSent(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE outbox SET status = $2 WHERE id = $1`, id, models.OutboxStatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}
	return nil
}

func (r *PostgresOutboxRepository) MarkDead(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempts int) error {
	_, err := tx.Exec(ctx,
		`UPDATE outbox SET status = $2, attempts = $3 WHERE id = $1`,
		id, models.OutboxStatusDead, attempts,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event dead: %w", err)
	}
	return nil
}

func (r *PostgresOutboxRepository) ScheduleRetry(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempts int, nextAttemptAt time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE outbox SET attempts = $2, next_attempt_at = $3 WHERE id = $1`,
		id, attempts, nextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("failed to schedule outbox retry: %w", err)
	}
	return nil
}

func (r *PostgresOutboxRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE status = $1`, models.OutboxStatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending outbox events: %w", err)
	}
	return count, nil
}
