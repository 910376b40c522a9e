package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusDead    OutboxStatus = "dead"
)

const EventTypeOrderCreated = "order.created"

// OutboxEvent is a durable side effect written in the same transaction as the
// state change it describes. Rows move pending -> sent | dead and are kept
// for auditing.
type OutboxEvent struct {
	ID            uuid.UUID    `json:"id"`
	EventType     string       `json:"event_type"`
	Payload       []byte       `json:"payload"`
	Status        OutboxStatus `json:"status"`
	Attempts      int          `json:"attempts"`
	NextAttemptAt time.Time    `json:"next_attempt_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

// OrderCreatedPayload is the JSON body of an order.created event.
type OrderCreatedPayload struct {
	OrderID string                    `json:"order_id"`
	Total   string                    `json:"total"`
	Items   []OrderCreatedPayloadItem `json:"items"`
}

type OrderCreatedPayloadItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}
