package models

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyKey binds a client-supplied key to the order it produced.
// The request hash is immutable for the lifetime of the key.
type IdempotencyKey struct {
	Key         string    `json:"key"`
	RequestHash string    `json:"request_hash"`
	OrderID     uuid.UUID `json:"order_id"`
	CreatedAt   time.Time `json:"created_at"`
}
