package models

// PaymentOutcome is the terminal result reported by the payment provider.
type PaymentOutcome string

const (
	PaymentOutcomeSuccess PaymentOutcome = "success"
	PaymentOutcomeFailed  PaymentOutcome = "failed"
)

type PaymentWebhookRequest struct {
	PaymentID string         `json:"payment_id" binding:"required"`
	OrderID   string         `json:"order_id" binding:"required"`
	Status    PaymentOutcome `json:"status" binding:"required"`
}

func (r *PaymentWebhookRequest) Valid() bool {
	return r.Status == PaymentOutcomeSuccess || r.Status == PaymentOutcomeFailed
}

type FakePaymentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

type FakePaymentResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}
