package models

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "created"
	OrderStatusReserved       OrderStatus = "reserved"
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusCanceled       OrderStatus = "canceled"
)

// legal transitions; paid and canceled are terminal
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:        {OrderStatusReserved, OrderStatusCanceled},
	OrderStatusReserved:       {OrderStatusPaymentPending, OrderStatusPaid, OrderStatusCanceled},
	OrderStatusPaymentPending: {OrderStatusPaid, OrderStatusCanceled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusReserved, OrderStatusPaymentPending, OrderStatusPaid, OrderStatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status machine allows moving to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCanceled
}

// HoldsStock reports whether the order currently holds a stock reservation
// that must be restored when the order exits via cancellation or payment
// failure. Orders in created never debited stock.
func (s OrderStatus) HoldsStock() bool {
	return s == OrderStatusReserved || s == OrderStatusPaymentPending
}
