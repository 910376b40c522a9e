package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_Valid(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusCreated, OrderStatusReserved, OrderStatusPaymentPending, OrderStatusPaid, OrderStatusCanceled} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, OrderStatus("shipped").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusCreated, OrderStatusReserved, true},
		{OrderStatusCreated, OrderStatusCanceled, true},
		{OrderStatusCreated, OrderStatusPaid, false},
		{OrderStatusCreated, OrderStatusPaymentPending, false},
		{OrderStatusReserved, OrderStatusPaymentPending, true},
		{OrderStatusReserved, OrderStatusPaid, true},
		{OrderStatusReserved, OrderStatusCanceled, true},
		{OrderStatusReserved, OrderStatusCreated, false},
		{OrderStatusPaymentPending, OrderStatusPaid, true},
		{OrderStatusPaymentPending, OrderStatusCanceled, true},
		{OrderStatusPaymentPending, OrderStatusReserved, false},
		{OrderStatusPaid, OrderStatusCanceled, false},
		{OrderStatusPaid, OrderStatusPaid, false},
		{OrderStatusCanceled, OrderStatusReserved, false},
		{OrderStatusCanceled, OrderStatusPaid, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusPaid.IsTerminal())
	assert.True(t, OrderStatusCanceled.IsTerminal())
	assert.False(t, OrderStatusCreated.IsTerminal())
	assert.False(t, OrderStatusReserved.IsTerminal())
	assert.False(t, OrderStatusPaymentPending.IsTerminal())
}

func TestOrderStatus_HoldsStock(t *testing.T) {
	assert.True(t, OrderStatusReserved.HoldsStock())
	assert.True(t, OrderStatusPaymentPending.HoldsStock())
	assert.False(t, OrderStatusCreated.HoldsStock())
	assert.False(t, OrderStatusPaid.HoldsStock())
	assert.False(t, OrderStatusCanceled.HoldsStock())
}
