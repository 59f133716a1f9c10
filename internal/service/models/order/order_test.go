package order_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/money"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/service/models/orderitem"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func cartWithItems(t *testing.T) order.Order {
	t.Helper()

	o := order.NewCart(7, now)
	o.ID = 1
	o.OrderItems = []orderitem.OrderItem{
		{ID: 1, OrderID: 1, ProductID: 10, Quantity: 2, UnitPrice: money.RequireFromString("250")},
		{ID: 2, OrderID: 1, ProductID: 11, Quantity: 1, UnitPrice: money.RequireFromString("500")},
	}
	o.RecomputeTotals()

	return o
}

func TestNewCart(t *testing.T) {
	o := order.NewCart(7, now)

	assert.Equal(t, order.StatusCart, o.Status)
	assert.Equal(t, int64(7), o.CustomerID)
	assert.Equal(t, order.PaymentCash, o.PaymentMethod)
	assert.NotEqual(t, [16]byte{}, [16]byte(o.PublicID))
	assert.True(t, o.TotalAmount.IsZero())
}

func TestRecomputeTotals(t *testing.T) {
	o := cartWithItems(t)

	assert.True(t, o.Subtotal.Equal(money.RequireFromString("1000")), "subtotal %s", o.Subtotal)
	assert.True(t, o.TotalAmount.Equal(o.Subtotal), "cart total equals subtotal")

	o.DeliveryFee = money.RequireFromString("100")
	o.ServiceFee = money.RequireFromString("15")
	o.CourierFee = money.RequireFromString("85")
	o.DiscountAmount = money.RequireFromString("50")
	o.RecomputeTotals()

	assert.True(t, o.TotalAmount.Equal(money.RequireFromString("1150")), "total %s", o.TotalAmount)
}

func TestCheckout(t *testing.T) {
	o := cartWithItems(t)

	require.NoError(t, o.Checkout(now))
	assert.Equal(t, order.StatusPending, o.Status)

	err := o.Checkout(now)
	assert.True(t, apperr.IsConflict(err), "second checkout must conflict, got %v", err)
}

func TestCheckout_EmptyCart(t *testing.T) {
	o := order.NewCart(7, now)
	o.ID = 1

	err := o.Checkout(now)
	assert.True(t, apperr.IsValidation(err), "got %v", err)
	assert.Equal(t, order.StatusCart, o.Status)
}

func TestAssignable(t *testing.T) {
	courierID := int64(3)

	tests := []struct {
		status    order.Status
		courierID *int64
		want      bool
	}{
		{order.StatusPending, nil, true},
		{order.StatusConfirmed, nil, true},
		{order.StatusPreparing, nil, true},
		{order.StatusPending, &courierID, false},
		{order.StatusCart, nil, false},
		{order.StatusAssigned, nil, false},
		{order.StatusDelivered, nil, false},
		{order.StatusCancelled, nil, false},
	}

	for _, tt := range tests {
		o := order.Order{Status: tt.status, CourierID: tt.courierID}
		assert.Equal(t, tt.want, o.Assignable(), "status %s", tt.status)
	}
}

func TestAssignCourier(t *testing.T) {
	o := cartWithItems(t)
	require.NoError(t, o.Checkout(now))

	require.NoError(t, o.AssignCourier(3, now))

	assert.Equal(t, order.StatusAssigned, o.Status)
	require.NotNil(t, o.CourierID)
	assert.Equal(t, int64(3), *o.CourierID)
	require.NotNil(t, o.EstimatedDeliveryTime)
	assert.Equal(t, now.Add(order.EstimatedDeliveryWindow), *o.EstimatedDeliveryTime)

	err := o.AssignCourier(4, now)
	assert.True(t, apperr.IsConflict(err), "double assignment must conflict, got %v", err)
	assert.Equal(t, int64(3), *o.CourierID, "loser must not overwrite the winner")
}

func TestTransitionTo(t *testing.T) {
	courierID := int64(3)

	base := func() order.Order {
		return order.Order{ID: 1, CustomerID: 7, CourierID: &courierID, Status: order.StatusAssigned}
	}

	t.Run("assigned and cart are not settable directly", func(t *testing.T) {
		o := base()
		assert.True(t, apperr.IsValidation(o.TransitionTo(order.StatusAssigned, actor.Staff(1), now)))
		assert.True(t, apperr.IsValidation(o.TransitionTo(order.StatusCart, actor.Staff(1), now)))
	})

	t.Run("role gate rejects before the edge check", func(t *testing.T) {
		o := base()
		err := o.TransitionTo(order.StatusPickedUp, actor.Customer(7), now)
		assert.True(t, apperr.IsAuthorization(err), "got %v", err)
		assert.Equal(t, order.StatusAssigned, o.Status, "rejection must not mutate")
	})

	t.Run("courier must be the assigned one", func(t *testing.T) {
		o := base()
		err := o.TransitionTo(order.StatusPickedUp, actor.Courier(99), now)
		assert.True(t, apperr.IsAuthorization(err), "got %v", err)
	})

	t.Run("customer must own the order", func(t *testing.T) {
		o := base()
		err := o.TransitionTo(order.StatusCancelled, actor.Customer(8), now)
		assert.True(t, apperr.IsAuthorization(err), "got %v", err)
	})

	t.Run("assigned courier walks the happy path", func(t *testing.T) {
		o := base()
		by := actor.Courier(3)

		require.NoError(t, o.TransitionTo(order.StatusPickedUp, by, now))
		require.NoError(t, o.TransitionTo(order.StatusDelivering, by, now))
		require.NoError(t, o.TransitionTo(order.StatusDelivered, by, now))

		assert.Equal(t, order.StatusDelivered, o.Status)
		require.NotNil(t, o.ActualDeliveryTime)
		assert.Equal(t, now, *o.ActualDeliveryTime)
	})

	t.Run("skipping a step conflicts", func(t *testing.T) {
		o := base()
		err := o.TransitionTo(order.StatusDelivered, actor.Courier(3), now)
		assert.True(t, apperr.IsConflict(err), "got %v", err)
	})

	t.Run("terminal accepts nothing", func(t *testing.T) {
		o := base()
		o.Status = order.StatusDelivered
		err := o.TransitionTo(order.StatusCancelled, actor.Staff(1), now)
		assert.True(t, apperr.IsConflict(err), "got %v", err)
	})
}

func TestReleaseCourier(t *testing.T) {
	courierID := int64(3)
	o := order.Order{CourierID: &courierID}

	id, ok := o.ReleaseCourier()
	require.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.Nil(t, o.CourierID)

	_, ok = o.ReleaseCourier()
	assert.False(t, ok)
}

func TestParsePaymentMethod(t *testing.T) {
	method, err := order.ParsePaymentMethod("")
	require.NoError(t, err)
	assert.Equal(t, order.PaymentCash, method)

	for _, valid := range []string{"cash", "card", "online", "elcart", "mbank"} {
		method, err := order.ParsePaymentMethod(valid)
		require.NoError(t, err)
		assert.Equal(t, order.PaymentMethod(valid), method)
	}

	_, err = order.ParsePaymentMethod("crypto")
	assert.ErrorIs(t, err, order.ErrInvalidPaymentMethod)
}
