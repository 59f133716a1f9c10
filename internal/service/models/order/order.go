package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/money"
	"github.com/karakol/delivery/internal/service/models/orderitem"
)

// PaymentMethod is how the customer pays for the order.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentOnline PaymentMethod = "online"
	PaymentElcart PaymentMethod = "elcart"
	PaymentMBank  PaymentMethod = "mbank"
)

var validPaymentMethods = map[PaymentMethod]struct{}{
	PaymentCash:   {},
	PaymentCard:   {},
	PaymentOnline: {},
	PaymentElcart: {},
	PaymentMBank:  {},
}

var ErrInvalidPaymentMethod = errors.New("invalid payment method")

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	if s == "" {
		return PaymentCash, nil
	}
	method := PaymentMethod(s)
	if _, ok := validPaymentMethods[method]; ok {
		return method, nil
	}

	return "", ErrInvalidPaymentMethod
}

// EstimatedDeliveryWindow is added to the assignment time to produce the ETA.
const EstimatedDeliveryWindow = 30 * time.Minute

// Order is the central aggregate. An order in cart state has mutable items
// and no fees; once checked out the item set is frozen and only status,
// courier and timestamp fields keep changing. Orders are never deleted:
// terminal orders remain as the historical record for payouts and ratings.
type Order struct {
	ID       int64     `json:"id"`
	PublicID uuid.UUID `json:"publicId"`

	CustomerID   int64  `json:"customerId"`
	CustomerName string `json:"customerName"`

	RestaurantID *int64 `json:"restaurantId,omitempty"`
	ZoneID       *int64 `json:"zoneId,omitempty"`
	CourierID    *int64 `json:"courierId,omitempty"`

	Status Status `json:"status"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryFee    decimal.Decimal `json:"deliveryFee"`
	ServiceFee     decimal.Decimal `json:"serviceFee"`
	CourierFee     decimal.Decimal `json:"courierFee"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`

	DeliveryAddress   string        `json:"deliveryAddress"`
	DeliveryLatitude  *float64      `json:"deliveryLatitude,omitempty"`
	DeliveryLongitude *float64      `json:"deliveryLongitude,omitempty"`
	PhoneNumber       string        `json:"phoneNumber"`
	PaymentMethod     PaymentMethod `json:"paymentMethod"`
	PromoCode         string        `json:"promoCode,omitempty"`
	Notes             string        `json:"notes,omitempty"`

	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	EstimatedDeliveryTime *time.Time `json:"estimatedDeliveryTime,omitempty"`
	ActualDeliveryTime    *time.Time `json:"actualDeliveryTime,omitempty"`

	OrderItems []orderitem.OrderItem `json:"orderItems"`
}

// NewCart creates a fresh cart order for a customer.
func NewCart(customerID int64, now time.Time) Order {
	return Order{
		PublicID:       uuid.New(),
		CustomerID:     customerID,
		Status:         StatusCart,
		Subtotal:       money.Zero,
		DeliveryFee:    money.Zero,
		ServiceFee:     money.Zero,
		CourierFee:     money.Zero,
		DiscountAmount: money.Zero,
		TotalAmount:    money.Zero,
		PaymentMethod:  PaymentCash,
		CreatedAt:      now,
		UpdatedAt:      now,
		OrderItems:     []orderitem.OrderItem{},
	}
}

// RecomputeTotals refreshes the subtotal from the item snapshot prices and
// the total from subtotal plus all fees minus the discount. In cart state all
// fees are zero, so the total equals the subtotal.
func (o *Order) RecomputeTotals() {
	subtotal := money.Zero
	for _, item := range o.OrderItems {
		subtotal = subtotal.Add(item.LineTotal())
	}

	o.Subtotal = money.Round2(subtotal)
	o.TotalAmount = money.Round2(
		o.Subtotal.
			Add(o.DeliveryFee).
			Add(o.ServiceFee).
			Add(o.CourierFee).
			Sub(o.DiscountAmount),
	)
}

// Checkout moves the cart to pending. Fee computation and promo application
// are the checkout pipeline's responsibility and happen exactly once,
// immediately after this transition.
func (o *Order) Checkout(now time.Time) error {
	if o.Status != StatusCart {
		return apperr.Conflictf("order %d is not a cart (status %s)", o.ID, o.Status)
	}
	if len(o.OrderItems) == 0 {
		return apperr.Validationf("cannot check out an empty cart")
	}

	o.Status = StatusPending
	o.UpdatedAt = now

	return nil
}

// Assignable reports whether the dispatch engine may attach a courier.
func (o *Order) Assignable() bool {
	switch o.Status {
	case StatusPending, StatusConfirmed, StatusPreparing:
		return o.CourierID == nil
	default:
		return false
	}
}

// AssignCourier attaches a courier and moves the order to assigned. The
// caller must hold the order's exclusive lock; a second concurrent claim
// fails here with a conflict.
func (o *Order) AssignCourier(courierID int64, now time.Time) error {
	if o.CourierID != nil {
		return apperr.Conflictf("order %d already taken by courier %d", o.ID, *o.CourierID)
	}
	if !CanTransition(o.Status, StatusAssigned) {
		return apperr.Conflictf("order %d is not assignable (status %s)", o.ID, o.Status)
	}

	o.CourierID = &courierID
	o.Status = StatusAssigned
	eta := now.Add(EstimatedDeliveryWindow)
	o.EstimatedDeliveryTime = &eta
	o.UpdatedAt = now

	return nil
}

// TransitionTo applies a role-gated status transition. It mutates nothing on
// rejection. Courier release side effects are carried out by the caller in
// the same atomic unit.
func (o *Order) TransitionTo(to Status, by actor.Actor, now time.Time) error {
	if to == StatusAssigned || to == StatusCart {
		return apperr.Validationf("status %s cannot be set directly", to)
	}

	if !RoleMaySet(by.Role, to) {
		return apperr.Authorizationf("role %s may not set status %s", by.Role, to)
	}

	switch by.Role {
	case actor.RoleCustomer:
		if by.ID != o.CustomerID {
			return apperr.Authorizationf("customer %d does not own order %d", by.ID, o.ID)
		}
	case actor.RoleCourier:
		if o.CourierID == nil || *o.CourierID != by.ID {
			return apperr.Authorizationf("courier %d is not assigned to order %d", by.ID, o.ID)
		}
	}

	if !CanTransition(o.Status, to) {
		return apperr.Conflictf("invalid transition %s -> %s for order %d", o.Status, to, o.ID)
	}

	o.Status = to
	o.UpdatedAt = now
	if to.Terminal() {
		o.ActualDeliveryTime = &now
	}

	return nil
}

// ReleaseCourier detaches the assigned courier, if any, returning its id.
func (o *Order) ReleaseCourier() (int64, bool) {
	if o.CourierID == nil {
		return 0, false
	}

	id := *o.CourierID
	o.CourierID = nil

	return id, true
}
