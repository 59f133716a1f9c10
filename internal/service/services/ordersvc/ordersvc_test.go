package ordersvc_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karakol/delivery/internal/dal/uow/uowtest"
	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/courier"
	"github.com/karakol/delivery/internal/service/models/money"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/service/models/orderitem"
	"github.com/karakol/delivery/internal/service/models/outbox"
	"github.com/karakol/delivery/internal/service/models/promo"
	"github.com/karakol/delivery/internal/service/models/restaurant"
	"github.com/karakol/delivery/internal/service/models/zone"
	"github.com/karakol/delivery/internal/service/services/dispatchsvc"
	"github.com/karakol/delivery/internal/service/services/ordersvc"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

// fakeCache is a map-backed snapshot cache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}

	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw

	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)

	return nil
}

// fakeDistance always answers with a fixed road distance.
type fakeDistance struct {
	meters float64
	err    error
}

func (d fakeDistance) Distance(context.Context, float64, float64, float64, float64) (float64, error) {
	return d.meters, d.err
}

func newService(store *uowtest.Store) *ordersvc.OrderService {
	return ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWorkFactory(store.Factory()),
		ordersvc.WithClock(func() time.Time { return now }),
	)
}

func seedCheckedOutCart(t *testing.T, store *uowtest.Store, customerID int64) order.Order {
	t.Helper()

	o := store.SeedOrder(order.NewCart(customerID, now))
	store.SeedItem(orderitem.OrderItem{
		OrderID:      o.ID,
		ProductID:    10,
		ProductTitle: "Lagman",
		Quantity:     2,
		UnitPrice:    money.RequireFromString("250"),
	})
	store.SeedItem(orderitem.OrderItem{
		OrderID:      o.ID,
		ProductID:    11,
		ProductTitle: "Shashlik set",
		Quantity:     1,
		UnitPrice:    money.RequireFromString("500"),
	})

	return o
}

func TestAddCartItem(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	by := actor.Customer(7)

	cart, err := svc.AddCartItem(context.Background(), by, ordersvc.AddCartItemParams{
		ProductID:    10,
		ProductTitle: "Lagman",
		Quantity:     2,
		UnitPrice:    money.RequireFromString("250"),
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusCart, cart.Status)
	require.Len(t, cart.OrderItems, 1)
	assert.True(t, cart.Subtotal.Equal(money.RequireFromString("500")), "subtotal %s", cart.Subtotal)
	assert.True(t, cart.TotalAmount.Equal(cart.Subtotal))
}

func TestAddCartItem_MergesSameProduct(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	by := actor.Customer(7)

	_, err := svc.AddCartItem(context.Background(), by, ordersvc.AddCartItemParams{
		ProductID: 10, ProductTitle: "Lagman", Quantity: 2, UnitPrice: money.RequireFromString("250"),
	})
	require.NoError(t, err)

	cart, err := svc.AddCartItem(context.Background(), by, ordersvc.AddCartItemParams{
		ProductID: 10, ProductTitle: "Lagman", Quantity: 1, UnitPrice: money.RequireFromString("300"),
	})
	require.NoError(t, err)

	require.Len(t, cart.OrderItems, 1, "same product merges into one line")
	assert.Equal(t, 3, cart.OrderItems[0].Quantity)
	assert.True(t, cart.OrderItems[0].UnitPrice.Equal(money.RequireFromString("300")), "price is re-snapshotted")
	assert.True(t, cart.Subtotal.Equal(money.RequireFromString("900")), "subtotal %s", cart.Subtotal)
}

func TestAddCartItem_ReusesOpenCart(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	by := actor.Customer(7)

	first, err := svc.AddCartItem(context.Background(), by, ordersvc.AddCartItemParams{
		ProductID: 10, ProductTitle: "Lagman", Quantity: 1, UnitPrice: money.RequireFromString("250"),
	})
	require.NoError(t, err)

	second, err := svc.AddCartItem(context.Background(), by, ordersvc.AddCartItemParams{
		ProductID: 11, ProductTitle: "Shashlik set", Quantity: 1, UnitPrice: money.RequireFromString("500"),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.OrderItems, 2)
}

func TestAddCartItem_Validation(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)

	_, err := svc.AddCartItem(context.Background(), actor.Courier(3), ordersvc.AddCartItemParams{
		ProductID: 10, ProductTitle: "Lagman", Quantity: 1, UnitPrice: money.RequireFromString("250"),
	})
	assert.True(t, apperr.IsAuthorization(err), "got %v", err)

	_, err = svc.AddCartItem(context.Background(), actor.Customer(7), ordersvc.AddCartItemParams{
		ProductID: 10, ProductTitle: "Lagman", Quantity: 0, UnitPrice: money.RequireFromString("250"),
	})
	assert.True(t, apperr.IsValidation(err), "got %v", err)

	_, err = svc.AddCartItem(context.Background(), actor.Customer(7), ordersvc.AddCartItemParams{
		ProductID: 10, ProductTitle: "", Quantity: 1, UnitPrice: money.RequireFromString("250"),
	})
	assert.True(t, apperr.IsValidation(err), "got %v", err)
}

func TestCheckout_ZoneFallbackPricing(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	by := actor.Customer(7)
	o := seedCheckedOutCart(t, store, 7)

	out, err := svc.Checkout(context.Background(), by, o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: gofakeit.Street(),
		PhoneNumber:     gofakeit.Phone(),
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, out.Status)
	assert.True(t, out.Subtotal.Equal(money.RequireFromString("1000")), "subtotal %s", out.Subtotal)
	assert.True(t, out.DeliveryFee.Equal(money.RequireFromString("100")), "delivery %s", out.DeliveryFee)
	assert.True(t, out.ServiceFee.Equal(money.RequireFromString("15")), "service %s", out.ServiceFee)
	assert.True(t, out.CourierFee.Equal(money.RequireFromString("85")), "courier %s", out.CourierFee)
	assert.True(t, out.TotalAmount.Equal(money.RequireFromString("1200")), "total %s", out.TotalAmount)

	var statusEvents int
	for _, msg := range store.OutboxMessages() {
		if msg.RoutingKey == outbox.RoutingKeyOrderStatus {
			statusEvents++
		}
	}
	assert.Equal(t, 1, statusEvents)
}

func TestCheckout_DistancePricing(t *testing.T) {
	store := uowtest.NewStore()
	store.SeedRestaurant(restaurant.Restaurant{ID: 4, Latitude: 42.87, Longitude: 74.59, IsActive: true})

	svc := ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWorkFactory(store.Factory()),
		ordersvc.WithDistanceProvider(fakeDistance{meters: 5000}),
		ordersvc.WithClock(func() time.Time { return now }),
	)

	o := seedCheckedOutCart(t, store, 7)
	lat, lon := 42.84, 74.61
	restaurantID := int64(4)

	out, err := svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress:   "12 Chuy ave",
		DeliveryLatitude:  &lat,
		DeliveryLongitude: &lon,
		RestaurantID:      &restaurantID,
	})
	require.NoError(t, err)

	assert.True(t, out.DeliveryFee.Equal(money.RequireFromString("180")), "delivery %s", out.DeliveryFee)
	assert.True(t, out.TotalAmount.Equal(money.RequireFromString("1180")), "total %s", out.TotalAmount)
}

func TestCheckout_DistanceFailureFallsBackToZone(t *testing.T) {
	store := uowtest.NewStore()
	store.SeedRestaurant(restaurant.Restaurant{ID: 4, Latitude: 42.87, Longitude: 74.59, IsActive: true})
	store.SeedZone(zone.Zone{ID: 2, DeliveryFee: money.RequireFromString("150"), IsActive: true})

	svc := ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWorkFactory(store.Factory()),
		ordersvc.WithDistanceProvider(fakeDistance{err: apperr.Unavailablef("routing provider down")}),
		ordersvc.WithClock(func() time.Time { return now }),
	)

	o := seedCheckedOutCart(t, store, 7)
	lat, lon := 42.84, 74.61
	restaurantID := int64(4)
	zoneID := int64(2)

	out, err := svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress:   "12 Chuy ave",
		DeliveryLatitude:  &lat,
		DeliveryLongitude: &lon,
		RestaurantID:      &restaurantID,
		ZoneID:            &zoneID,
	})
	require.NoError(t, err)

	assert.True(t, out.DeliveryFee.Equal(money.RequireFromString("150")), "delivery %s", out.DeliveryFee)
}

func TestCheckout_PercentagePromo(t *testing.T) {
	store := uowtest.NewStore()
	store.SeedPromo(promo.PromoCode{
		ID:             1,
		Code:           "TEN",
		DiscountType:   promo.DiscountPercentage,
		Value:          money.RequireFromString("10"),
		StartDate:      now.Add(-time.Hour),
		EndDate:        now.Add(time.Hour),
		MinOrderAmount: money.RequireFromString("300"),
		IsActive:       true,
	})
	svc := newService(store)
	o := seedCheckedOutCart(t, store, 7)

	out, err := svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: "12 Chuy ave",
		PromoCode:       "TEN",
	})
	require.NoError(t, err)

	assert.True(t, out.DiscountAmount.Equal(money.RequireFromString("100")), "discount %s", out.DiscountAmount)
	assert.True(t, out.TotalAmount.Equal(money.RequireFromString("1100")), "total %s", out.TotalAmount)
	assert.Equal(t, "TEN", out.PromoCode)

	code, _ := store.Promo(1)
	assert.Equal(t, 1, code.UsedCount, "usage counter must increment with the order")
}

func TestCheckout_FreeDeliveryPromo(t *testing.T) {
	store := uowtest.NewStore()
	store.SeedPromo(promo.PromoCode{
		ID:           1,
		Code:         "FREEDEL",
		DiscountType: promo.DiscountFreeDelivery,
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(time.Hour),
		IsActive:     true,
	})
	svc := newService(store)
	o := seedCheckedOutCart(t, store, 7)

	out, err := svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: "12 Chuy ave",
		PromoCode:       "FREEDEL",
	})
	require.NoError(t, err)

	assert.True(t, out.DeliveryFee.IsZero())
	assert.True(t, out.ServiceFee.IsZero())
	assert.True(t, out.CourierFee.IsZero())
	assert.True(t, out.TotalAmount.Equal(money.RequireFromString("1000")), "total %s", out.TotalAmount)
}

func TestCheckout_InapplicablePromo(t *testing.T) {
	store := uowtest.NewStore()
	store.SeedPromo(promo.PromoCode{
		ID:             1,
		Code:           "BIG",
		DiscountType:   promo.DiscountPercentage,
		Value:          money.RequireFromString("10"),
		StartDate:      now.Add(-time.Hour),
		EndDate:        now.Add(time.Hour),
		MinOrderAmount: money.RequireFromString("5000"),
		IsActive:       true,
	})
	svc := newService(store)
	o := seedCheckedOutCart(t, store, 7)

	_, err := svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: "12 Chuy ave",
		PromoCode:       "BIG",
	})
	assert.True(t, apperr.IsValidation(err), "got %v", err)

	got, _ := store.Order(o.ID)
	assert.Equal(t, order.StatusCart, got.Status, "failed checkout must roll back")

	code, _ := store.Promo(1)
	assert.Equal(t, 0, code.UsedCount)
}

func TestCheckout_UnknownPromo(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	o := seedCheckedOutCart(t, store, 7)

	_, err := svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: "12 Chuy ave",
		PromoCode:       "NOPE",
	})
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
}

func TestCheckout_EmptyCart(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	o := store.SeedOrder(order.NewCart(7, now))

	_, err := svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: "12 Chuy ave",
	})
	assert.True(t, apperr.IsValidation(err), "got %v", err)
}

func TestCheckout_Guards(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	o := seedCheckedOutCart(t, store, 7)

	_, err := svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{})
	assert.True(t, apperr.IsValidation(err), "missing address, got %v", err)

	_, err = svc.Checkout(context.Background(), actor.Customer(8), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: "12 Chuy ave",
	})
	assert.True(t, apperr.IsAuthorization(err), "foreign cart, got %v", err)

	_, err = svc.Checkout(context.Background(), actor.Courier(3), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: "12 Chuy ave",
	})
	assert.True(t, apperr.IsAuthorization(err), "courier role, got %v", err)

	_, err = svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: "12 Chuy ave",
		PaymentMethod:   "crypto",
	})
	assert.True(t, apperr.IsValidation(err), "bad payment method, got %v", err)
}

func TestCheckout_TriggersAutoAssignment(t *testing.T) {
	store := uowtest.NewStore()
	store.SeedCourier(courier.Courier{ID: 1, Status: courier.StatusAvailable, IsAvailable: true})

	dispatch := dispatchsvc.MustNewService(
		dispatchsvc.WithUnitOfWorkFactory(store.Factory()),
		dispatchsvc.WithClock(func() time.Time { return now }),
	)
	svc := ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWorkFactory(store.Factory()),
		ordersvc.WithDispatcher(dispatch),
		ordersvc.WithClock(func() time.Time { return now }),
	)

	o := seedCheckedOutCart(t, store, 7)

	out, err := svc.Checkout(context.Background(), actor.Customer(7), o.ID, ordersvc.CheckoutParams{
		DeliveryAddress: "12 Chuy ave",
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusAssigned, out.Status)
	require.NotNil(t, out.CourierID)
	assert.Equal(t, int64(1), *out.CourierID)
}

func seedAssignedOrder(store *uowtest.Store, customerID, courierID int64) order.Order {
	store.SeedCourier(courier.Courier{ID: courierID, Status: courier.StatusBusy})

	return store.SeedOrder(order.Order{
		CustomerID: customerID,
		CourierID:  &courierID,
		Status:     order.StatusAssigned,
		CreatedAt:  now,
	})
}

func TestUpdateStatus_CourierHappyPath(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	o := seedAssignedOrder(store, 7, 3)
	by := actor.Courier(3)

	for _, to := range []order.Status{order.StatusPickedUp, order.StatusDelivering} {
		_, err := svc.UpdateStatus(context.Background(), by, o.ID, to)
		require.NoError(t, err)
	}

	out, err := svc.UpdateStatus(context.Background(), by, o.ID, order.StatusDelivered)
	require.NoError(t, err)

	assert.Equal(t, order.StatusDelivered, out.Status)
	require.NotNil(t, out.CourierID, "order keeps the courier reference for history")
	require.NotNil(t, out.ActualDeliveryTime)

	c, _ := store.Courier(3)
	assert.True(t, c.IsAvailable, "courier must be released on delivery")
	assert.Equal(t, courier.StatusAvailable, c.Status)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	o := seedAssignedOrder(store, 7, 3)

	_, err := svc.UpdateStatus(context.Background(), actor.Courier(3), o.ID, order.StatusDelivered)
	assert.True(t, apperr.IsConflict(err), "got %v", err)

	got, _ := store.Order(o.ID)
	assert.Equal(t, order.StatusAssigned, got.Status)
}

func TestUpdateStatus_RoleGate(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	o := seedAssignedOrder(store, 7, 3)

	_, err := svc.UpdateStatus(context.Background(), actor.Customer(7), o.ID, order.StatusPickedUp)
	assert.True(t, apperr.IsAuthorization(err), "got %v", err)
}

func TestCancel_ReleasesCourier(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	o := seedAssignedOrder(store, 7, 3)

	out, err := svc.Cancel(context.Background(), actor.Customer(7), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, out.Status)

	c, _ := store.Courier(3)
	assert.True(t, c.IsAvailable)
}

func TestCancel_TerminalConflicts(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	o := store.SeedOrder(order.Order{CustomerID: 7, Status: order.StatusDelivered, CreatedAt: now})

	_, err := svc.Cancel(context.Background(), actor.Staff(9), o.ID)
	assert.True(t, apperr.IsConflict(err), "got %v", err)
}

func seedDeliveredOrder(store *uowtest.Store, customerID, courierID int64, restaurantID, zoneID *int64) order.Order {
	if _, ok := store.Courier(courierID); !ok {
		store.SeedCourier(courier.Courier{ID: courierID, Status: courier.StatusAvailable, IsAvailable: true})
	}

	return store.SeedOrder(order.Order{
		CustomerID:   customerID,
		CourierID:    &courierID,
		RestaurantID: restaurantID,
		ZoneID:       zoneID,
		Status:       order.StatusDelivered,
		CreatedAt:    now,
	})
}

func TestRate(t *testing.T) {
	store := uowtest.NewStore()
	restaurantID, zoneID := int64(4), int64(2)
	store.SeedRestaurant(restaurant.Restaurant{ID: restaurantID, IsActive: true})
	store.SeedZone(zone.Zone{ID: zoneID, IsActive: true})
	svc := newService(store)

	first := seedDeliveredOrder(store, 7, 3, &restaurantID, &zoneID)
	second := seedDeliveredOrder(store, 7, 3, &restaurantID, &zoneID)
	third := seedDeliveredOrder(store, 7, 3, &restaurantID, &zoneID)

	rt, err := svc.Rate(context.Background(), actor.Customer(7), first.ID, 4, "solid")
	require.NoError(t, err)
	assert.Equal(t, 4, rt.Score)
	assert.Equal(t, int64(3), rt.CourierID)

	_, err = svc.Rate(context.Background(), actor.Customer(7), second.ID, 5, "")
	require.NoError(t, err)

	c, _ := store.Courier(3)
	assert.True(t, c.AvgRating.Equal(money.RequireFromString("4.5")), "courier avg %s", c.AvgRating)

	r, _ := store.Restaurant(restaurantID)
	assert.True(t, r.AvgRating.Equal(money.RequireFromString("4.5")), "restaurant avg %s", r.AvgRating)

	z, _ := store.Zone(zoneID)
	assert.True(t, z.AvgRating.Equal(money.RequireFromString("4.5")), "zone avg %s", z.AvgRating)

	// Prior scores [4,5] plus a 3 average to exactly 4.0 across an odd count.
	_, err = svc.Rate(context.Background(), actor.Customer(7), third.ID, 3, "late")
	require.NoError(t, err)

	c, _ = store.Courier(3)
	assert.True(t, c.AvgRating.Equal(money.RequireFromString("4")), "courier avg %s", c.AvgRating)

	r, _ = store.Restaurant(restaurantID)
	assert.True(t, r.AvgRating.Equal(money.RequireFromString("4")), "restaurant avg %s", r.AvgRating)

	z, _ = store.Zone(zoneID)
	assert.True(t, z.AvgRating.Equal(money.RequireFromString("4")), "zone avg %s", z.AvgRating)
}

func TestRate_Guards(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	delivered := seedDeliveredOrder(store, 7, 3, nil, nil)

	_, err := svc.Rate(context.Background(), actor.Courier(3), delivered.ID, 5, "")
	assert.True(t, apperr.IsAuthorization(err), "courier role, got %v", err)

	_, err = svc.Rate(context.Background(), actor.Customer(8), delivered.ID, 5, "")
	assert.True(t, apperr.IsAuthorization(err), "foreign order, got %v", err)

	_, err = svc.Rate(context.Background(), actor.Customer(7), delivered.ID, 6, "")
	assert.True(t, apperr.IsValidation(err), "score range, got %v", err)

	inFlight := seedAssignedOrder(store, 7, 5)
	_, err = svc.Rate(context.Background(), actor.Customer(7), inFlight.ID, 5, "")
	assert.True(t, apperr.IsConflict(err), "not delivered, got %v", err)
}

func TestRate_OncePerOrder(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	o := seedDeliveredOrder(store, 7, 3, nil, nil)

	_, err := svc.Rate(context.Background(), actor.Customer(7), o.ID, 5, "")
	require.NoError(t, err)

	_, err = svc.Rate(context.Background(), actor.Customer(7), o.ID, 1, "changed my mind")
	assert.True(t, apperr.IsConflict(err), "got %v", err)

	c, _ := store.Courier(3)
	assert.True(t, c.AvgRating.Equal(money.RequireFromString("5")), "avg must reflect the first rating only")
}

func TestUpdateCourierLocation(t *testing.T) {
	store := uowtest.NewStore()
	store.SeedCourier(courier.Courier{ID: 3, Status: courier.StatusAvailable, IsAvailable: true})
	svc := newService(store)

	c, err := svc.UpdateCourierLocation(context.Background(), actor.Courier(3), 42.87, 74.59, "")
	require.NoError(t, err)

	require.NotNil(t, c.CurrentLatitude)
	assert.Equal(t, 42.87, *c.CurrentLatitude)
	assert.Equal(t, now, c.LastLocationAt)
	assert.True(t, c.IsAvailable, "status untouched when not sent")

	c, err = svc.UpdateCourierLocation(context.Background(), actor.Courier(3), 42.88, 74.60, "offline")
	require.NoError(t, err)
	assert.Equal(t, courier.StatusOffline, c.Status)
	assert.False(t, c.IsAvailable)

	_, err = svc.UpdateCourierLocation(context.Background(), actor.Courier(3), 42.88, 74.60, "sleeping")
	assert.True(t, apperr.IsValidation(err), "got %v", err)

	_, err = svc.UpdateCourierLocation(context.Background(), actor.Customer(7), 42.88, 74.60, "")
	assert.True(t, apperr.IsAuthorization(err), "got %v", err)

	var mapUpdates int
	for _, msg := range store.OutboxMessages() {
		if msg.RoutingKey == outbox.RoutingKeyMapUpdate {
			mapUpdates++
		}
	}
	assert.Equal(t, 2, mapUpdates)
}

func TestUpdateCourierLocation_PreservesBusyPair(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	seedAssignedOrder(store, 7, 3)

	c, err := svc.UpdateCourierLocation(context.Background(), actor.Courier(3), 42.87, 74.59, "")
	require.NoError(t, err)

	assert.Equal(t, courier.StatusBusy, c.Status, "coords-only update must not touch the availability pair")
	assert.False(t, c.IsAvailable)
}

// TestUpdateCourierLocation_ConcurrentClaim races a claim against a location
// report for the same courier. The location write runs under the courier row
// lock, so it can never overwrite the busy/unavailable pair the claim
// committed with a stale available pair read before the claim.
func TestUpdateCourierLocation_ConcurrentClaim(t *testing.T) {
	for i := 0; i < 200; i++ {
		store := uowtest.NewStore()
		store.SeedCourier(courier.Courier{ID: 3, Status: courier.StatusAvailable, IsAvailable: true})
		o := store.SeedOrder(order.Order{CustomerID: 7, Status: order.StatusPending, CreatedAt: now})

		svc := newService(store)
		dispatch := dispatchsvc.MustNewService(
			dispatchsvc.WithUnitOfWorkFactory(store.Factory()),
			dispatchsvc.WithClock(func() time.Time { return now }),
		)

		var wg sync.WaitGroup
		var claimErr, locErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, claimErr = dispatch.Claim(context.Background(), actor.Courier(3), o.ID)
		}()
		go func() {
			defer wg.Done()
			_, locErr = svc.UpdateCourierLocation(context.Background(), actor.Courier(3), 42.87, 74.59, "")
		}()
		wg.Wait()

		require.NoError(t, claimErr)
		require.NoError(t, locErr)

		got, _ := store.Order(o.ID)
		require.NotNil(t, got.CourierID)

		c, _ := store.Courier(3)
		require.False(t, c.IsAvailable, "location report must not resurrect availability of a claimed courier")
		require.Equal(t, courier.StatusBusy, c.Status)
	}
}

func TestGetOrder_Visibility(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	courierID, restaurantID := int64(3), int64(4)
	o := store.SeedOrder(order.Order{
		CustomerID:   7,
		CourierID:    &courierID,
		RestaurantID: &restaurantID,
		Status:       order.StatusAssigned,
		CreatedAt:    now,
	})

	tests := []struct {
		name string
		by   actor.Actor
		ok   bool
	}{
		{"owner", actor.Customer(7), true},
		{"other customer", actor.Customer(8), false},
		{"assigned courier", actor.Courier(3), true},
		{"other courier", actor.Courier(9), false},
		{"order's restaurant", actor.RestaurantPartner(4), true},
		{"other restaurant", actor.RestaurantPartner(5), false},
		{"staff", actor.Staff(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetOrder(context.Background(), tt.by, o.ID)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperr.IsAuthorization(err), "got %v", err)
			}
		})
	}
}

func TestListOrders_ScopedByRole(t *testing.T) {
	store := uowtest.NewStore()
	svc := newService(store)
	courierID := int64(3)
	store.SeedOrder(order.Order{CustomerID: 7, Status: order.StatusPending, CreatedAt: now})
	store.SeedOrder(order.Order{CustomerID: 8, CourierID: &courierID, Status: order.StatusAssigned, CreatedAt: now})

	own, err := svc.ListOrders(context.Background(), actor.Customer(7), &order.QueryOrdersModel{
		CustomerIds: []int64{8},
	})
	require.NoError(t, err)
	require.Len(t, own, 1, "customer filter is forced to their own id")
	assert.Equal(t, int64(7), own[0].CustomerID)

	assigned, err := svc.ListOrders(context.Background(), actor.Courier(3), nil)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, int64(8), assigned[0].CustomerID)

	all, err := svc.ListOrders(context.Background(), actor.Staff(1), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.ListOrders(context.Background(), actor.RestaurantPartner(4), nil)
	assert.True(t, apperr.IsAuthorization(err), "got %v", err)
}

func TestGetMapSnapshot(t *testing.T) {
	store := uowtest.NewStore()
	store.SeedCourier(courier.Courier{ID: 1, Status: courier.StatusAvailable, IsAvailable: true})
	store.SeedCourier(courier.Courier{ID: 2, Status: courier.StatusOffline})
	store.SeedRestaurant(restaurant.Restaurant{ID: 4, IsActive: true})
	courierID := int64(1)
	store.SeedOrder(order.Order{CustomerID: 7, CourierID: &courierID, Status: order.StatusDelivering, CreatedAt: now})
	store.SeedOrder(order.Order{CustomerID: 8, Status: order.StatusPending, CreatedAt: now})

	cache := newFakeCache()
	svc := ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWorkFactory(store.Factory()),
		ordersvc.WithSnapshotCache(cache),
		ordersvc.WithClock(func() time.Time { return now }),
	)

	snapshot, err := svc.GetMapSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot.Couriers, 1, "only available couriers are on the map")
	require.Len(t, snapshot.Orders, 1, "only in-flight orders are on the map")
	assert.Len(t, snapshot.Restaurants, 1)

	// A write behind the cache is invisible until invalidation.
	store.SeedCourier(courier.Courier{ID: 5, Status: courier.StatusAvailable, IsAvailable: true})

	cached, err := svc.GetMapSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached.Couriers, 1, "second read must come from the cache")

	// The location update invalidates, so the next read rebuilds.
	_, err = svc.UpdateCourierLocation(context.Background(), actor.Courier(5), 42.87, 74.59, "")
	require.NoError(t, err)

	fresh, err := svc.GetMapSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, fresh.Couriers, 2)
}
