package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/dal/redis"
	"github.com/karakol/delivery/internal/dal/uow"
	"github.com/karakol/delivery/internal/geo"
	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/courier"
	"github.com/karakol/delivery/internal/service/models/fees"
	"github.com/karakol/delivery/internal/service/models/money"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/service/models/orderitem"
	"github.com/karakol/delivery/internal/service/models/outbox"
	"github.com/karakol/delivery/internal/service/models/promo"
	"github.com/karakol/delivery/internal/service/models/rating"
	"github.com/karakol/delivery/internal/service/models/restaurant"
	"github.com/karakol/delivery/internal/service/models/zone"
)

// dispatcher is the slice of the dispatch engine checkout needs.
type dispatcher interface {
	AttemptAssign(ctx context.Context, orderID int64) (bool, error)
}

// snapshotCache is the slice of the redis client the map feed needs.
type snapshotCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context, key string) error
}

// OrderService owns the order lifecycle: cart, checkout with pricing, status
// transitions, cancellation, ratings and the read-side feeds.
type OrderService struct {
	uowFactory uow.Factory
	dispatch   dispatcher
	distance   geo.DistanceProvider
	cache      snapshotCache
	now        func() time.Time
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.uowFactory == nil {
		panic("ordersvc: unit of work factory is required")
	}

	return s
}

// WithUnitOfWorkFactory sets the unit of work factory for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory uow.Factory) option {
	return func(s *OrderService) {
		s.uowFactory = factory
	}
}

// WithDispatcher sets the dispatch engine used after checkout.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDispatcher(d dispatcher) option {
	return func(s *OrderService) {
		s.dispatch = d
	}
}

// WithDistanceProvider sets the routing client for distance-based pricing.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDistanceProvider(p geo.DistanceProvider) option {
	return func(s *OrderService) {
		s.distance = p
	}
}

// WithSnapshotCache sets the map snapshot cache.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSnapshotCache(cache snapshotCache) option {
	return func(s *OrderService) {
		s.cache = cache
	}
}

// WithClock overrides the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *OrderService) {
		s.now = now
	}
}

// AddCartItemParams describes one product added to the cart.
type AddCartItemParams struct {
	ProductID    int64
	ProductTitle string
	Quantity     int
	UnitPrice    decimal.Decimal
}

// AddCartItem adds a product to the customer's open cart, creating the cart
// if none exists. Adding the same product again merges quantities and
// refreshes the snapshot price. Fees are not computed in cart state.
func (s *OrderService) AddCartItem(ctx context.Context, by actor.Actor, p AddCartItemParams) (order.Order, error) {
	if by.Role != actor.RoleCustomer {
		return order.Order{}, apperr.Authorizationf("role %s may not modify carts", by.Role)
	}
	if p.Quantity <= 0 {
		return order.Order{}, apperr.Validationf("quantity must be positive, got %d", p.Quantity)
	}
	if p.UnitPrice.IsNegative() {
		return order.Order{}, apperr.Validationf("unit price must not be negative")
	}
	if p.ProductTitle == "" {
		return order.Order{}, apperr.Validationf("product title is required")
	}

	now := s.now()

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, work, "add cart item")

	cart, err := work.Orders().FindCart(ctx, by.ID)
	if err != nil {
		return order.Order{}, err
	}
	if cart == nil {
		created, err := work.Orders().Insert(ctx, order.NewCart(by.ID, now))
		if err != nil {
			return order.Order{}, err
		}
		cart = &created
	}

	items, err := work.OrderItems().ListByOrder(ctx, cart.ID)
	if err != nil {
		return order.Order{}, err
	}

	merged := false
	for i := range items {
		if items[i].ProductID == p.ProductID {
			items[i].Quantity += p.Quantity
			items[i].UnitPrice = p.UnitPrice
			items[i].UpdatedAt = now
			if err := work.OrderItems().Update(ctx, items[i]); err != nil {
				return order.Order{}, err
			}
			merged = true

			break
		}
	}

	if !merged {
		item, err := work.OrderItems().Insert(ctx, orderitem.OrderItem{
			OrderID:      cart.ID,
			ProductID:    p.ProductID,
			ProductTitle: p.ProductTitle,
			Quantity:     p.Quantity,
			UnitPrice:    p.UnitPrice,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return order.Order{}, err
		}
		items = append(items, item)
	}

	cart.OrderItems = items
	cart.UpdatedAt = now
	cart.RecomputeTotals()

	if err := work.Orders().Update(ctx, *cart); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to commit cart update: %w", err)
	}

	return *cart, nil
}

// CheckoutParams carries delivery details supplied at checkout.
type CheckoutParams struct {
	DeliveryAddress   string
	DeliveryLatitude  *float64
	DeliveryLongitude *float64
	PhoneNumber       string
	ZoneID            *int64
	RestaurantID      *int64
	PaymentMethod     string
	PromoCode         string
	Notes             string
}

// Checkout freezes the cart and prices it: the cart moves to pending exactly
// once, fees are computed (distance-based when the routing provider answers,
// zone fallback otherwise) and the promo code is validated, applied and its
// usage counter incremented in the same transaction. Automatic courier
// assignment is attempted after the commit.
func (s *OrderService) Checkout(ctx context.Context, by actor.Actor, orderID int64, p CheckoutParams) (order.Order, error) {
	if by.Role != actor.RoleCustomer && !by.IsStaff() {
		return order.Order{}, apperr.Authorizationf("role %s may not check out orders", by.Role)
	}

	paymentMethod, err := order.ParsePaymentMethod(p.PaymentMethod)
	if err != nil {
		return order.Order{}, apperr.Validationf("invalid payment method %q", p.PaymentMethod)
	}
	if p.DeliveryAddress == "" {
		return order.Order{}, apperr.Validationf("delivery address is required")
	}

	now := s.now()
	distanceMeters := s.lookupDistance(ctx, p)

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, work, "checkout")

	o, err := work.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if by.Role == actor.RoleCustomer && o.CustomerID != by.ID {
		return order.Order{}, apperr.Authorizationf("customer %d does not own order %d", by.ID, o.ID)
	}

	o.OrderItems, err = work.OrderItems().ListByOrder(ctx, o.ID)
	if err != nil {
		return order.Order{}, err
	}

	o.DeliveryAddress = p.DeliveryAddress
	o.DeliveryLatitude = p.DeliveryLatitude
	o.DeliveryLongitude = p.DeliveryLongitude
	o.PhoneNumber = p.PhoneNumber
	o.ZoneID = p.ZoneID
	o.RestaurantID = p.RestaurantID
	o.PaymentMethod = paymentMethod
	o.Notes = p.Notes

	if err := o.Checkout(now); err != nil {
		return order.Order{}, err
	}

	var z *zone.Zone
	if o.ZoneID != nil {
		found, err := work.Zones().GetByID(ctx, *o.ZoneID)
		if err != nil {
			return order.Order{}, err
		}
		z = &found
	}

	o.RecomputeTotals()
	f := fees.Compute(o.Subtotal, z, distanceMeters)

	discount := money.Zero
	if p.PromoCode != "" {
		code, err := work.Promos().GetForUpdate(ctx, p.PromoCode)
		if err != nil {
			return order.Order{}, err
		}

		applied := false
		var newDeliveryFee decimal.Decimal
		discount, newDeliveryFee, applied = code.ApplyDiscount(o.Subtotal, f.DeliveryFee, now)
		if !applied {
			return order.Order{}, apperr.Validationf("promo code %q is not applicable", p.PromoCode)
		}

		if code.DiscountType == promo.DiscountFreeDelivery {
			f = fees.Recompute(newDeliveryFee)
		}

		if err := work.Promos().IncrementUsage(ctx, code.ID); err != nil {
			return order.Order{}, err
		}

		o.PromoCode = code.Code
	}

	o.DeliveryFee = f.DeliveryFee
	o.ServiceFee = f.ServiceFee
	o.CourierFee = f.CourierFee
	o.DiscountAmount = discount
	o.RecomputeTotals()

	if err := work.Orders().Update(ctx, o); err != nil {
		return order.Order{}, err
	}

	if err := s.enqueueStatusEvents(ctx, work, o, "checkout", now); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to commit checkout: %w", err)
	}

	s.invalidateSnapshot(ctx)

	if s.dispatch != nil {
		if _, err := s.dispatch.AttemptAssign(ctx, o.ID); err != nil {
			slog.Error("Automatic assignment after checkout failed", "order_id", o.ID, "error", err)
		}
	}

	return s.GetOrder(ctx, by, o.ID)
}

// lookupDistance asks the routing provider for the restaurant-to-customer
// road distance. Any failure degrades pricing to the zone fallback; the error
// is logged and never surfaced.
func (s *OrderService) lookupDistance(ctx context.Context, p CheckoutParams) *float64 {
	if s.distance == nil || p.RestaurantID == nil || p.DeliveryLatitude == nil || p.DeliveryLongitude == nil {
		return nil
	}

	work := s.uowFactory()
	rest, err := work.Restaurants().GetByID(ctx, *p.RestaurantID)
	if err != nil {
		slog.Warn("Failed to load restaurant for distance lookup", "restaurant_id", *p.RestaurantID, "error", err)

		return nil
	}

	meters, err := s.distance.Distance(ctx, rest.Latitude, rest.Longitude, *p.DeliveryLatitude, *p.DeliveryLongitude)
	if err != nil {
		slog.Warn("Distance lookup failed, using zone pricing", "restaurant_id", rest.ID, "error", err)

		return nil
	}

	return &meters
}

// UpdateStatus applies a role-gated status transition. When the order reaches
// a terminal status its courier is set available again in the same
// transaction; the order keeps the courier reference for history and ratings.
func (s *OrderService) UpdateStatus(ctx context.Context, by actor.Actor, orderID int64, to order.Status) (order.Order, error) {
	now := s.now()

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, work, "status update")

	o, err := work.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}

	if err := o.TransitionTo(to, by, now); err != nil {
		return order.Order{}, err
	}

	if to.ReleasesCourier() && o.CourierID != nil {
		c, err := work.Couriers().GetForUpdate(ctx, *o.CourierID)
		if err != nil {
			return order.Order{}, err
		}
		c.Release()
		if err := work.Couriers().Update(ctx, c); err != nil {
			return order.Order{}, err
		}
	}

	if err := work.Orders().Update(ctx, o); err != nil {
		return order.Order{}, err
	}

	if err := s.enqueueStatusEvents(ctx, work, o, "status_change", now); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to commit status update: %w", err)
	}

	s.invalidateSnapshot(ctx)

	slog.Info("Order status updated", "order_id", o.ID, "status", o.Status, "by_role", by.Role)

	return o, nil
}

// Cancel moves any non-terminal order to cancelled. Cancelling a terminal
// order is a conflict, not a no-op.
func (s *OrderService) Cancel(ctx context.Context, by actor.Actor, orderID int64) (order.Order, error) {
	return s.UpdateStatus(ctx, by, orderID, order.StatusCancelled)
}

// Rate records the customer's score for a delivered order and recomputes the
// courier, restaurant and zone averages inside the same transaction. One
// rating per order.
func (s *OrderService) Rate(ctx context.Context, by actor.Actor, orderID int64, score int, comment string) (rating.Rating, error) {
	if by.Role != actor.RoleCustomer {
		return rating.Rating{}, apperr.Authorizationf("role %s may not rate orders", by.Role)
	}
	if err := rating.ValidateScore(score); err != nil {
		return rating.Rating{}, err
	}

	now := s.now()

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return rating.Rating{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, work, "rating")

	o, err := work.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return rating.Rating{}, err
	}
	if o.CustomerID != by.ID {
		return rating.Rating{}, apperr.Authorizationf("customer %d does not own order %d", by.ID, o.ID)
	}
	if o.Status != order.StatusDelivered {
		return rating.Rating{}, apperr.Conflictf("order %d is not delivered (status %s)", o.ID, o.Status)
	}
	if o.CourierID == nil {
		return rating.Rating{}, apperr.Conflictf("order %d has no courier to rate", o.ID)
	}

	existing, err := work.Ratings().FindByOrder(ctx, o.ID)
	if err != nil {
		return rating.Rating{}, err
	}
	if existing != nil {
		return rating.Rating{}, apperr.Conflictf("order %d is already rated", o.ID)
	}

	rt, err := work.Ratings().Insert(ctx, rating.Rating{
		OrderID:      o.ID,
		CourierID:    *o.CourierID,
		RestaurantID: o.RestaurantID,
		Score:        score,
		Comment:      comment,
		CreatedAt:    now,
	})
	if err != nil {
		return rating.Rating{}, err
	}

	if err := s.recomputeAggregates(ctx, work, o); err != nil {
		return rating.Rating{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return rating.Rating{}, fmt.Errorf("failed to commit rating: %w", err)
	}

	return rt, nil
}

// recomputeAggregates refreshes every average the new rating touches: the
// courier's over all their ratings, the restaurant's over all its ratings and
// the zone's over delivered orders in the zone.
func (s *OrderService) recomputeAggregates(ctx context.Context, work uow.UnitOfWork, o order.Order) error {
	courierScores, err := work.Ratings().ScoresByCourier(ctx, *o.CourierID)
	if err != nil {
		return err
	}
	c, err := work.Couriers().GetForUpdate(ctx, *o.CourierID)
	if err != nil {
		return err
	}
	c.AvgRating = meanScore(courierScores)
	if err := work.Couriers().Update(ctx, c); err != nil {
		return err
	}

	if o.RestaurantID != nil {
		scores, err := work.Ratings().ScoresByRestaurant(ctx, *o.RestaurantID)
		if err != nil {
			return err
		}
		if err := work.Restaurants().UpdateAvgRating(ctx, *o.RestaurantID, meanScore(scores)); err != nil {
			return err
		}
	}

	if o.ZoneID != nil {
		scores, err := work.Orders().DeliveredScoresByZone(ctx, *o.ZoneID)
		if err != nil {
			return err
		}
		if err := work.Zones().UpdateAvgRating(ctx, *o.ZoneID, meanScore(scores)); err != nil {
			return err
		}
	}

	return nil
}

func meanScore(scores []int) decimal.Decimal {
	if len(scores) == 0 {
		return money.Zero
	}

	sum := lo.Sum(scores)

	return money.Round2(decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(scores)))))
}

// UpdateCourierLocation stores the courier's position and optional status
// change, then signals the map feed. The courier row is locked for the whole
// unit: a plain read-modify-write here could overwrite the busy/unavailable
// pair a concurrent claim just committed.
func (s *OrderService) UpdateCourierLocation(ctx context.Context, by actor.Actor, lat, lon float64, status string) (courier.Courier, error) {
	if by.Role != actor.RoleCourier {
		return courier.Courier{}, apperr.Authorizationf("role %s may not report courier locations", by.Role)
	}

	now := s.now()

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return courier.Courier{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, work, "courier location")

	c, err := work.Couriers().GetForUpdate(ctx, by.ID)
	if err != nil {
		return courier.Courier{}, err
	}

	c.CurrentLatitude = &lat
	c.CurrentLongitude = &lon
	c.LastLocationAt = now

	if status != "" {
		parsed, err := courier.ParseStatus(status)
		if err != nil {
			return courier.Courier{}, apperr.Validationf("invalid courier status %q", status)
		}
		c.Status = parsed
		c.IsAvailable = parsed == courier.StatusAvailable
	}

	if err := work.Couriers().Update(ctx, c); err != nil {
		return courier.Courier{}, err
	}

	msg, err := outbox.NewMessage(outbox.RoutingKeyMapUpdate, outbox.MapUpdate{Reason: "courier_location"}, now)
	if err != nil {
		return courier.Courier{}, err
	}
	if err := work.Outbox().Insert(ctx, msg); err != nil {
		return courier.Courier{}, fmt.Errorf("failed to enqueue map update: %w", err)
	}

	if err := work.Commit(ctx); err != nil {
		return courier.Courier{}, fmt.Errorf("failed to commit courier location: %w", err)
	}

	s.invalidateSnapshot(ctx)

	return c, nil
}

// GetOrder returns one order with its items. Customers see their own orders,
// couriers the orders assigned to them, partners their restaurant's orders,
// staff everything.
func (s *OrderService) GetOrder(ctx context.Context, by actor.Actor, orderID int64) (order.Order, error) {
	work := s.uowFactory()

	o, err := work.Orders().GetByID(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}

	if err := mayView(by, o); err != nil {
		return order.Order{}, err
	}

	o.OrderItems, err = work.OrderItems().ListByOrder(ctx, o.ID)
	if err != nil {
		return order.Order{}, err
	}

	return o, nil
}

func mayView(by actor.Actor, o order.Order) error {
	switch by.Role {
	case actor.RoleStaff:
		return nil
	case actor.RoleCustomer:
		if o.CustomerID == by.ID {
			return nil
		}
	case actor.RoleCourier:
		if o.CourierID != nil && *o.CourierID == by.ID {
			return nil
		}
	case actor.RoleRestaurantPartner:
		if o.RestaurantID != nil && *o.RestaurantID == by.ID {
			return nil
		}
	}

	return apperr.Authorizationf("actor %s/%d may not view order %d", by.Role, by.ID, o.ID)
}

// ListOrders returns orders matching the filter with their items attached.
// Non-staff actors are constrained to their own orders regardless of the
// filter they send.
func (s *OrderService) ListOrders(ctx context.Context, by actor.Actor, filter *order.QueryOrdersModel) ([]order.Order, error) {
	if filter == nil {
		filter = &order.QueryOrdersModel{}
	}

	switch by.Role {
	case actor.RoleStaff:
	case actor.RoleCustomer:
		filter.CustomerIds = []int64{by.ID}
	case actor.RoleCourier:
		filter.CourierIds = []int64{by.ID}
	default:
		return nil, apperr.Authorizationf("role %s may not list orders", by.Role)
	}

	work := s.uowFactory()

	orders, err := work.Orders().Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	ids := lo.Map(orders, func(o order.Order, _ int) int64 { return o.ID })
	items, err := work.OrderItems().ListByOrders(ctx, ids)
	if err != nil {
		return nil, err
	}

	byOrder := lo.GroupBy(items, func(item orderitem.OrderItem) int64 { return item.OrderID })
	for i := range orders {
		orders[i].OrderItems = byOrder[orders[i].ID]
	}

	return orders, nil
}

// MapSnapshot is the live map payload: who is free, what is moving, what is
// open.
type MapSnapshot struct {
	Couriers    []courier.Courier       `json:"couriers"`
	Orders      []order.Order           `json:"orders"`
	Restaurants []restaurant.Restaurant `json:"restaurants"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// GetMapSnapshot returns the cached snapshot, rebuilding it on a miss.
func (s *OrderService) GetMapSnapshot(ctx context.Context) (MapSnapshot, error) {
	if s.cache != nil {
		var cached MapSnapshot
		hit, err := s.cache.GetJSON(ctx, redis.KeyMapSnapshot, &cached)
		if err != nil {
			slog.Warn("Failed to read map snapshot cache", "error", err)
		}
		if hit {
			return cached, nil
		}
	}

	work := s.uowFactory()

	couriers, err := work.Couriers().ListAvailable(ctx)
	if err != nil {
		return MapSnapshot{}, err
	}
	active, err := work.Orders().ListActive(ctx)
	if err != nil {
		return MapSnapshot{}, err
	}
	restaurants, err := work.Restaurants().ListActive(ctx)
	if err != nil {
		return MapSnapshot{}, err
	}

	snapshot := MapSnapshot{
		Couriers:    couriers,
		Orders:      active,
		Restaurants: restaurants,
		GeneratedAt: s.now(),
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, redis.KeyMapSnapshot, snapshot); err != nil {
			slog.Warn("Failed to write map snapshot cache", "error", err)
		}
	}

	return snapshot, nil
}

func (s *OrderService) enqueueStatusEvents(ctx context.Context, work uow.UnitOfWork, o order.Order, reason string, now time.Time) error {
	msg, err := outbox.NewMessage(outbox.RoutingKeyOrderStatus, outbox.OrderStatusChanged{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
	}, now)
	if err != nil {
		return err
	}
	if err := work.Outbox().Insert(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue order status event: %w", err)
	}

	msg, err = outbox.NewMessage(outbox.RoutingKeyMapUpdate, outbox.MapUpdate{Reason: reason, OrderID: o.ID}, now)
	if err != nil {
		return err
	}
	if err := work.Outbox().Insert(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue map update event: %w", err)
	}

	return nil
}

func (s *OrderService) rollback(ctx context.Context, work uow.UnitOfWork, op string) {
	if err := work.Rollback(ctx); err != nil {
		slog.Error("Failed to rollback transaction", "op", op, "error", err)
	}
}

func (s *OrderService) invalidateSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Invalidate(ctx, redis.KeyMapSnapshot); err != nil {
		slog.Warn("Failed to invalidate map snapshot", "error", err)
	}
}
