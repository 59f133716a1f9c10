package dispatchsvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karakol/delivery/internal/dal/redis"
	"github.com/karakol/delivery/internal/dal/uow"
	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/courier"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/service/models/outbox"
)

// snapshotCache is the slice of the redis client the dispatcher needs.
type snapshotCache interface {
	Invalidate(ctx context.Context, key string) error
}

// Service is the dispatch engine: it owns every write that attaches or
// detaches a courier. Both the automatic path and the courier-initiated claim
// re-read the order under its exclusive row lock, so exactly one writer wins
// a race and the loser observes the winner's commit.
type Service struct {
	uowFactory uow.Factory
	cache      snapshotCache
	now        func() time.Time
}

// option is a function that configures the Service.
type option func(*Service)

// MustNewService creates a new dispatch Service.
func MustNewService(opts ...option) *Service {
	s := &Service{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.uowFactory == nil {
		panic("dispatchsvc: unit of work factory is required")
	}

	return s
}

// WithUnitOfWorkFactory sets the unit of work factory for the Service.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory uow.Factory) option {
	return func(s *Service) {
		s.uowFactory = factory
	}
}

// WithSnapshotCache sets the map snapshot cache to invalidate on assignment.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSnapshotCache(cache snapshotCache) option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithClock overrides the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *Service) {
		s.now = now
	}
}

// AttemptAssign tries to attach a courier to the order automatically. It is
// idempotent: an order that is already assigned, terminal or still a cart is
// left untouched and reported as not assigned. When no courier qualifies the
// order simply stays where it is and a later attempt retries.
//
// Courier selection is first-available with no ranking or geography. Smarter
// policies plug in here.
func (s *Service) AttemptAssign(ctx context.Context, orderID int64) (bool, error) {
	now := s.now()

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := work.Rollback(ctx); err != nil {
			slog.Error("Failed to rollback assignment transaction", "order_id", orderID, "error", err)
		}
	}()

	o, err := work.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return false, err
	}

	if !o.Assignable() {
		return false, nil
	}

	c, err := work.Couriers().FirstAvailable(ctx)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, nil
	}

	if err := s.assign(ctx, work, &o, c, now); err != nil {
		return false, err
	}

	if err := work.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit assignment: %w", err)
	}

	s.invalidateSnapshot(ctx)

	slog.Info("Order assigned automatically", "order_id", o.ID, "courier_id", c.ID)

	return true, nil
}

// Claim lets a courier take an order explicitly. The order row lock decides
// concurrent claims: the loser re-reads the winner's commit and gets a
// conflict. Couriers only; staff attach couriers through Reassign.
func (s *Service) Claim(ctx context.Context, by actor.Actor, orderID int64) (order.Order, error) {
	if by.Role != actor.RoleCourier {
		return order.Order{}, apperr.Authorizationf("role %s may not claim orders", by.Role)
	}

	now := s.now()

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := work.Rollback(ctx); err != nil {
			slog.Error("Failed to rollback claim transaction", "order_id", orderID, "error", err)
		}
	}()

	o, err := work.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}

	if o.CourierID != nil {
		return order.Order{}, apperr.Conflictf("order %d already taken", o.ID)
	}

	c, err := work.Couriers().GetForUpdate(ctx, by.ID)
	if err != nil {
		return order.Order{}, err
	}
	if !c.CanTakeOrders() {
		return order.Order{}, apperr.Conflictf("courier %d is not available", c.ID)
	}

	if err := s.assign(ctx, work, &o, &c, now); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to commit claim: %w", err)
	}

	s.invalidateSnapshot(ctx)

	slog.Info("Order claimed", "order_id", o.ID, "courier_id", c.ID)

	return o, nil
}

// Reassign releases the order's current courier and attaches a new one in a
// single transaction. Staff only.
func (s *Service) Reassign(ctx context.Context, by actor.Actor, orderID, newCourierID int64) (order.Order, error) {
	if !by.IsStaff() {
		return order.Order{}, apperr.Authorizationf("role %s may not reassign orders", by.Role)
	}

	now := s.now()

	work := s.uowFactory()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := work.Rollback(ctx); err != nil {
			slog.Error("Failed to rollback reassignment transaction", "order_id", orderID, "error", err)
		}
	}()

	o, err := work.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}

	if o.Status.Terminal() {
		return order.Order{}, apperr.Conflictf("order %d is already %s", o.ID, o.Status)
	}

	newCourier, err := work.Couriers().GetForUpdate(ctx, newCourierID)
	if err != nil {
		return order.Order{}, err
	}
	if !newCourier.CanTakeOrders() {
		return order.Order{}, apperr.Conflictf("courier %d is not available", newCourier.ID)
	}

	if prevID, ok := o.ReleaseCourier(); ok {
		prev, err := work.Couriers().GetForUpdate(ctx, prevID)
		if err != nil {
			return order.Order{}, err
		}
		prev.Release()
		if err := work.Couriers().Update(ctx, prev); err != nil {
			return order.Order{}, err
		}

		if err := s.enqueue(ctx, work, outbox.RoutingKeyCourierNotify, outbox.CourierNotification{
			CourierID: prevID,
			Title:     "Order reassigned",
			Body:      fmt.Sprintf("Order #%d has been handed to another courier", o.ID),
		}, now); err != nil {
			return order.Order{}, err
		}
	}

	// AssignCourier only accepts pre-assignment statuses, so an order that was
	// already out with a courier is rewound to pending first.
	if o.Status == order.StatusAssigned || o.Status == order.StatusPickedUp || o.Status == order.StatusDelivering {
		o.Status = order.StatusPending
	}

	if err := s.assign(ctx, work, &o, &newCourier, now); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to commit reassignment: %w", err)
	}

	s.invalidateSnapshot(ctx)

	slog.Info("Order reassigned", "order_id", o.ID, "courier_id", newCourier.ID)

	return o, nil
}

// assign performs the atomic pair of writes: courier to busy, order to
// assigned with an ETA. Both rows are already locked by the caller.
func (s *Service) assign(
	ctx context.Context,
	work uow.UnitOfWork,
	o *order.Order,
	c *courier.Courier,
	now time.Time,
) error {
	if err := o.AssignCourier(c.ID, now); err != nil {
		return err
	}

	c.MarkBusy()

	if err := work.Couriers().Update(ctx, *c); err != nil {
		return fmt.Errorf("failed to update courier: %w", err)
	}
	if err := work.Orders().Update(ctx, *o); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if err := s.enqueue(ctx, work, outbox.RoutingKeyCourierNotify, outbox.CourierNotification{
		CourierID: c.ID,
		Title:     "New delivery",
		Body:      fmt.Sprintf("You have been assigned order #%d", o.ID),
	}, now); err != nil {
		return err
	}
	if err := s.enqueue(ctx, work, outbox.RoutingKeyOrderStatus, outbox.OrderStatusChanged{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
	}, now); err != nil {
		return err
	}

	return s.enqueue(ctx, work, outbox.RoutingKeyMapUpdate, outbox.MapUpdate{
		Reason:  "assignment",
		OrderID: o.ID,
	}, now)
}

func (s *Service) enqueue(ctx context.Context, work uow.UnitOfWork, routingKey string, payload any, now time.Time) error {
	msg, err := outbox.NewMessage(routingKey, payload, now)
	if err != nil {
		return err
	}

	if err := work.Outbox().Insert(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", routingKey, err)
	}

	return nil
}

func (s *Service) invalidateSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Invalidate(ctx, redis.KeyMapSnapshot); err != nil {
		slog.Warn("Failed to invalidate map snapshot", "error", err)
	}
}
