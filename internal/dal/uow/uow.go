package uow

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karakol/delivery/internal/dal/interfaces/icourierrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/iorderitemrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/iorderrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/ioutboxrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/ipromorepo"
	"github.com/karakol/delivery/internal/dal/interfaces/iratingrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/irestaurantrepo"
	"github.com/karakol/delivery/internal/dal/interfaces/izonerepo"
	"github.com/karakol/delivery/internal/dal/postgres"
	courierrepo "github.com/karakol/delivery/internal/dal/repositories/courier/postgres"
	orderrepo "github.com/karakol/delivery/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/karakol/delivery/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/karakol/delivery/internal/dal/repositories/outbox/postgres"
	promorepo "github.com/karakol/delivery/internal/dal/repositories/promo/postgres"
	ratingrepo "github.com/karakol/delivery/internal/dal/repositories/rating/postgres"
	restaurantrepo "github.com/karakol/delivery/internal/dal/repositories/restaurant/postgres"
	zonerepo "github.com/karakol/delivery/internal/dal/repositories/zone/postgres"
)

// UnitOfWork groups repository access with transaction control. Before Begin
// the repositories run directly on the pool; after Begin they all run on the
// same transaction, so row locks taken by one repository are held for the
// whole unit.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Orders() iorderrepo.IOrderRepository
	OrderItems() iorderitemrepo.IOrderItemRepository
	Couriers() icourierrepo.ICourierRepository
	Zones() izonerepo.IZoneRepository
	Restaurants() irestaurantrepo.IRestaurantRepository
	Ratings() iratingrepo.IRatingRepository
	Promos() ipromorepo.IPromoRepository
	Outbox() ioutboxrepo.IOutboxRepository
}

// Factory produces a fresh unit of work per request. A unit of work is not
// safe for concurrent use.
type Factory func() UnitOfWork

// NewFactory builds a Factory over the shared connection pool.
func NewFactory(client *postgres.Client) Factory {
	pool := client.Pool()

	return func() UnitOfWork {
		u := &unitOfWork{pool: pool}
		u.bind(pool)

		return u
	}
}

type unitOfWork struct {
	pool *pgxpool.Pool
	tx   pgx.Tx

	orderRepo      iorderrepo.IOrderRepository
	orderItemRepo  iorderitemrepo.IOrderItemRepository
	courierRepo    icourierrepo.ICourierRepository
	zoneRepo       izonerepo.IZoneRepository
	restaurantRepo irestaurantrepo.IRestaurantRepository
	ratingRepo     iratingrepo.IRatingRepository
	promoRepo      ipromorepo.IPromoRepository
	outboxRepo     ioutboxrepo.IOutboxRepository
}

func (u *unitOfWork) bind(conn postgres.Querier) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.courierRepo = courierrepo.NewPostgresCourierRepository(conn)
	u.zoneRepo = zonerepo.NewPostgresZoneRepository(conn)
	u.restaurantRepo = restaurantrepo.NewPostgresRestaurantRepository(conn)
	u.ratingRepo = ratingrepo.NewPostgresRatingRepository(conn)
	u.promoRepo = promorepo.NewPostgresPromoRepository(conn)
	u.outboxRepo = outboxrepo.NewPostgresOutboxRepository(conn)
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Commit(ctx)
	u.tx = nil
	u.bind(u.pool)

	return err
}

// Rollback is a no-op after Commit, safe to defer unconditionally.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(ctx)
	u.tx = nil
	u.bind(u.pool)

	return err
}

func (u *unitOfWork) Orders() iorderrepo.IOrderRepository            { return u.orderRepo }
func (u *unitOfWork) OrderItems() iorderitemrepo.IOrderItemRepository { return u.orderItemRepo }
func (u *unitOfWork) Couriers() icourierrepo.ICourierRepository      { return u.courierRepo }
func (u *unitOfWork) Zones() izonerepo.IZoneRepository               { return u.zoneRepo }
func (u *unitOfWork) Restaurants() irestaurantrepo.IRestaurantRepository {
	return u.restaurantRepo
}
func (u *unitOfWork) Ratings() iratingrepo.IRatingRepository { return u.ratingRepo }
func (u *unitOfWork) Promos() ipromorepo.IPromoRepository    { return u.promoRepo }
func (u *unitOfWork) Outbox() ioutboxrepo.IOutboxRepository  { return u.outboxRepo }
