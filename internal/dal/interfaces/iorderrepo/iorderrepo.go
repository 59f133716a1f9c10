package iorderrepo

import (
	"context"

	"github.com/karakol/delivery/internal/service/models/order"
)

// IOrderRepository defines order persistence. GetForUpdate acquires the
// per-order exclusive row lock and is only meaningful inside a transaction.
type IOrderRepository interface {
	GetByID(ctx context.Context, id int64) (order.Order, error)
	GetForUpdate(ctx context.Context, id int64) (order.Order, error)

	// FindCart returns the customer's open cart order, nil if none exists.
	FindCart(ctx context.Context, customerID int64) (*order.Order, error)

	Insert(ctx context.Context, o order.Order) (order.Order, error)
	Update(ctx context.Context, o order.Order) error

	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)

	// ListUnassigned returns ids of assignable orders (pending, confirmed or
	// preparing without a courier), oldest first.
	ListUnassigned(ctx context.Context, limit int) ([]int64, error)

	// ListActive returns orders currently out for delivery, for the map feed.
	ListActive(ctx context.Context) ([]order.Order, error)

	// DeliveredScoresByZone returns rating scores of delivered orders in a zone.
	DeliveredScoresByZone(ctx context.Context, zoneID int64) ([]int, error)
}
