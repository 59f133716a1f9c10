package iorderitemrepo

import (
	"context"

	"github.com/karakol/delivery/internal/service/models/orderitem"
)

// IOrderItemRepository defines order item persistence.
type IOrderItemRepository interface {
	ListByOrder(ctx context.Context, orderID int64) ([]orderitem.OrderItem, error)
	ListByOrders(ctx context.Context, orderIDs []int64) ([]orderitem.OrderItem, error)
	Insert(ctx context.Context, item orderitem.OrderItem) (orderitem.OrderItem, error)
	Update(ctx context.Context, item orderitem.OrderItem) error
}
