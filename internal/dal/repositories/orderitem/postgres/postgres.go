package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/dal/postgres"
	"github.com/karakol/delivery/internal/service/models/orderitem"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// OrderItemDal represents the order item data access layer model.
type OrderItemDal struct {
	ID           int64
	OrderID      int64
	ProductID    int64
	ProductTitle string
	Quantity     int
	UnitPrice    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ToModel converts OrderItemDal to the service layer OrderItem model.
func (d *OrderItemDal) ToModel() (*orderitem.OrderItem, error) {
	price, err := decimal.NewFromString(d.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit price: %w", err)
	}

	return &orderitem.OrderItem{
		ID:           d.ID,
		OrderID:      d.OrderID,
		ProductID:    d.ProductID,
		ProductTitle: d.ProductTitle,
		Quantity:     d.Quantity,
		UnitPrice:    price,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

var orderItemColumns = []string{
	"id",
	"order_id",
	"product_id",
	"product_title",
	"quantity",
	"unit_price::text",
	"created_at",
	"updated_at",
}

// PostgresOrderItemRepository persists order items.
type PostgresOrderItemRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderItemRepository(conn postgres.Querier) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{conn: conn}
}

// ListByOrder returns the items of one order.
func (r *PostgresOrderItemRepository) ListByOrder(ctx context.Context, orderID int64) ([]orderitem.OrderItem, error) {
	return r.list(ctx, sq.Eq{"order_id": orderID})
}

// ListByOrders returns the items of several orders in one round trip.
func (r *PostgresOrderItemRepository) ListByOrders(ctx context.Context, orderIDs []int64) ([]orderitem.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	return r.list(ctx, sq.Eq{"order_id": orderIDs})
}

func (r *PostgresOrderItemRepository) list(ctx context.Context, pred sq.Sqlizer) ([]orderitem.OrderItem, error) {
	query, args, err := qb.Select(orderItemColumns...).
		From("order_items").
		Where(pred).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order items query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []orderitem.OrderItem
	for rows.Next() {
		var d OrderItemDal
		err := rows.Scan(
			&d.ID,
			&d.OrderID,
			&d.ProductID,
			&d.ProductTitle,
			&d.Quantity,
			&d.UnitPrice,
			&d.CreatedAt,
			&d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		item, err := d.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order item dal to model: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

// Insert stores a new order item and returns it with the generated id.
func (r *PostgresOrderItemRepository) Insert(ctx context.Context, item orderitem.OrderItem) (orderitem.OrderItem, error) {
	query, args, err := qb.Insert("order_items").
		Columns("order_id", "product_id", "product_title", "quantity", "unit_price", "created_at", "updated_at").
		Values(item.OrderID, item.ProductID, item.ProductTitle, item.Quantity, item.UnitPrice.String(), item.CreatedAt, item.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return orderitem.OrderItem{}, fmt.Errorf("failed to build order item insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&item.ID); err != nil {
		return orderitem.OrderItem{}, fmt.Errorf("failed to insert order item: %w", err)
	}

	return item, nil
}

// Update rewrites the quantity and snapshot price of an item, used only while
// the order is still a cart.
func (r *PostgresOrderItemRepository) Update(ctx context.Context, item orderitem.OrderItem) error {
	query, args, err := qb.Update("order_items").
		SetMap(map[string]any{
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice.String(),
			"updated_at": item.UpdatedAt,
		}).
		Where(sq.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order item update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update order item: %w", err)
	}

	return nil
}
