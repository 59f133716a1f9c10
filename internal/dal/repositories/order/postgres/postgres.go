package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/dal/postgres"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/service/models/orderitem"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// OrderDal represents the order data access layer model.
type OrderDal struct {
	ID                    int64
	PublicID              uuid.UUID
	CustomerID            int64
	CustomerName          string
	RestaurantID          *int64
	ZoneID                *int64
	CourierID             *int64
	Status                string
	Subtotal              string
	DeliveryFee           string
	ServiceFee            string
	CourierFee            string
	DiscountAmount        string
	TotalAmount           string
	DeliveryAddress       string
	DeliveryLatitude      *float64
	DeliveryLongitude     *float64
	PhoneNumber           string
	PaymentMethod         string
	PromoCode             string
	Notes                 string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	EstimatedDeliveryTime *time.Time
	ActualDeliveryTime    *time.Time
}

// ToModel converts OrderDal to the service layer Order model.
func (d *OrderDal) ToModel() (*order.Order, error) {
	status, err := order.ParseStatus(d.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order status %q: %w", d.Status, err)
	}

	payment, err := order.ParsePaymentMethod(d.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payment method %q: %w", d.PaymentMethod, err)
	}

	amounts := make([]decimal.Decimal, 6)
	for i, raw := range []string{
		d.Subtotal, d.DeliveryFee, d.ServiceFee, d.CourierFee, d.DiscountAmount, d.TotalAmount,
	} {
		amounts[i], err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse monetary column: %w", err)
		}
	}

	return &order.Order{
		ID:                    d.ID,
		PublicID:              d.PublicID,
		CustomerID:            d.CustomerID,
		CustomerName:          d.CustomerName,
		RestaurantID:          d.RestaurantID,
		ZoneID:                d.ZoneID,
		CourierID:             d.CourierID,
		Status:                status,
		Subtotal:              amounts[0],
		DeliveryFee:           amounts[1],
		ServiceFee:            amounts[2],
		CourierFee:            amounts[3],
		DiscountAmount:        amounts[4],
		TotalAmount:           amounts[5],
		DeliveryAddress:       d.DeliveryAddress,
		DeliveryLatitude:      d.DeliveryLatitude,
		DeliveryLongitude:     d.DeliveryLongitude,
		PhoneNumber:           d.PhoneNumber,
		PaymentMethod:         payment,
		PromoCode:             d.PromoCode,
		Notes:                 d.Notes,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
		EstimatedDeliveryTime: d.EstimatedDeliveryTime,
		ActualDeliveryTime:    d.ActualDeliveryTime,
		OrderItems:            []orderitem.OrderItem{},
	}, nil
}

// orderColumns are selected with monetary columns cast to text so they can be
// parsed into decimals without precision loss.
var orderColumns = []string{
	"id",
	"public_id",
	"customer_id",
	"customer_name",
	"restaurant_id",
	"zone_id",
	"courier_id",
	"status",
	"subtotal::text",
	"delivery_fee::text",
	"service_fee::text",
	"courier_fee::text",
	"discount_amount::text",
	"total_amount::text",
	"delivery_address",
	"delivery_latitude",
	"delivery_longitude",
	"phone_number",
	"payment_method",
	"promo_code",
	"notes",
	"created_at",
	"updated_at",
	"estimated_delivery_time",
	"actual_delivery_time",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*order.Order, error) {
	var d OrderDal
	err := row.Scan(
		&d.ID,
		&d.PublicID,
		&d.CustomerID,
		&d.CustomerName,
		&d.RestaurantID,
		&d.ZoneID,
		&d.CourierID,
		&d.Status,
		&d.Subtotal,
		&d.DeliveryFee,
		&d.ServiceFee,
		&d.CourierFee,
		&d.DiscountAmount,
		&d.TotalAmount,
		&d.DeliveryAddress,
		&d.DeliveryLatitude,
		&d.DeliveryLongitude,
		&d.PhoneNumber,
		&d.PaymentMethod,
		&d.PromoCode,
		&d.Notes,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.EstimatedDeliveryTime,
		&d.ActualDeliveryTime,
	)
	if err != nil {
		return nil, err
	}

	return d.ToModel()
}

// PostgresOrderRepository persists orders over a pool or a transaction.
type PostgresOrderRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderRepository(conn postgres.Querier) *PostgresOrderRepository {
	return &PostgresOrderRepository{conn: conn}
}

func (r *PostgresOrderRepository) getBy(ctx context.Context, pred sq.Sqlizer, suffix string) (*order.Order, error) {
	builder := qb.Select(orderColumns...).From("orders").Where(pred)
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order select query: %w", err)
	}

	o, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("order not found")
		}

		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	return o, nil
}

// GetByID fetches one order without locking it.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (order.Order, error) {
	o, err := r.getBy(ctx, sq.Eq{"id": id}, "")
	if err != nil {
		return order.Order{}, err
	}

	return *o, nil
}

// GetForUpdate fetches one order holding its exclusive row lock until the
// surrounding transaction commits. This lock is the critical section of every
// claim and status mutation.
func (r *PostgresOrderRepository) GetForUpdate(ctx context.Context, id int64) (order.Order, error) {
	o, err := r.getBy(ctx, sq.Eq{"id": id}, "FOR UPDATE")
	if err != nil {
		return order.Order{}, err
	}

	return *o, nil
}

// FindCart returns the customer's open cart order, nil if none exists.
func (r *PostgresOrderRepository) FindCart(ctx context.Context, customerID int64) (*order.Order, error) {
	o, err := r.getBy(ctx, sq.Eq{"customer_id": customerID, "status": order.StatusCart}, "")
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return o, nil
}

// Insert stores a new order and returns it with the generated id.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	query, args, err := qb.Insert("orders").
		Columns(
			"public_id",
			"customer_id",
			"customer_name",
			"restaurant_id",
			"zone_id",
			"courier_id",
			"status",
			"subtotal",
			"delivery_fee",
			"service_fee",
			"courier_fee",
			"discount_amount",
			"total_amount",
			"delivery_address",
			"delivery_latitude",
			"delivery_longitude",
			"phone_number",
			"payment_method",
			"promo_code",
			"notes",
			"created_at",
			"updated_at",
			"estimated_delivery_time",
			"actual_delivery_time",
		).
		Values(
			o.PublicID,
			o.CustomerID,
			o.CustomerName,
			o.RestaurantID,
			o.ZoneID,
			o.CourierID,
			o.Status,
			o.Subtotal.String(),
			o.DeliveryFee.String(),
			o.ServiceFee.String(),
			o.CourierFee.String(),
			o.DiscountAmount.String(),
			o.TotalAmount.String(),
			o.DeliveryAddress,
			o.DeliveryLatitude,
			o.DeliveryLongitude,
			o.PhoneNumber,
			o.PaymentMethod,
			o.PromoCode,
			o.Notes,
			o.CreatedAt,
			o.UpdatedAt,
			o.EstimatedDeliveryTime,
			o.ActualDeliveryTime,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build order insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&o.ID); err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	return o, nil
}

// Update rewrites all mutable order columns.
func (r *PostgresOrderRepository) Update(ctx context.Context, o order.Order) error {
	query, args, err := qb.Update("orders").
		SetMap(map[string]any{
			"restaurant_id":           o.RestaurantID,
			"zone_id":                 o.ZoneID,
			"courier_id":              o.CourierID,
			"status":                  o.Status,
			"subtotal":                o.Subtotal.String(),
			"delivery_fee":            o.DeliveryFee.String(),
			"service_fee":             o.ServiceFee.String(),
			"courier_fee":             o.CourierFee.String(),
			"discount_amount":         o.DiscountAmount.String(),
			"total_amount":            o.TotalAmount.String(),
			"delivery_address":        o.DeliveryAddress,
			"delivery_latitude":       o.DeliveryLatitude,
			"delivery_longitude":      o.DeliveryLongitude,
			"phone_number":            o.PhoneNumber,
			"payment_method":          o.PaymentMethod,
			"promo_code":              o.PromoCode,
			"notes":                   o.Notes,
			"updated_at":              o.UpdatedAt,
			"estimated_delivery_time": o.EstimatedDeliveryTime,
			"actual_delivery_time":    o.ActualDeliveryTime,
		}).
		Where(sq.Eq{"id": o.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("order %d not found", o.ID)
	}

	return nil
}

// Query retrieves orders based on filter criteria.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	builder := qb.Select(orderColumns...).From("orders").OrderBy("id")

	if len(filter.Ids) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.Ids})
	}
	if len(filter.CustomerIds) > 0 {
		builder = builder.Where(sq.Eq{"customer_id": filter.CustomerIds})
	}
	if len(filter.CourierIds) > 0 {
		builder = builder.Where(sq.Eq{"courier_id": filter.CourierIds})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build orders query: %w", err)
	}

	return r.queryOrders(ctx, query, args)
}

// ListUnassigned returns ids of assignable orders, oldest first, for the
// dispatch retry job.
func (r *PostgresOrderRepository) ListUnassigned(ctx context.Context, limit int) ([]int64, error) {
	query, args, err := qb.Select("id").
		From("orders").
		Where(sq.Eq{"status": []order.Status{order.StatusPending, order.StatusConfirmed, order.StatusPreparing}}).
		Where(sq.Eq{"courier_id": nil}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build unassigned orders query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unassigned orders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ids, nil
}

// ListActive returns orders currently out for delivery, for the map feed.
func (r *PostgresOrderRepository) ListActive(ctx context.Context) ([]order.Order, error) {
	query, args, err := qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"status": []order.Status{order.StatusAssigned, order.StatusPickedUp, order.StatusDelivering}}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build active orders query: %w", err)
	}

	return r.queryOrders(ctx, query, args)
}

// DeliveredScoresByZone returns rating scores of delivered orders in a zone.
func (r *PostgresOrderRepository) DeliveredScoresByZone(ctx context.Context, zoneID int64) ([]int, error) {
	query, args, err := qb.Select("r.score").
		From("orders o").
		Join("ratings r ON r.order_id = o.id").
		Where(sq.Eq{"o.zone_id": zoneID, "o.status": order.StatusDelivered}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build zone scores query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone scores: %w", err)
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var score int
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return scores, nil
}

func (r *PostgresOrderRepository) queryOrders(ctx context.Context, query string, args []any) ([]order.Order, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
