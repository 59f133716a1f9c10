package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/dal/postgres"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/courier"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// CourierDal represents the courier data access layer model.
type CourierDal struct {
	ID               int64
	Name             string
	PhoneNumber      string
	VehicleType      string
	CurrentLatitude  *float64
	CurrentLongitude *float64
	Status           string
	IsAvailable      bool
	IsVerified       bool
	AvgRating        string
	LastLocationAt   time.Time
}

// ToModel converts CourierDal to the service layer Courier model.
func (d *CourierDal) ToModel() (*courier.Courier, error) {
	status, err := courier.ParseStatus(d.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to parse courier status %q: %w", d.Status, err)
	}

	avg, err := decimal.NewFromString(d.AvgRating)
	if err != nil {
		return nil, fmt.Errorf("failed to parse courier avg rating: %w", err)
	}

	return &courier.Courier{
		ID:               d.ID,
		Name:             d.Name,
		PhoneNumber:      d.PhoneNumber,
		VehicleType:      courier.VehicleType(d.VehicleType),
		CurrentLatitude:  d.CurrentLatitude,
		CurrentLongitude: d.CurrentLongitude,
		Status:           status,
		IsAvailable:      d.IsAvailable,
		IsVerified:       d.IsVerified,
		AvgRating:        avg,
		LastLocationAt:   d.LastLocationAt,
	}, nil
}

var courierColumns = []string{
	"id",
	"name",
	"phone_number",
	"vehicle_type",
	"current_latitude",
	"current_longitude",
	"status",
	"is_available",
	"is_verified",
	"avg_rating::text",
	"last_location_at",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCourier(row scanner) (*courier.Courier, error) {
	var d CourierDal
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.PhoneNumber,
		&d.VehicleType,
		&d.CurrentLatitude,
		&d.CurrentLongitude,
		&d.Status,
		&d.IsAvailable,
		&d.IsVerified,
		&d.AvgRating,
		&d.LastLocationAt,
	)
	if err != nil {
		return nil, err
	}

	return d.ToModel()
}

// PostgresCourierRepository persists couriers.
type PostgresCourierRepository struct {
	conn postgres.Querier
}

func NewPostgresCourierRepository(conn postgres.Querier) *PostgresCourierRepository {
	return &PostgresCourierRepository{conn: conn}
}

func (r *PostgresCourierRepository) getBy(ctx context.Context, pred sq.Sqlizer, suffix string) (*courier.Courier, error) {
	builder := qb.Select(courierColumns...).From("couriers").Where(pred)
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build courier select query: %w", err)
	}

	c, err := scanCourier(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("courier not found")
		}

		return nil, fmt.Errorf("failed to scan courier: %w", err)
	}

	return c, nil
}

// GetByID fetches one courier without locking it.
func (r *PostgresCourierRepository) GetByID(ctx context.Context, id int64) (courier.Courier, error) {
	c, err := r.getBy(ctx, sq.Eq{"id": id}, "")
	if err != nil {
		return courier.Courier{}, err
	}

	return *c, nil
}

// GetForUpdate fetches one courier holding its exclusive row lock until the
// surrounding transaction commits.
func (r *PostgresCourierRepository) GetForUpdate(ctx context.Context, id int64) (courier.Courier, error) {
	c, err := r.getBy(ctx, sq.Eq{"id": id}, "FOR UPDATE")
	if err != nil {
		return courier.Courier{}, err
	}

	return *c, nil
}

// FirstAvailable picks the first courier able to take orders and locks it.
// SKIP LOCKED keeps concurrent automatic assignments from serializing on the
// same row. No ranking or geography: this is the deliberate base policy and
// the extension point for smarter selection.
func (r *PostgresCourierRepository) FirstAvailable(ctx context.Context) (*courier.Courier, error) {
	c, err := r.getBy(ctx,
		sq.Eq{"is_available": true, "status": courier.StatusAvailable},
		"ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED",
	)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return c, nil
}

// Update rewrites the mutable courier columns.
func (r *PostgresCourierRepository) Update(ctx context.Context, c courier.Courier) error {
	query, args, err := qb.Update("couriers").
		SetMap(map[string]any{
			"current_latitude":  c.CurrentLatitude,
			"current_longitude": c.CurrentLongitude,
			"status":            c.Status,
			"is_available":      c.IsAvailable,
			"is_verified":       c.IsVerified,
			"avg_rating":        c.AvgRating.String(),
			"last_location_at":  c.LastLocationAt,
		}).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build courier update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update courier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("courier %d not found", c.ID)
	}

	return nil
}

// ListAvailable returns couriers able to take orders, for the map feed.
func (r *PostgresCourierRepository) ListAvailable(ctx context.Context) ([]courier.Courier, error) {
	query, args, err := qb.Select(courierColumns...).
		From("couriers").
		Where(sq.Eq{"is_available": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build available couriers query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query available couriers: %w", err)
	}
	defer rows.Close()

	var result []courier.Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan courier: %w", err)
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
