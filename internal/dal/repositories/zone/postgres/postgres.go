package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/dal/postgres"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/zone"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresZoneRepository persists delivery zones.
type PostgresZoneRepository struct {
	conn postgres.Querier
}

func NewPostgresZoneRepository(conn postgres.Querier) *PostgresZoneRepository {
	return &PostgresZoneRepository{conn: conn}
}

// GetByID fetches one delivery zone.
func (r *PostgresZoneRepository) GetByID(ctx context.Context, id int64) (zone.Zone, error) {
	query, args, err := qb.Select(
		"id", "name", "description", "delivery_fee::text", "estimated_minutes", "is_active", "avg_rating::text",
	).
		From("delivery_zones").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return zone.Zone{}, fmt.Errorf("failed to build zone select query: %w", err)
	}

	var (
		z       zone.Zone
		fee     string
		avg     string
	)
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&z.ID, &z.Name, &z.Description, &fee, &z.EstimatedMinutes, &z.IsActive, &avg,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zone.Zone{}, apperr.NotFoundf("delivery zone %d not found", id)
		}

		return zone.Zone{}, fmt.Errorf("failed to scan zone: %w", err)
	}

	if z.DeliveryFee, err = decimal.NewFromString(fee); err != nil {
		return zone.Zone{}, fmt.Errorf("failed to parse zone delivery fee: %w", err)
	}
	if z.AvgRating, err = decimal.NewFromString(avg); err != nil {
		return zone.Zone{}, fmt.Errorf("failed to parse zone avg rating: %w", err)
	}

	return z, nil
}

// UpdateAvgRating stores a freshly recomputed zone average.
func (r *PostgresZoneRepository) UpdateAvgRating(ctx context.Context, id int64, avg decimal.Decimal) error {
	query, args, err := qb.Update("delivery_zones").
		Set("avg_rating", avg.String()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build zone rating update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update zone rating: %w", err)
	}

	return nil
}
