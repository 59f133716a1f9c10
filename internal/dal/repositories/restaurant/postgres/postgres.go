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
	"github.com/karakol/delivery/internal/service/models/restaurant"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var restaurantColumns = []string{
	"id", "name", "address", "latitude", "longitude", "phone_number", "working_hours", "is_active", "avg_rating::text",
}

// PostgresRestaurantRepository persists restaurants.
type PostgresRestaurantRepository struct {
	conn postgres.Querier
}

func NewPostgresRestaurantRepository(conn postgres.Querier) *PostgresRestaurantRepository {
	return &PostgresRestaurantRepository{conn: conn}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRestaurant(row scanner) (*restaurant.Restaurant, error) {
	var (
		rest restaurant.Restaurant
		avg  string
	)
	err := row.Scan(
		&rest.ID, &rest.Name, &rest.Address, &rest.Latitude, &rest.Longitude,
		&rest.PhoneNumber, &rest.WorkingHours, &rest.IsActive, &avg,
	)
	if err != nil {
		return nil, err
	}

	if rest.AvgRating, err = decimal.NewFromString(avg); err != nil {
		return nil, fmt.Errorf("failed to parse restaurant avg rating: %w", err)
	}

	return &rest, nil
}

// GetByID fetches one restaurant.
func (r *PostgresRestaurantRepository) GetByID(ctx context.Context, id int64) (restaurant.Restaurant, error) {
	query, args, err := qb.Select(restaurantColumns...).
		From("restaurants").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return restaurant.Restaurant{}, fmt.Errorf("failed to build restaurant select query: %w", err)
	}

	rest, err := scanRestaurant(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.Restaurant{}, apperr.NotFoundf("restaurant %d not found", id)
		}

		return restaurant.Restaurant{}, fmt.Errorf("failed to scan restaurant: %w", err)
	}

	return *rest, nil
}

// ListActive returns active restaurants, for the map feed.
func (r *PostgresRestaurantRepository) ListActive(ctx context.Context) ([]restaurant.Restaurant, error) {
	query, args, err := qb.Select(restaurantColumns...).
		From("restaurants").
		Where(sq.Eq{"is_active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build active restaurants query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active restaurants: %w", err)
	}
	defer rows.Close()

	var result []restaurant.Restaurant
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		result = append(result, *rest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdateAvgRating stores a freshly recomputed restaurant average.
func (r *PostgresRestaurantRepository) UpdateAvgRating(ctx context.Context, id int64, avg decimal.Decimal) error {
	query, args, err := qb.Update("restaurants").
		Set("avg_rating", avg.String()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build restaurant rating update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update restaurant rating: %w", err)
	}

	return nil
}
