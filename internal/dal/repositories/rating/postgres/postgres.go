package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/karakol/delivery/internal/dal/postgres"
	"github.com/karakol/delivery/internal/service/models/rating"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var ratingColumns = []string{
	"id", "order_id", "courier_id", "restaurant_id", "score", "comment", "created_at",
}

// PostgresRatingRepository persists ratings. Rows are append-only.
type PostgresRatingRepository struct {
	conn postgres.Querier
}

func NewPostgresRatingRepository(conn postgres.Querier) *PostgresRatingRepository {
	return &PostgresRatingRepository{conn: conn}
}

// Insert stores a new rating and returns it with the generated id.
func (r *PostgresRatingRepository) Insert(ctx context.Context, rt rating.Rating) (rating.Rating, error) {
	query, args, err := qb.Insert("ratings").
		Columns("order_id", "courier_id", "restaurant_id", "score", "comment", "created_at").
		Values(rt.OrderID, rt.CourierID, rt.RestaurantID, rt.Score, rt.Comment, rt.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return rating.Rating{}, fmt.Errorf("failed to build rating insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&rt.ID); err != nil {
		return rating.Rating{}, fmt.Errorf("failed to insert rating: %w", err)
	}

	return rt, nil
}

// FindByOrder returns the order's rating, nil if the order is unrated.
func (r *PostgresRatingRepository) FindByOrder(ctx context.Context, orderID int64) (*rating.Rating, error) {
	query, args, err := qb.Select(ratingColumns...).
		From("ratings").
		Where(sq.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build rating select query: %w", err)
	}

	var rt rating.Rating
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&rt.ID, &rt.OrderID, &rt.CourierID, &rt.RestaurantID, &rt.Score, &rt.Comment, &rt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan rating: %w", err)
	}

	return &rt, nil
}

// ScoresByCourier returns all scores given to a courier.
func (r *PostgresRatingRepository) ScoresByCourier(ctx context.Context, courierID int64) ([]int, error) {
	return r.scores(ctx, sq.Eq{"courier_id": courierID})
}

// ScoresByRestaurant returns all scores given to a restaurant.
func (r *PostgresRatingRepository) ScoresByRestaurant(ctx context.Context, restaurantID int64) ([]int, error) {
	return r.scores(ctx, sq.Eq{"restaurant_id": restaurantID})
}

func (r *PostgresRatingRepository) scores(ctx context.Context, pred sq.Sqlizer) ([]int, error) {
	query, args, err := qb.Select("score").From("ratings").Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build scores query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return scores, nil
}
