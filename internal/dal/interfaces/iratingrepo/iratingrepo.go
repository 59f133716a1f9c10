package iratingrepo

import (
	"context"

	"github.com/karakol/delivery/internal/service/models/rating"
)

// IRatingRepository defines rating persistence. Ratings are append-only.
type IRatingRepository interface {
	Insert(ctx context.Context, r rating.Rating) (rating.Rating, error)

	// FindByOrder returns the order's rating, nil if the order is unrated.
	FindByOrder(ctx context.Context, orderID int64) (*rating.Rating, error)

	ScoresByCourier(ctx context.Context, courierID int64) ([]int, error)
	ScoresByRestaurant(ctx context.Context, restaurantID int64) ([]int, error)
}
