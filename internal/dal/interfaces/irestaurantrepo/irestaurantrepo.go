package irestaurantrepo

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/service/models/restaurant"
)

// IRestaurantRepository defines restaurant persistence.
type IRestaurantRepository interface {
	GetByID(ctx context.Context, id int64) (restaurant.Restaurant, error)
	ListActive(ctx context.Context) ([]restaurant.Restaurant, error)
	UpdateAvgRating(ctx context.Context, id int64, avg decimal.Decimal) error
}
