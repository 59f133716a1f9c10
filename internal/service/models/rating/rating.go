package rating

import (
	"time"

	"github.com/karakol/delivery/internal/service/models/apperr"
)

// Rating is a customer's score for a delivered order. One per order,
// immutable once created; re-rating is rejected by the order service.
type Rating struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"orderId"`
	CourierID    int64     `json:"courierId"`
	RestaurantID *int64    `json:"restaurantId,omitempty"`
	Score        int       `json:"score"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ValidateScore checks the allowed score range.
func ValidateScore(score int) error {
	if score < 1 || score > 5 {
		return apperr.Validationf("score must be between 1 and 5, got %d", score)
	}

	return nil
}
