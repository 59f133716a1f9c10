package zone

import "github.com/shopspring/decimal"

// Zone is a geographic delivery-fee and time policy bucket. Mostly static
// reference data; AvgRating is recomputed from delivered orders in the zone.
type Zone struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	DeliveryFee      decimal.Decimal `json:"deliveryFee"`
	EstimatedMinutes int             `json:"estimatedMinutes"`
	IsActive         bool            `json:"isActive"`
	AvgRating        decimal.Decimal `json:"avgRating"`
}
