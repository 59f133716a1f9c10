package restaurant

import "github.com/shopspring/decimal"

// Restaurant is a pickup point for orders and a rating subject.
type Restaurant struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Address      string          `json:"address"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
	PhoneNumber  string          `json:"phoneNumber"`
	WorkingHours string          `json:"workingHours"`
	IsActive     bool            `json:"isActive"`
	AvgRating    decimal.Decimal `json:"avgRating"`
}
