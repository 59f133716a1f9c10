package courier

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the courier's operational status.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

var validStatuses = map[Status]struct{}{
	StatusAvailable: {},
	StatusBusy:      {},
	StatusOffline:   {},
}

var ErrInvalidStatus = errors.New("invalid courier status")

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validStatuses[status]; ok {
		return status, nil
	}

	return "", ErrInvalidStatus
}

// VehicleType is how the courier moves.
type VehicleType string

const (
	VehicleBicycle    VehicleType = "bicycle"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleCar        VehicleType = "car"
	VehicleFoot       VehicleType = "foot"
)

// Courier is a delivery person. IsAvailable and Status together form one of
// the two shared mutable resources at the center of dispatch races; every
// write to them happens inside the same transaction as the paired order write.
type Courier struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	PhoneNumber      string          `json:"phoneNumber"`
	VehicleType      VehicleType     `json:"vehicleType"`
	CurrentLatitude  *float64        `json:"currentLatitude,omitempty"`
	CurrentLongitude *float64        `json:"currentLongitude,omitempty"`
	Status           Status          `json:"status"`
	IsAvailable      bool            `json:"isAvailable"`
	IsVerified       bool            `json:"isVerified"`
	AvgRating        decimal.Decimal `json:"avgRating"`
	LastLocationAt   time.Time       `json:"lastLocationAt"`
}

// CanTakeOrders reports whether the courier may be assigned a new order.
func (c *Courier) CanTakeOrders() bool {
	return c.IsAvailable && c.Status == StatusAvailable
}

// MarkBusy flips the courier to the busy/unavailable pair.
func (c *Courier) MarkBusy() {
	c.Status = StatusBusy
	c.IsAvailable = false
}

// Release flips the courier back to the available pair.
func (c *Courier) Release() {
	c.Status = StatusAvailable
	c.IsAvailable = true
}
