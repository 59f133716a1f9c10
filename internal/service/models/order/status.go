package order

import (
	"errors"

	"github.com/karakol/delivery/internal/service/models/actor"
)

// Status of an order within its lifecycle.
type Status string

const (
	StatusCart       Status = "cart"
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusPreparing  Status = "preparing"
	StatusAssigned   Status = "assigned"
	StatusPickedUp   Status = "picked_up"
	StatusDelivering Status = "delivering"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var validStatuses = map[Status]struct{}{
	StatusCart:       {},
	StatusPending:    {},
	StatusConfirmed:  {},
	StatusPreparing:  {},
	StatusAssigned:   {},
	StatusPickedUp:   {},
	StatusDelivering: {},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

var ErrInvalidStatus = errors.New("invalid order status")

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validStatuses[status]; ok {
		return status, nil
	}

	return "", ErrInvalidStatus
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// ReleasesCourier reports whether entering this status returns the assigned
// courier to the available pool.
func (s Status) ReleasesCourier() bool {
	return s.Terminal()
}

// transitions is the allowed-edge table of the lifecycle. Assignment edges
// (pending/confirmed/preparing -> assigned) exist here but are walked only by
// the dispatch engine, never by a plain status update.
var transitions = map[Status][]Status{
	StatusCart:       {StatusPending, StatusCancelled},
	StatusPending:    {StatusConfirmed, StatusAssigned, StatusCancelled},
	StatusConfirmed:  {StatusPreparing, StatusAssigned, StatusCancelled},
	StatusPreparing:  {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusPickedUp, StatusCancelled},
	StatusPickedUp:   {StatusDelivering, StatusCancelled},
	StatusDelivering: {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether the edge from -> to is in the lifecycle table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// roleTargets gates which statuses each role may set via a status update.
// Staff is unrestricted and handled separately.
var roleTargets = map[actor.Role]map[Status]struct{}{
	actor.RoleCourier: {
		StatusPickedUp:   {},
		StatusDelivering: {},
		StatusDelivered:  {},
	},
	actor.RoleRestaurantPartner: {
		StatusPreparing: {},
	},
	actor.RoleCustomer: {
		StatusCancelled: {},
	},
}

// RoleMaySet reports whether the role is allowed to request the target status.
func RoleMaySet(role actor.Role, to Status) bool {
	if role == actor.RoleStaff {
		return true
	}

	_, ok := roleTargets[role][to]

	return ok
}
