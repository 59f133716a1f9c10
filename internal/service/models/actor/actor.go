package actor

import "errors"

// Role is the caller's role, resolved once at the request boundary and passed
// into the core as a typed value.
type Role string

const (
	RoleCustomer          Role = "customer"
	RoleCourier           Role = "courier"
	RoleRestaurantPartner Role = "restaurant_partner"
	RoleStaff             Role = "staff"
)

var validRoles = map[Role]struct{}{
	RoleCustomer:          {},
	RoleCourier:           {},
	RoleRestaurantPartner: {},
	RoleStaff:             {},
}

var ErrInvalidRole = errors.New("invalid actor role")

func ParseRole(s string) (Role, error) {
	role := Role(s)
	if _, ok := validRoles[role]; ok {
		return role, nil
	}

	return "", ErrInvalidRole
}

// Actor identifies the acting party of a request. ID is the customer id,
// courier id, restaurant id or staff user id depending on the role.
type Actor struct {
	Role Role
	ID   int64
}

func Customer(id int64) Actor          { return Actor{Role: RoleCustomer, ID: id} }
func Courier(id int64) Actor           { return Actor{Role: RoleCourier, ID: id} }
func RestaurantPartner(id int64) Actor { return Actor{Role: RoleRestaurantPartner, ID: id} }
func Staff(id int64) Actor             { return Actor{Role: RoleStaff, ID: id} }

func (a Actor) IsStaff() bool { return a.Role == RoleStaff }
