package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/order"
)

var allStatuses = []order.Status{
	order.StatusCart,
	order.StatusPending,
	order.StatusConfirmed,
	order.StatusPreparing,
	order.StatusAssigned,
	order.StatusPickedUp,
	order.StatusDelivering,
	order.StatusDelivered,
	order.StatusCancelled,
}

// allowedEdges is the full lifecycle: every pair not listed here must be
// rejected.
var allowedEdges = map[order.Status][]order.Status{
	order.StatusCart:       {order.StatusPending, order.StatusCancelled},
	order.StatusPending:    {order.StatusConfirmed, order.StatusAssigned, order.StatusCancelled},
	order.StatusConfirmed:  {order.StatusPreparing, order.StatusAssigned, order.StatusCancelled},
	order.StatusPreparing:  {order.StatusAssigned, order.StatusCancelled},
	order.StatusAssigned:   {order.StatusPickedUp, order.StatusCancelled},
	order.StatusPickedUp:   {order.StatusDelivering, order.StatusCancelled},
	order.StatusDelivering: {order.StatusDelivered, order.StatusCancelled},
	order.StatusDelivered:  {},
	order.StatusCancelled:  {},
}

func TestCanTransition_FullMatrix(t *testing.T) {
	for _, from := range allStatuses {
		allowed := map[order.Status]bool{}
		for _, to := range allowedEdges[from] {
			allowed[to] = true
		}

		for _, to := range allStatuses {
			assert.Equal(t, allowed[to], order.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range allStatuses {
		want := s == order.StatusDelivered || s == order.StatusCancelled
		assert.Equal(t, want, s.Terminal(), "status %s", s)
		assert.Equal(t, want, s.ReleasesCourier(), "status %s", s)
	}
}

func TestRoleMaySet(t *testing.T) {
	tests := []struct {
		role actor.Role
		to   order.Status
		want bool
	}{
		{actor.RoleCourier, order.StatusPickedUp, true},
		{actor.RoleCourier, order.StatusDelivering, true},
		{actor.RoleCourier, order.StatusDelivered, true},
		{actor.RoleCourier, order.StatusPreparing, false},
		{actor.RoleCourier, order.StatusConfirmed, false},
		{actor.RoleCourier, order.StatusCancelled, false},
		{actor.RoleRestaurantPartner, order.StatusPreparing, true},
		{actor.RoleRestaurantPartner, order.StatusConfirmed, false},
		{actor.RoleRestaurantPartner, order.StatusDelivered, false},
		{actor.RoleCustomer, order.StatusCancelled, true},
		{actor.RoleCustomer, order.StatusDelivered, false},
		{actor.RoleCustomer, order.StatusConfirmed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, order.RoleMaySet(tt.role, tt.to), "%s sets %s", tt.role, tt.to)
	}

	for _, s := range allStatuses {
		assert.True(t, order.RoleMaySet(actor.RoleStaff, s), "staff sets %s", s)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range allStatuses {
		parsed, err := order.ParseStatus(string(s))
		assert.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := order.ParseStatus("shipped")
	assert.ErrorIs(t, err, order.ErrInvalidStatus)
}
