package assigncourier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/transport/http/actorctx"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

// service is an interface for the dispatch engine.
type service interface {
	Reassign(ctx context.Context, by actor.Actor, orderID, newCourierID int64) (order.Order, error)
}

// assignCourierRequest represents a staff reassignment request.
type assignCourierRequest struct {
	CourierID int64 `json:"courierId" validate:"gt=0"`
}

// Validate validates the assign courier request.
func (r *assignCourierRequest) Validate() error {
	return validator.New().Struct(r)
}

// AssignCourier handles the staff reassignment request.
func AssignCourier(w http.ResponseWriter, r *http.Request, orderID int64, service service) {
	by, err := actorctx.FromRequest(r)
	if err != nil {
		respond.Error(w, err)

		return
	}

	req := assignCourierRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for assign courier", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for assign courier", "error", err)

		return
	}

	o, err := service.Reassign(r.Context(), by, orderID, req.CourierID)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
