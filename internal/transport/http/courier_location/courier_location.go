package courierlocation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/courier"
	"github.com/karakol/delivery/internal/transport/http/actorctx"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	UpdateCourierLocation(ctx context.Context, by actor.Actor, lat, lon float64, status string) (courier.Courier, error)
}

// courierLocationRequest represents a courier location update.
type courierLocationRequest struct {
	Latitude  float64 `json:"latitude"  validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Status    string  `json:"status"`
}

// Validate validates the courier location request.
func (r *courierLocationRequest) Validate() error {
	return validator.New().Struct(r)
}

// UpdateLocation handles the courier location update request.
func UpdateLocation(w http.ResponseWriter, r *http.Request, service service) {
	by, err := actorctx.FromRequest(r)
	if err != nil {
		respond.Error(w, err)

		return
	}

	req := courierLocationRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for courier location", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for courier location", "error", err)

		return
	}

	c, err := service.UpdateCourierLocation(r.Context(), by, req.Latitude, req.Longitude, req.Status)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, c)
}
