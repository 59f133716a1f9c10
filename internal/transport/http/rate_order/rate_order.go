package rateorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/rating"
	"github.com/karakol/delivery/internal/transport/http/actorctx"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	Rate(ctx context.Context, by actor.Actor, orderID int64, score int, comment string) (rating.Rating, error)
}

// rateOrderRequest represents a rate order request.
type rateOrderRequest struct {
	Score   int    `json:"score"   validate:"gte=1,lte=5"`
	Comment string `json:"comment"`
}

// Validate validates the rate order request.
func (r *rateOrderRequest) Validate() error {
	return validator.New().Struct(r)
}

// RateOrder handles the rate order request.
func RateOrder(w http.ResponseWriter, r *http.Request, orderID int64, service service) {
	by, err := actorctx.FromRequest(r)
	if err != nil {
		respond.Error(w, err)

		return
	}

	req := rateOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for rate order", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for rate order", "error", err)

		return
	}

	rt, err := service.Rate(r.Context(), by, orderID, req.Score, req.Comment)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusCreated, rt)
}
