package checkoutorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/service/services/ordersvc"
	"github.com/karakol/delivery/internal/transport/http/actorctx"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	Checkout(ctx context.Context, by actor.Actor, orderID int64, p ordersvc.CheckoutParams) (order.Order, error)
}

// checkoutRequest represents a checkout request.
type checkoutRequest struct {
	DeliveryAddress   string   `json:"deliveryAddress" validate:"required"`
	DeliveryLatitude  *float64 `json:"deliveryLatitude"`
	DeliveryLongitude *float64 `json:"deliveryLongitude"`
	PhoneNumber       string   `json:"phoneNumber"`
	ZoneID            *int64   `json:"zoneId"`
	RestaurantID      *int64   `json:"restaurantId"`
	PaymentMethod     string   `json:"paymentMethod"`
	PromoCode         string   `json:"promoCode"`
	Notes             string   `json:"notes"`
}

// Validate validates the checkout request.
func (r *checkoutRequest) Validate() error {
	return validator.New().Struct(r)
}

// Checkout handles the checkout request.
func Checkout(w http.ResponseWriter, r *http.Request, orderID int64, service service) {
	by, err := actorctx.FromRequest(r)
	if err != nil {
		respond.Error(w, err)

		return
	}

	req := checkoutRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for checkout", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for checkout", "error", err)

		return
	}

	o, err := service.Checkout(r.Context(), by, orderID, ordersvc.CheckoutParams{
		DeliveryAddress:   req.DeliveryAddress,
		DeliveryLatitude:  req.DeliveryLatitude,
		DeliveryLongitude: req.DeliveryLongitude,
		PhoneNumber:       req.PhoneNumber,
		ZoneID:            req.ZoneID,
		RestaurantID:      req.RestaurantID,
		PaymentMethod:     req.PaymentMethod,
		PromoCode:         req.PromoCode,
		Notes:             req.Notes,
	})
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
