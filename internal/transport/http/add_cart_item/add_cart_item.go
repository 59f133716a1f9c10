package addcartitem

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/service/services/ordersvc"
	"github.com/karakol/delivery/internal/transport/http/actorctx"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	AddCartItem(ctx context.Context, by actor.Actor, p ordersvc.AddCartItemParams) (order.Order, error)
}

// addCartItemRequest represents an add cart item request.
type addCartItemRequest struct {
	ProductID    int64  `json:"productId"    validate:"gt=0"`
	ProductTitle string `json:"productTitle" validate:"required"`
	Quantity     int    `json:"quantity"     validate:"gt=0"`
	UnitPrice    string `json:"unitPrice"    validate:"required"`
}

// Validate validates the add cart item request.
func (r *addCartItemRequest) Validate() error {
	return validator.New().Struct(r)
}

// AddCartItem handles the add cart item request.
func AddCartItem(w http.ResponseWriter, r *http.Request, service service) {
	by, err := actorctx.FromRequest(r)
	if err != nil {
		respond.Error(w, err)

		return
	}

	req := addCartItemRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for add cart item", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for add cart item", "error", err)

		return
	}

	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		http.Error(w, "invalid unit price", http.StatusBadRequest)

		return
	}

	cart, err := service.AddCartItem(r.Context(), by, ordersvc.AddCartItemParams{
		ProductID:    req.ProductID,
		ProductTitle: req.ProductTitle,
		Quantity:     req.Quantity,
		UnitPrice:    unitPrice,
	})
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, cart)
}
