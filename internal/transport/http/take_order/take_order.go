package takeorder

import (
	"context"
	"net/http"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/transport/http/actorctx"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

// service is an interface for the dispatch engine.
type service interface {
	Claim(ctx context.Context, by actor.Actor, orderID int64) (order.Order, error)
}

// TakeOrder handles a courier's claim on an order. Exactly one of two
// concurrent claims succeeds; the other gets a conflict.
func TakeOrder(w http.ResponseWriter, r *http.Request, orderID int64, service service) {
	by, err := actorctx.FromRequest(r)
	if err != nil {
		respond.Error(w, err)

		return
	}

	o, err := service.Claim(r.Context(), by, orderID)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
