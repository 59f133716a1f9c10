package cancelorder

import (
	"context"
	"net/http"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/transport/http/actorctx"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	Cancel(ctx context.Context, by actor.Actor, orderID int64) (order.Order, error)
}

// CancelOrder handles the cancel request. Cancelling a terminal order yields
// a conflict.
func CancelOrder(w http.ResponseWriter, r *http.Request, orderID int64, service service) {
	by, err := actorctx.FromRequest(r)
	if err != nil {
		respond.Error(w, err)

		return
	}

	o, err := service.Cancel(r.Context(), by, orderID)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
