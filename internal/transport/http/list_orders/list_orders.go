package listorders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/samber/lo"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/transport/http/actorctx"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	ListOrders(ctx context.Context, by actor.Actor, filter *order.QueryOrdersModel) ([]order.Order, error)
}

// queryOrdersRequest represents an order list query.
type queryOrdersRequest struct {
	Ids         []int64  `schema:"ids,omitempty"`
	CustomerIds []int64  `schema:"customerIds,omitempty"`
	CourierIds  []int64  `schema:"courierIds,omitempty"`
	Statuses    []string `schema:"statuses,omitempty"`
	Limit       int      `schema:"limit,omitempty"`
	Offset      int      `schema:"offset,omitempty"`
}

func (q *queryOrdersRequest) ToModel() *order.QueryOrdersModel {
	return &order.QueryOrdersModel{
		Ids:         q.Ids,
		CustomerIds: q.CustomerIds,
		CourierIds:  q.CourierIds,
		Statuses:    lo.Map(q.Statuses, func(s string, _ int) order.Status { return order.Status(s) }),
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
}

// ListOrders handles the order list request.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	by, err := actorctx.FromRequest(r)
	if err != nil {
		respond.Error(w, err)

		return
	}

	decoder := schema.NewDecoder()
	query := &queryOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request", "error", err)

		return
	}

	orders, err := service.ListOrders(r.Context(), by, query.ToModel())
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, orders)
}
