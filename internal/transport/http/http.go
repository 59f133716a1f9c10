package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/courier"
	"github.com/karakol/delivery/internal/service/models/order"
	"github.com/karakol/delivery/internal/service/models/rating"
	"github.com/karakol/delivery/internal/service/services/ordersvc"
	addcartitem "github.com/karakol/delivery/internal/transport/http/add_cart_item"
	assigncourier "github.com/karakol/delivery/internal/transport/http/assign_courier"
	cancelorder "github.com/karakol/delivery/internal/transport/http/cancel_order"
	checkoutorder "github.com/karakol/delivery/internal/transport/http/checkout_order"
	courierlocation "github.com/karakol/delivery/internal/transport/http/courier_location"
	getorder "github.com/karakol/delivery/internal/transport/http/get_order"
	listorders "github.com/karakol/delivery/internal/transport/http/list_orders"
	mapdata "github.com/karakol/delivery/internal/transport/http/map_data"
	rateorder "github.com/karakol/delivery/internal/transport/http/rate_order"
	"github.com/karakol/delivery/internal/transport/http/respond"
	takeorder "github.com/karakol/delivery/internal/transport/http/take_order"
	updatestatus "github.com/karakol/delivery/internal/transport/http/update_status"
	"github.com/karakol/delivery/pkg/http/middleware/trace"
	"github.com/karakol/delivery/pkg/logger"
)

type orderService interface {
	AddCartItem(ctx context.Context, by actor.Actor, p ordersvc.AddCartItemParams) (order.Order, error)
	Checkout(ctx context.Context, by actor.Actor, orderID int64, p ordersvc.CheckoutParams) (order.Order, error)
	UpdateStatus(ctx context.Context, by actor.Actor, orderID int64, to order.Status) (order.Order, error)
	Cancel(ctx context.Context, by actor.Actor, orderID int64) (order.Order, error)
	Rate(ctx context.Context, by actor.Actor, orderID int64, score int, comment string) (rating.Rating, error)
	UpdateCourierLocation(ctx context.Context, by actor.Actor, lat, lon float64, status string) (courier.Courier, error)
	GetOrder(ctx context.Context, by actor.Actor, orderID int64) (order.Order, error)
	ListOrders(ctx context.Context, by actor.Actor, filter *order.QueryOrdersModel) ([]order.Order, error)
	GetMapSnapshot(ctx context.Context) (ordersvc.MapSnapshot, error)
}

type dispatchService interface {
	Claim(ctx context.Context, by actor.Actor, orderID int64) (order.Order, error)
	Reassign(ctx context.Context, by actor.Actor, orderID, newCourierID int64) (order.Order, error)
}

type HTTPTransport struct {
	server   *http.Server
	router   *chi.Mux
	orders   orderService
	dispatch dispatchService
}

func NewHTTPTransport(orders orderService, dispatch dispatchService) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:   server,
		router:   router,
		orders:   orders,
		dispatch: dispatch,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Post("/cart/items", h.addCartItem)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.Post("/{id}/checkout", h.checkout)
			r.Post("/{id}/take", h.takeOrder)
			r.Post("/{id}/assign", h.assignCourier)
			r.Post("/{id}/status", h.updateStatus)
			r.Post("/{id}/cancel", h.cancelOrder)
			r.Post("/{id}/rate", h.rateOrder)
		})

		r.Post("/couriers/location", h.courierLocation)
		r.Get("/map", h.mapData)
	})
}

func (h *HTTPTransport) addCartItem(w http.ResponseWriter, r *http.Request) {
	addcartitem.AddCartItem(w, r, h.orders)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderID(w, r)
	if !ok {
		return
	}
	getorder.GetOrder(w, r, orderID, h.orders)
}

func (h *HTTPTransport) checkout(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderID(w, r)
	if !ok {
		return
	}
	checkoutorder.Checkout(w, r, orderID, h.orders)
}

func (h *HTTPTransport) takeOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderID(w, r)
	if !ok {
		return
	}
	takeorder.TakeOrder(w, r, orderID, h.dispatch)
}

func (h *HTTPTransport) assignCourier(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderID(w, r)
	if !ok {
		return
	}
	assigncourier.AssignCourier(w, r, orderID, h.dispatch)
}

func (h *HTTPTransport) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderID(w, r)
	if !ok {
		return
	}
	updatestatus.UpdateStatus(w, r, orderID, h.orders)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderID(w, r)
	if !ok {
		return
	}
	cancelorder.CancelOrder(w, r, orderID, h.orders)
}

func (h *HTTPTransport) rateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderID(w, r)
	if !ok {
		return
	}
	rateorder.RateOrder(w, r, orderID, h.orders)
}

func (h *HTTPTransport) courierLocation(w http.ResponseWriter, r *http.Request) {
	courierlocation.UpdateLocation(w, r, h.orders)
}

func (h *HTTPTransport) mapData(w http.ResponseWriter, r *http.Request) {
	mapdata.MapData(w, r, h.orders)
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, apperr.Validationf("invalid order id"))

		return 0, false
	}

	return id, true
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
