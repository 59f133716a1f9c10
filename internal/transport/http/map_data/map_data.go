package mapdata

import (
	"context"
	"net/http"

	"github.com/karakol/delivery/internal/service/services/ordersvc"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	GetMapSnapshot(ctx context.Context) (ordersvc.MapSnapshot, error)
}

// MapData handles the live map snapshot request. The payload is public:
// available couriers, active orders and open restaurants.
func MapData(w http.ResponseWriter, r *http.Request, service service) {
	snapshot, err := service.GetMapSnapshot(r.Context())
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, snapshot)
}
