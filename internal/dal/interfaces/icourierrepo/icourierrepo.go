package icourierrepo

import (
	"context"

	"github.com/karakol/delivery/internal/service/models/courier"
)

// ICourierRepository defines courier persistence. GetForUpdate locks the
// courier row so that availability flips pair atomically with order writes.
type ICourierRepository interface {
	GetByID(ctx context.Context, id int64) (courier.Courier, error)
	GetForUpdate(ctx context.Context, id int64) (courier.Courier, error)

	// FirstAvailable returns the first courier with is_available and
	// status=available, locked for update, or nil when none qualifies.
	FirstAvailable(ctx context.Context) (*courier.Courier, error)

	Update(ctx context.Context, c courier.Courier) error

	ListAvailable(ctx context.Context) ([]courier.Courier, error)
}
