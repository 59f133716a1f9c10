package ipromorepo

import (
	"context"

	"github.com/karakol/delivery/internal/service/models/promo"
)

// IPromoRepository defines promo code persistence. GetForUpdate locks the
// code row so the usage-counter increment is atomic with the order commit.
type IPromoRepository interface {
	GetByCode(ctx context.Context, code string) (promo.PromoCode, error)
	GetForUpdate(ctx context.Context, code string) (promo.PromoCode, error)
	IncrementUsage(ctx context.Context, id int64) error
}
